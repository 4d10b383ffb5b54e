package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	apperrors "github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
	"github.com/pharmstock/pharmstock-backend/pkg/testutil"
)

// publisherRecorder records published event types instead of touching
// RabbitMQ.
type publisherRecorder struct {
	events []string
}

func (p *publisherRecorder) PublishBatchCreated(_ context.Context, _ *domain.Batch, _ string) {
	p.events = append(p.events, messaging.EventBatchCreated)
}

func (p *publisherRecorder) PublishStockMerged(_ context.Context, _ *domain.Batch, _ *domain.MergeOutcome, _ string) {
	p.events = append(p.events, messaging.EventStockMerged)
}

func (p *publisherRecorder) PublishStockAllocated(_ context.Context, _ string, _ int, _ *domain.AllocationResult, _ string) {
	p.events = append(p.events, messaging.EventStockAllocated)
}

func (p *publisherRecorder) PublishBatchExpiring(_ context.Context, _ *domain.Batch, _ int) {
	p.events = append(p.events, messaging.EventBatchExpiring)
}

func (p *publisherRecorder) PublishAlertGenerated(_ context.Context, _ *repository.StockAlert) {
	p.events = append(p.events, messaging.EventAlertGenerated)
}

var batchColumns = []string{
	"id", "medicine_name", "batch_number", "quantity",
	"selling_price", "purchase_price", "expiry_date", "manufacturing_date",
	"company", "rack_location", "selling_unit", "is_narcotic",
	"created_at", "updated_at",
}

const testToday = "2026-03-01"

func newTestService(t *testing.T) (*StockService, *testutil.MockDB) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewWithDB(mockDB.DB, log)

	svc := NewStockService(
		repository.NewBatchRepository(db),
		repository.NewMergeAuditRepository(db),
		&publisherRecorder{},
		log,
		90,
	)
	svc.now = func() time.Time {
		today, _ := time.Parse("2006-01-02", testToday)
		return today
	}
	return svc, mockDB
}

func panadolRow(id string, quantity int, expiry interface{}) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, "Panadol", "PN-100", quantity,
		"15.00", "10.00", expiry, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		"Acme Pharma", "A-3", "strip", false,
		now, now,
	}
}

func decimalFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func incoming() domain.IncomingStock {
	expiry := time.Date(2027, 6, 10, 0, 0, 0, 0, time.UTC)
	return domain.IncomingStock{
		Quantity:          50,
		SellingPrice:      decimalFromString("18.00"),
		PurchasePrice:     decimalFromString("16.00"),
		ExpiryDate:        &expiry,
		ManufacturingDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheckForDuplicate(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns).
			AddRow(panadolRow("batch-1", 100, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))...)
		mockDB.ExpectQuery("LOWER(batch_number) = LOWER($2)").
			WithArgs("Panadol", "PN-100").
			WillReturnRows(rows)

		result := svc.CheckForDuplicate(ctx, " Panadol ", " PN-100 ")
		assert.True(t, result.IsDuplicate)
		require.NotNil(t, result.ExistingBatch)
		assert.Equal(t, "batch-1", result.ExistingBatch.ID)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("same medicine under a different batch number", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		mockDB.ExpectQuery("LOWER(batch_number) = LOWER($2)").
			WithArgs("Panadol", "PN-999").
			WillReturnRows(sqlmock.NewRows(batchColumns))
		mockDB.ExpectQuery("SELECT EXISTS").
			WithArgs("Panadol").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		result := svc.CheckForDuplicate(ctx, "Panadol", "PN-999")
		assert.False(t, result.IsDuplicate)
		assert.Nil(t, result.ExistingBatch)
		assert.True(t, result.SameNameDifferentBatch)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("fails open on read error", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		mockDB.ExpectQuery("LOWER(batch_number) = LOWER($2)").
			WithArgs("Panadol", "PN-100").
			WillReturnError(errors.New("connection reset"))

		result := svc.CheckForDuplicate(ctx, "Panadol", "PN-100")
		assert.False(t, result.IsDuplicate)
		assert.False(t, result.SameNameDifferentBatch)
		mockDB.ExpectationsWereMet(t)
	})
}

func TestMergeStock(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns).
			AddRow(panadolRow("batch-1", 100, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))...)
		mockDB.ExpectQuery("SELECT * FROM medicine_batches WHERE id = $1").
			WithArgs("batch-1").
			WillReturnRows(rows)
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.ExpectQuery("INSERT INTO merge_audit_entries").
			WithArgs(testutil.AnyUUID{}, "batch-1", "Panadol", "PN-100",
				100, 50, 150,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				false, "user-1", "merged 50 units into batch PN-100").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		outcome, err := svc.MergeStock(ctx, "batch-1", incoming(), "user-1")
		require.NoError(t, err)

		assert.Equal(t, 100, outcome.PreviousQuantity)
		assert.Equal(t, 50, outcome.AddedQuantity)
		assert.Equal(t, 150, outcome.NewTotalQuantity)
		assert.True(t, outcome.NewPurchasePrice.Equal(decimalFromString("12.00")),
			"got %s", outcome.NewPurchasePrice)
		assert.True(t, outcome.NewSellingPrice.Equal(decimalFromString("18.00")))
		assert.False(t, outcome.ExpiryDivergenceWarning)
		assert.Equal(t, []string{messaging.EventStockMerged}, svc.publisher.(*publisherRecorder).events)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("audit failure does not fail the merge", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns).
			AddRow(panadolRow("batch-1", 100, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))...)
		mockDB.ExpectQuery("SELECT * FROM medicine_batches WHERE id = $1").
			WithArgs("batch-1").
			WillReturnRows(rows)
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.ExpectQuery("INSERT INTO merge_audit_entries").
			WillReturnError(errors.New("audit table unavailable"))

		outcome, err := svc.MergeStock(ctx, "batch-1", incoming(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, 150, outcome.NewTotalQuantity)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("concurrent change surfaces as conflict", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns).
			AddRow(panadolRow("batch-1", 100, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))...)
		mockDB.ExpectQuery("SELECT * FROM medicine_batches WHERE id = $1").
			WithArgs("batch-1").
			WillReturnRows(rows)
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := svc.MergeStock(ctx, "batch-1", incoming(), "user-1")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("expired batch refuses the merge", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns).
			AddRow(panadolRow("batch-1", 100, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))...)
		mockDB.ExpectQuery("SELECT * FROM medicine_batches WHERE id = $1").
			WithArgs("batch-1").
			WillReturnRows(rows)

		_, err := svc.MergeStock(ctx, "batch-1", incoming(), "user-1")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrMergeRejected))
		mockDB.ExpectationsWereMet(t)
	})
}

func TestAllocateFEFO(t *testing.T) {
	ctx := context.Background()

	t.Run("plan only", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns)
		rows.AddRow(panadolRow("soon", 30, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))...)
		rows.AddRow(panadolRow("late", 100, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC))...)

		mockDB.ExpectQuery("LOWER(medicine_name) = LOWER($1)").
			WithArgs("Panadol").
			WillReturnRows(rows)

		result, err := svc.AllocateFEFO(ctx, "Panadol", 50, false, "user-1")
		require.NoError(t, err)
		require.Len(t, result.Allocations, 2)
		assert.Equal(t, "soon", result.Allocations[0].BatchID)
		assert.Equal(t, 30, result.Allocations[0].Quantity)
		assert.Equal(t, 20, result.Allocations[1].Quantity)
		assert.Equal(t, 130, result.TotalAvailable)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("commit decrements each allocated batch in one transaction", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns)
		rows.AddRow(panadolRow("soon", 30, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))...)
		rows.AddRow(panadolRow("late", 100, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC))...)

		mockDB.ExpectQuery("LOWER(medicine_name) = LOWER($1)").
			WithArgs("Panadol").
			WillReturnRows(rows)
		mockDB.Mock.ExpectBegin()
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET quantity").
			WithArgs("soon", 30, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET quantity").
			WithArgs("late", 100, 80).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.Mock.ExpectCommit()

		result, err := svc.AllocateFEFO(ctx, "Panadol", 50, true, "user-1")
		require.NoError(t, err)
		assert.True(t, result.Fulfills(50))
		assert.Equal(t, []string{messaging.EventStockAllocated}, svc.publisher.(*publisherRecorder).events)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("conflict mid-commit rolls back earlier decrements", func(t *testing.T) {
		svc, mockDB := newTestService(t)

		rows := sqlmock.NewRows(batchColumns)
		rows.AddRow(panadolRow("soon", 30, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))...)
		rows.AddRow(panadolRow("late", 100, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC))...)

		mockDB.ExpectQuery("LOWER(medicine_name) = LOWER($1)").
			WithArgs("Panadol").
			WillReturnRows(rows)
		mockDB.Mock.ExpectBegin()
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET quantity").
			WithArgs("soon", 30, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// The second batch was sold from concurrently.
		mockDB.Mock.ExpectExec("UPDATE medicine_batches SET quantity").
			WithArgs("late", 100, 80).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mockDB.Mock.ExpectRollback()

		_, err := svc.AllocateFEFO(ctx, "Panadol", 50, true, "user-1")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		assert.Empty(t, svc.publisher.(*publisherRecorder).events)
		mockDB.ExpectationsWereMet(t)
	})
}

func TestBestBatch_NotFoundWhenNothingSellable(t *testing.T) {
	ctx := context.Background()
	svc, mockDB := newTestService(t)

	rows := sqlmock.NewRows(batchColumns)
	rows.AddRow(panadolRow("expired", 10, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))...)

	mockDB.ExpectQuery("LOWER(medicine_name) = LOWER($1)").
		WithArgs("Panadol").
		WillReturnRows(rows)

	_, err := svc.BestBatch(ctx, "Panadol")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

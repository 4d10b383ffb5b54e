package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/pkg/database"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
)

// BatchRepository handles medicine batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new batch. A unique violation on the
// (medicine_name, batch_number) index maps to a conflict error.
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicine_batches (
			id, medicine_name, batch_number, quantity, selling_price, purchase_price,
			expiry_date, manufacturing_date, company, rack_location, selling_unit, is_narcotic
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		batch.ID, batch.MedicineName, batch.BatchNumber, batch.Quantity,
		batch.SellingPrice, batch.PurchasePrice, batch.ExpiryDate,
		batch.ManufacturingDate, batch.Company, batch.RackLocation,
		batch.SellingUnit, batch.IsNarcotic,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `SELECT * FROM medicine_batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// List lists batches ordered by medicine name then expiry, earliest
// expiry first with absent expiry dates last.
func (r *BatchRepository) List(ctx context.Context, limit, offset int) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT * FROM medicine_batches
		ORDER BY LOWER(medicine_name), expiry_date ASC NULLS LAST, created_at
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &batches, query, limit, offset); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListAll lists every batch. Used by the grouped inventory view, which
// has to partition the whole stock by medicine.
func (r *BatchRepository) ListAll(ctx context.Context) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `SELECT * FROM medicine_batches ORDER BY LOWER(medicine_name), expiry_date ASC NULLS LAST`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByMedicine lists the batches of one medicine in first-expiry
// order. Name matching is case-insensitive via the lower(medicine_name)
// index.
func (r *BatchRepository) ListByMedicine(ctx context.Context, medicineName string) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT * FROM medicine_batches
		WHERE LOWER(medicine_name) = LOWER($1)
		ORDER BY expiry_date ASC NULLS LAST, created_at
	`
	if err := r.db.SelectContext(ctx, &batches, query, medicineName); err != nil {
		return nil, err
	}
	return batches, nil
}

// FindByNameAndBatch looks up the single batch matching both the
// medicine name and the batch number, case-insensitively. Returns a
// not-found error when no row matches so callers can tell a definite
// miss from a failed read.
func (r *BatchRepository) FindByNameAndBatch(ctx context.Context, medicineName, batchNumber string) (*domain.Batch, error) {
	var batch domain.Batch
	query := `
		SELECT * FROM medicine_batches
		WHERE LOWER(medicine_name) = LOWER($1) AND LOWER(batch_number) = LOWER($2)
	`
	if err := r.db.GetContext(ctx, &batch, query, medicineName, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ExistsByMedicine reports whether any batch of the medicine exists,
// regardless of batch number.
func (r *BatchRepository) ExistsByMedicine(ctx context.Context, medicineName string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM medicine_batches WHERE LOWER(medicine_name) = LOWER($1))`
	if err := r.db.GetContext(ctx, &exists, query, medicineName); err != nil {
		return false, err
	}
	return exists, nil
}

// ApplyMerge persists a computed merge as a single conditional update.
// The quantity predicate guards against a concurrent change between
// reading the batch and writing the merge: zero rows affected means
// the batch moved underneath us and the caller must retry.
func (r *BatchRepository) ApplyMerge(ctx context.Context, batchID string, expectedQuantity int, newQuantity int, sellingPrice, purchasePrice decimal.Decimal, expiryDate *time.Time, manufacturingDate time.Time) error {
	query := `
		UPDATE medicine_batches SET
			quantity = $3, selling_price = $4, purchase_price = $5,
			expiry_date = $6, manufacturing_date = $7, updated_at = NOW()
		WHERE id = $1 AND quantity = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		batchID, expectedQuantity, newQuantity,
		sellingPrice, purchasePrice, expiryDate, manufacturingDate,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Conflict("batch was modified concurrently, retry the merge")
	}
	return nil
}

// QuantityChange is one conditional decrement of a committed
// allocation, keyed on the quantity read during planning.
type QuantityChange struct {
	BatchID          string
	ExpectedQuantity int
	NewQuantity      int
}

// ApplyAllocations applies the decrements of a committed allocation in
// a single transaction, each with the same concurrency guard as
// ApplyMerge. If any batch changed since it was read, the whole set
// rolls back and a conflict is returned, leaving stock untouched.
func (r *BatchRepository) ApplyAllocations(ctx context.Context, changes []QuantityChange) error {
	query := `
		UPDATE medicine_batches SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND quantity = $2
	`
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, c := range changes {
			result, err := tx.ExecContext(ctx, query, c.BatchID, c.ExpectedQuantity, c.NewQuantity)
			if err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rows == 0 {
				return errors.Conflict("batch was modified concurrently, retry the allocation")
			}
		}
		return nil
	})
}

// Update updates a batch's descriptive fields
func (r *BatchRepository) Update(ctx context.Context, batch *domain.Batch) error {
	query := `
		UPDATE medicine_batches SET
			quantity = $2, selling_price = $3, purchase_price = $4, expiry_date = $5,
			manufacturing_date = $6, company = $7, rack_location = $8,
			selling_unit = $9, is_narcotic = $10, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.Quantity, batch.SellingPrice, batch.PurchasePrice,
		batch.ExpiryDate, batch.ManufacturingDate, batch.Company,
		batch.RackLocation, batch.SellingUnit, batch.IsNarcotic,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// Delete deletes a batch
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medicine_batches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("batch")
	}
	return nil
}

// GetExpiringBatches returns stocked batches whose expiry date falls
// between today and the given horizon, soonest first.
func (r *BatchRepository) GetExpiringBatches(ctx context.Context, from, until time.Time) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT * FROM medicine_batches
		WHERE quantity > 0
		  AND expiry_date IS NOT NULL
		  AND expiry_date >= $1 AND expiry_date <= $2
		ORDER BY expiry_date ASC
	`
	if err := r.db.SelectContext(ctx, &batches, query, from, until); err != nil {
		return nil, err
	}
	return batches, nil
}

// GetExpiredBatches returns stocked batches already past their expiry date
func (r *BatchRepository) GetExpiredBatches(ctx context.Context, asOf time.Time) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT * FROM medicine_batches
		WHERE quantity > 0 AND expiry_date IS NOT NULL AND expiry_date < $1
		ORDER BY expiry_date ASC
	`
	if err := r.db.SelectContext(ctx, &batches, query, asOf); err != nil {
		return nil, err
	}
	return batches, nil
}

// DashboardStats aggregates counts for the inventory dashboard
type DashboardStats struct {
	TotalBatches    int `db:"total_batches" json:"total_batches"`
	TotalMedicines  int `db:"total_medicines" json:"total_medicines"`
	OutOfStock      int `db:"out_of_stock" json:"out_of_stock"`
	ExpiredBatches  int `db:"expired_batches" json:"expired_batches"`
	ExpiringSoon    int `db:"expiring_soon" json:"expiring_soon"`
	NarcoticBatches int `db:"narcotic_batches" json:"narcotic_batches"`
}

// GetDashboardStats computes dashboard aggregates in a single query
func (r *BatchRepository) GetDashboardStats(ctx context.Context, asOf time.Time, expiryHorizon time.Time) (*DashboardStats, error) {
	var stats DashboardStats
	query := `
		SELECT
			COUNT(*) AS total_batches,
			COUNT(DISTINCT LOWER(medicine_name)) AS total_medicines,
			COUNT(*) FILTER (WHERE quantity = 0) AS out_of_stock,
			COUNT(*) FILTER (WHERE quantity > 0 AND expiry_date < $1) AS expired_batches,
			COUNT(*) FILTER (WHERE quantity > 0 AND expiry_date >= $1 AND expiry_date <= $2) AS expiring_soon,
			COUNT(*) FILTER (WHERE is_narcotic) AS narcotic_batches
		FROM medicine_batches
	`
	if err := r.db.GetContext(ctx, &stats, query, asOf, expiryHorizon); err != nil {
		return nil, err
	}
	return &stats, nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/stock"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// EventPublisher publishes stock lifecycle events.
// *events.StockEventPublisher implements it.
type EventPublisher interface {
	PublishBatchCreated(ctx context.Context, batch *domain.Batch, performedBy string)
	PublishStockMerged(ctx context.Context, batch *domain.Batch, outcome *domain.MergeOutcome, performedBy string)
	PublishStockAllocated(ctx context.Context, medicineName string, requested int, result *domain.AllocationResult, performedBy string)
	PublishBatchExpiring(ctx context.Context, batch *domain.Batch, daysUntil int)
	PublishAlertGenerated(ctx context.Context, alert *repository.StockAlert)
}

// StockService handles batch inventory business logic
type StockService struct {
	batchRepo        *repository.BatchRepository
	auditRepo        *repository.MergeAuditRepository
	publisher        EventPublisher
	logger           *logger.Logger
	expiryWindowDays int

	// now supplies the reference date; overridable in tests
	now func() time.Time
}

// NewStockService creates a new stock service
func NewStockService(
	batchRepo *repository.BatchRepository,
	auditRepo *repository.MergeAuditRepository,
	publisher EventPublisher,
	log *logger.Logger,
	expiryWindowDays int,
) *StockService {
	return &StockService{
		batchRepo:        batchRepo,
		auditRepo:        auditRepo,
		publisher:        publisher,
		logger:           log,
		expiryWindowDays: expiryWindowDays,
		now:              time.Now,
	}
}

// Batch operations

// CreateBatch creates a new batch
func (s *StockService) CreateBatch(ctx context.Context, batch *domain.Batch, performedBy string) error {
	batch.MedicineName = strings.TrimSpace(batch.MedicineName)
	batch.BatchNumber = strings.TrimSpace(batch.BatchNumber)

	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return err
	}

	s.publisher.PublishBatchCreated(ctx, batch, performedBy)
	return nil
}

// GetBatch gets a batch by ID
func (s *StockService) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// ListBatches lists batches with pagination
func (s *StockService) ListBatches(ctx context.Context, limit, offset int) ([]*domain.Batch, error) {
	return s.batchRepo.List(ctx, limit, offset)
}

// ListBatchesByMedicine lists the batches of one medicine in first-expiry order
func (s *StockService) ListBatchesByMedicine(ctx context.Context, medicineName string) ([]*domain.Batch, error) {
	return s.batchRepo.ListByMedicine(ctx, medicineName)
}

// UpdateBatch updates a batch
func (s *StockService) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	return s.batchRepo.Update(ctx, batch)
}

// DeleteBatch deletes a batch
func (s *StockService) DeleteBatch(ctx context.Context, id string) error {
	return s.batchRepo.Delete(ctx, id)
}

// CheckForDuplicate checks whether a new stock entry collides with an
// existing batch. Matching is case-insensitive on both medicine name
// and batch number. The check fails open: if the store cannot be read
// the error is logged and the entry is treated as new, since blocking
// stock intake on a read failure is worse than a duplicate row that a
// later merge can reconcile.
func (s *StockService) CheckForDuplicate(ctx context.Context, medicineName, batchNumber string) *domain.DuplicateCheckResult {
	medicineName = strings.TrimSpace(medicineName)
	batchNumber = strings.TrimSpace(batchNumber)

	result := &domain.DuplicateCheckResult{}

	batch, err := s.batchRepo.FindByNameAndBatch(ctx, medicineName, batchNumber)
	if err == nil {
		result.IsDuplicate = true
		result.ExistingBatch = batch
		return result
	}
	if !errors.Is(err, errors.ErrNotFound) {
		s.logger.Error().Err(err).
			Str("medicine_name", medicineName).
			Str("batch_number", batchNumber).
			Msg("duplicate check failed, treating entry as new")
		return result
	}

	exists, err := s.batchRepo.ExistsByMedicine(ctx, medicineName)
	if err != nil {
		s.logger.Error().Err(err).
			Str("medicine_name", medicineName).
			Msg("same-name lookup failed, treating entry as new")
		return result
	}
	result.SameNameDifferentBatch = exists
	return result
}

// MergeStock merges incoming stock into an existing batch. The write
// is a conditional update keyed on the quantity read here, so a
// concurrent change surfaces as a conflict instead of a lost update.
// The audit entry is best effort: a failed audit write is logged but
// never fails a merge that already happened.
func (s *StockService) MergeStock(ctx context.Context, batchID string, incoming domain.IncomingStock, performedBy string) (*domain.MergeOutcome, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	plan, err := stock.ComputeMerge(batch, incoming, s.now())
	if err != nil {
		return nil, err
	}

	err = s.batchRepo.ApplyMerge(ctx, batch.ID, plan.PreviousQuantity, plan.NewTotalQuantity,
		plan.NewSellingPrice, plan.NewPurchasePrice, plan.ExpiryDate, plan.ManufacturingDate)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("merged %d units into batch %s", plan.AddedQuantity, batch.BatchNumber)
	entry := &repository.MergeAuditEntry{
		BatchID:          batch.ID,
		MedicineName:     batch.MedicineName,
		BatchNumber:      batch.BatchNumber,
		PreviousQuantity: plan.PreviousQuantity,
		AddedQuantity:    plan.AddedQuantity,
		NewQuantity:      plan.NewTotalQuantity,
		PreviousSelling:  plan.PreviousSelling,
		NewSellingPrice:  plan.NewSellingPrice,
		PreviousPurchase: plan.PreviousPurchase,
		NewPurchasePrice: plan.NewPurchasePrice,
		ExpiryDivergence: plan.ExpiryDivergenceWarning,
		PerformedBy:      performedBy,
		Note:             &note,
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("batch_id", batch.ID).
			Msg("failed to write merge audit entry")
	}

	outcome := &domain.MergeOutcome{
		BatchID:                 batch.ID,
		PreviousQuantity:        plan.PreviousQuantity,
		AddedQuantity:           plan.AddedQuantity,
		NewTotalQuantity:        plan.NewTotalQuantity,
		NewSellingPrice:         plan.NewSellingPrice,
		NewPurchasePrice:        plan.NewPurchasePrice,
		ExpiryDate:              plan.ExpiryDate,
		ExpiryDivergenceWarning: plan.ExpiryDivergenceWarning,
	}

	if plan.ExpiryDivergenceWarning {
		s.logger.Warn().
			Str("batch_id", batch.ID).
			Str("medicine_name", batch.MedicineName).
			Msg("merged stock with expiry dates more than 30 days apart")
	}

	s.publisher.PublishStockMerged(ctx, batch, outcome, performedBy)
	return outcome, nil
}

// ListMergeAudit lists the merge history of a batch, newest first
func (s *StockService) ListMergeAudit(ctx context.Context, batchID string, limit, offset int) ([]*repository.MergeAuditEntry, int, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, 0, err
	}

	entries, err := s.auditRepo.ListByBatch(ctx, batchID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.auditRepo.CountByBatch(ctx, batchID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// AllocateFEFO plans a first-expiry-first-out allocation for the
// requested quantity. With commit set, the plan is applied as a single
// transaction of conditional decrements against the quantities read
// during planning, so a concurrently modified batch aborts the whole
// commit with a conflict and no stock is deducted.
func (s *StockService) AllocateFEFO(ctx context.Context, medicineName string, quantity int, commit bool, performedBy string) (*domain.AllocationResult, error) {
	batches, err := s.batchRepo.ListByMedicine(ctx, medicineName)
	if err != nil {
		return nil, err
	}

	result := stock.SelectBatchesFEFO(medicineName, quantity, batches, s.now())
	if !commit {
		return result, nil
	}

	byID := make(map[string]*domain.Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	changes := make([]repository.QuantityChange, 0, len(result.Allocations))
	for _, alloc := range result.Allocations {
		batch := byID[alloc.BatchID]
		changes = append(changes, repository.QuantityChange{
			BatchID:          batch.ID,
			ExpectedQuantity: batch.Quantity,
			NewQuantity:      batch.Quantity - alloc.Quantity,
		})
	}
	if err := s.batchRepo.ApplyAllocations(ctx, changes); err != nil {
		return nil, err
	}

	s.publisher.PublishStockAllocated(ctx, medicineName, quantity, result, performedBy)
	return result, nil
}

// BestBatch returns the batch a sale should draw from first
func (s *StockService) BestBatch(ctx context.Context, medicineName string) (*domain.Batch, error) {
	batches, err := s.batchRepo.ListByMedicine(ctx, medicineName)
	if err != nil {
		return nil, err
	}

	best := stock.BestBatchFEFO(medicineName, batches, s.now())
	if best == nil {
		return nil, errors.NotFound("sellable batch")
	}
	return best, nil
}

// GroupedByMedicine returns the whole inventory partitioned by
// medicine name, each group in first-expiry order
func (s *StockService) GroupedByMedicine(ctx context.Context) (map[string][]*domain.Batch, error) {
	batches, err := s.batchRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return stock.GroupByMedicine(batches), nil
}

// DashboardStats returns inventory dashboard aggregates
func (s *StockService) DashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	today := stock.StartOfDay(s.now())
	horizon := today.AddDate(0, 0, s.expiryWindowDays)
	return s.batchRepo.GetDashboardStats(ctx, today, horizon)
}

package events

import (
	"context"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
	"github.com/pharmstock/pharmstock-backend/pkg/messaging"
)

// StockEventPublisher publishes stock-related events. A nil publisher
// is valid and drops every event, so callers can run without RabbitMQ.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishBatchCreated publishes a batch created event
func (p *StockEventPublisher) PublishBatchCreated(ctx context.Context, batch *domain.Batch, performedBy string) {
	if p == nil {
		return
	}

	data := messaging.BatchCreatedEvent{
		BatchID:      batch.ID,
		MedicineName: batch.MedicineName,
		BatchNumber:  batch.BatchNumber,
		Quantity:     batch.Quantity,
		PerformedBy:  performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCreated, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch created event")
	}
}

// PublishStockMerged publishes a stock merged event
func (p *StockEventPublisher) PublishStockMerged(ctx context.Context, batch *domain.Batch, outcome *domain.MergeOutcome, performedBy string) {
	if p == nil {
		return
	}

	data := messaging.StockMergedEvent{
		BatchID:          batch.ID,
		MedicineName:     batch.MedicineName,
		BatchNumber:      batch.BatchNumber,
		PreviousQuantity: outcome.PreviousQuantity,
		AddedQuantity:    outcome.AddedQuantity,
		NewQuantity:      outcome.NewTotalQuantity,
		PerformedBy:      performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockMerged, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish stock merged event")
	}
}

// PublishStockAllocated publishes a committed allocation
func (p *StockEventPublisher) PublishStockAllocated(ctx context.Context, medicineName string, requested int, result *domain.AllocationResult, performedBy string) {
	if p == nil {
		return
	}

	batches := make(map[string]int, len(result.Allocations))
	for _, a := range result.Allocations {
		batches[a.BatchID] = a.Quantity
	}

	data := messaging.StockAllocatedEvent{
		MedicineName:      medicineName,
		RequestedQuantity: requested,
		AllocatedQuantity: result.AllocatedQuantity(),
		Batches:           batches,
		PerformedBy:       performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAllocated, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_name", medicineName).Msg("failed to publish stock allocated event")
	}
}

// PublishBatchExpiring publishes a batch expiring event
func (p *StockEventPublisher) PublishBatchExpiring(ctx context.Context, batch *domain.Batch, daysUntil int) {
	if p == nil {
		return
	}
	if batch.ExpiryDate == nil {
		return
	}

	data := messaging.BatchExpiringEvent{
		BatchID:      batch.ID,
		MedicineName: batch.MedicineName,
		BatchNumber:  batch.BatchNumber,
		ExpiryDate:   *batch.ExpiryDate,
		DaysUntil:    daysUntil,
		Quantity:     batch.Quantity,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchExpiring, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish batch expiring event")
	}
}

// PublishAlertGenerated publishes an alert generated event
func (p *StockEventPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.StockAlert) {
	if p == nil {
		return
	}

	data := messaging.AlertGeneratedEvent{
		AlertID:      alert.ID,
		AlertType:    alert.AlertType,
		Severity:     alert.Severity,
		Message:      alert.Message,
		MedicineName: alert.MedicineName,
		BatchID:      alert.BatchID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAlertGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert generated event")
	}
}

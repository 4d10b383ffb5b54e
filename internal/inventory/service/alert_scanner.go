package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/repository"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/stock"
	"github.com/pharmstock/pharmstock-backend/pkg/config"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// AlertScanner scans stocked batches and raises expiry alerts with
// deduplication: an unacknowledged alert of the same type for the same
// batch suppresses a new one.
type AlertScanner struct {
	batchRepo *repository.BatchRepository
	alertRepo *repository.AlertRepository
	publisher EventPublisher
	cfg       config.AlertsConfig
	logger    *logger.Logger

	// now supplies the reference date; overridable in tests
	now func() time.Time
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(
	batchRepo *repository.BatchRepository,
	alertRepo *repository.AlertRepository,
	publisher EventPublisher,
	cfg config.AlertsConfig,
	log *logger.Logger,
) *AlertScanner {
	return &AlertScanner{
		batchRepo: batchRepo,
		alertRepo: alertRepo,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

// ScanAll runs all alert scans. Logs errors but continues scanning.
func (s *AlertScanner) ScanAll(ctx context.Context) error {
	scanners := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"expired", s.scanExpired},
		{"expiring", s.scanExpiring},
	}

	var lastErr error
	for _, scanner := range scanners {
		if err := scanner.fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("scanner", scanner.name).Msg("alert scan failed")
			lastErr = err
		}
	}

	return lastErr
}

// scanExpired raises a critical alert for every stocked batch already
// past its expiry date
func (s *AlertScanner) scanExpired(ctx context.Context) error {
	today := stock.StartOfDay(s.now())

	batches, err := s.batchRepo.GetExpiredBatches(ctx, today)
	if err != nil {
		return fmt.Errorf("scanExpired: get expired batches: %w", err)
	}

	for _, batch := range batches {
		daysUntil := stock.DaysUntilExpiry(*batch.ExpiryDate, today)
		message := fmt.Sprintf("%s batch %s expired on %s, %d units still in stock",
			batch.MedicineName, batch.BatchNumber, batch.ExpiryDate.Format("2006-01-02"), batch.Quantity)

		s.raiseAlert(ctx, batch, repository.AlertTypeExpired, repository.SeverityCritical, message, daysUntil)
	}

	return nil
}

// scanExpiring raises alerts for stocked batches expiring within the
// configured window. Batches inside the critical threshold are
// critical, the rest are warnings.
func (s *AlertScanner) scanExpiring(ctx context.Context) error {
	today := stock.StartOfDay(s.now())
	horizon := today.AddDate(0, 0, s.cfg.ExpiryWindowDays)

	batches, err := s.batchRepo.GetExpiringBatches(ctx, today, horizon)
	if err != nil {
		return fmt.Errorf("scanExpiring: get expiring batches: %w", err)
	}

	for _, batch := range batches {
		daysUntil := stock.DaysUntilExpiry(*batch.ExpiryDate, today)

		severity := repository.SeverityWarning
		if daysUntil <= s.cfg.CriticalDays {
			severity = repository.SeverityCritical
		}

		message := fmt.Sprintf("%s batch %s expires in %d days",
			batch.MedicineName, batch.BatchNumber, daysUntil)

		s.raiseAlert(ctx, batch, repository.AlertTypeExpiring, severity, message, daysUntil)
		s.publisher.PublishBatchExpiring(ctx, batch, daysUntil)
	}

	return nil
}

// raiseAlert creates an alert unless an unacknowledged one of the same
// type already exists for the batch
func (s *AlertScanner) raiseAlert(ctx context.Context, batch *domain.Batch, alertType, severity, message string, daysUntil int) {
	exists, err := s.alertRepo.ExistsByTypeAndBatch(ctx, alertType, batch.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("batch_id", batch.ID).Str("alert_type", alertType).Msg("failed to check existing alert")
		return
	}
	if exists {
		return
	}

	alert := &repository.StockAlert{
		AlertType:       alertType,
		BatchID:         batch.ID,
		MedicineName:    batch.MedicineName,
		BatchNumber:     batch.BatchNumber,
		Severity:        severity,
		Message:         message,
		ExpiryDate:      batch.ExpiryDate,
		DaysUntilExpiry: &daysUntil,
		Quantity:        batch.Quantity,
	}

	if err := s.alertRepo.Create(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("batch_id", batch.ID).Str("alert_type", alertType).Msg("failed to create alert")
		return
	}

	s.publisher.PublishAlertGenerated(ctx, alert)
}

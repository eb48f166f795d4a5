package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
)

// ExpiryScanner periodically walks every pharmacy's stock and raises
// expiring-soon alerts. The dedup key makes each alert idempotent per
// batch and day, so overlapping scans and restarts cannot double-alert.
type ExpiryScanner struct {
	batches    *repository.BatchRepository
	notifier   *Notifier
	windowDays int
	logger     *logger.Logger
	now        func() time.Time
}

// NewExpiryScanner creates a new expiry scanner
func NewExpiryScanner(batches *repository.BatchRepository, notifier *Notifier, windowDays int, log *logger.Logger) *ExpiryScanner {
	return &ExpiryScanner{
		batches:    batches,
		notifier:   notifier,
		windowDays: windowDays,
		logger:     log,
		now:        time.Now,
	}
}

// ScanAll scans every pharmacy with stock on the books. Logs per-pharmacy
// failures but keeps going.
func (s *ExpiryScanner) ScanAll(ctx context.Context) error {
	pharmacyIDs, err := s.batches.Pharmacies(ctx)
	if err != nil {
		return fmt.Errorf("expiry scan: list pharmacies: %w", err)
	}

	var lastErr error
	for _, pharmacyID := range pharmacyIDs {
		if err := s.ScanPharmacy(ctx, pharmacyID); err != nil {
			s.logger.Error().Err(err).Str("pharmacy_id", pharmacyID).Msg("expiry scan failed for pharmacy")
			lastErr = err
		}
	}

	return lastErr
}

// ScanPharmacy raises an expiring-soon alert for each batch of one
// pharmacy that falls inside the scan window
func (s *ExpiryScanner) ScanPharmacy(ctx context.Context, pharmacyID string) error {
	batches, err := s.batches.ExpiringWithin(ctx, pharmacyID, s.windowDays)
	if err != nil {
		return fmt.Errorf("expiry scan: query batches: %w", err)
	}

	today := s.now()
	day := today.Format("2006-01-02")
	emitted := 0

	for _, batch := range batches {
		health := EvaluateHealth(&batch.Batch, today)
		created, err := s.notifier.EmitExpiringSoon(ctx, batch, health.DaysToExpiry, day)
		if err != nil {
			s.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to emit expiry alert")
			continue
		}
		if created {
			emitted++
		}
	}

	s.logger.Info().
		Str("pharmacy_id", pharmacyID).
		Int("batches_in_window", len(batches)).
		Int("alerts_emitted", emitted).
		Msg("expiry scan completed")

	return nil
}

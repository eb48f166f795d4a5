package service

import (
	"context"
	"time"

	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
)

// ScanScheduler runs the expiry scanner on a fixed interval
type ScanScheduler struct {
	scanner  *ExpiryScanner
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewScanScheduler creates a new scan scheduler
func NewScanScheduler(scanner *ExpiryScanner, interval time.Duration, log *logger.Logger) *ScanScheduler {
	return &ScanScheduler{
		scanner:  scanner,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine
func (s *ScanScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("scan scheduler started")

		// Run an initial scan immediately
		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scan scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *ScanScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *ScanScheduler) runCycle(ctx context.Context) {
	start := time.Now()

	if err := s.scanner.ScanAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scan cycle finished with errors")
	}

	s.logger.Info().Dur("duration", time.Since(start)).Msg("scan cycle completed")
}

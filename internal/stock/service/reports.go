package service

import (
	"context"
	"time"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
)

// BatchReportEntry is a batch joined with its medicine and health signals
type BatchReportEntry struct {
	*repository.BatchWithMedicine
	Health Health `json:"health"`
}

// ExpiryReport lists batches expiring within a window plus the stock
// value that would be lost if none of it sells
type ExpiryReport struct {
	Days             int                 `json:"days"`
	Batches          []*BatchReportEntry `json:"batches"`
	TotalValueAtRisk float64             `json:"total_value_at_risk"`
}

// Reports is the read-only query surface for stock-health reporting.
// It takes no locks and may trail the ledger by in-flight transactions.
type Reports struct {
	batches *repository.BatchRepository
	now     func() time.Time
}

// NewReports creates a new reports service
func NewReports(batches *repository.BatchRepository) *Reports {
	return &Reports{
		batches: batches,
		now:     time.Now,
	}
}

// LowStock returns batches below their minimum threshold, worst
// shortage first
func (r *Reports) LowStock(ctx context.Context, pharmacyID string) ([]*BatchReportEntry, error) {
	batches, err := r.batches.LowStock(ctx, pharmacyID)
	if err != nil {
		return nil, err
	}
	return r.withHealth(batches), nil
}

// ExpiringWithin returns unexpired batches expiring inside the window,
// soonest first, with the aggregate value at risk
func (r *Reports) ExpiringWithin(ctx context.Context, pharmacyID string, days int) (*ExpiryReport, error) {
	batches, err := r.batches.ExpiringWithin(ctx, pharmacyID, days)
	if err != nil {
		return nil, err
	}

	entries := r.withHealth(batches)

	var totalValue float64
	for _, e := range entries {
		if e.UnitPrice != nil {
			totalValue += float64(e.QuantityAvailable) * *e.UnitPrice
		}
	}

	return &ExpiryReport{
		Days:             days,
		Batches:          entries,
		TotalValueAtRisk: totalValue,
	}, nil
}

func (r *Reports) withHealth(batches []*repository.BatchWithMedicine) []*BatchReportEntry {
	now := r.now()
	entries := make([]*BatchReportEntry, len(batches))
	for i, b := range batches {
		entries[i] = &BatchReportEntry{
			BatchWithMedicine: b,
			Health:            EvaluateHealth(&b.Batch, now),
		}
	}
	return entries
}

package service

import (
	"time"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
)

// Health holds the derived stock-health signals for one batch at one
// point in time. It is computed, never stored, so the mutation path and
// the report queries can never disagree about what "low" means.
type Health struct {
	IsLowStock   bool `json:"is_low_stock"`
	IsExpired    bool `json:"is_expired"`
	DaysToExpiry int  `json:"days_to_expiry"`
	Shortage     int  `json:"shortage"`
}

// EvaluateHealth computes health signals for a batch as of the given day.
// A batch is low when available stock is strictly below its minimum
// threshold. Reserved quantity does not count toward the threshold; it is
// already spoken for.
func EvaluateHealth(batch *repository.Batch, today time.Time) Health {
	today = truncateToDay(today)
	expiry := truncateToDay(batch.ExpiryDate)

	shortage := batch.MinimumThreshold - batch.QuantityAvailable
	if shortage < 0 {
		shortage = 0
	}

	return Health{
		IsLowStock:   batch.QuantityAvailable < batch.MinimumThreshold,
		IsExpired:    expiry.Before(today),
		DaysToExpiry: int(expiry.Sub(today).Hours() / 24),
		Shortage:     shortage,
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

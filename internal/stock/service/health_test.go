package service_test

import (
	"testing"
	"time"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/service"
	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEvaluateHealth_Healthy(t *testing.T) {
	batch := &repository.Batch{
		QuantityAvailable: 50,
		MinimumThreshold:  10,
		ExpiryDate:        day("2026-12-01"),
	}

	h := service.EvaluateHealth(batch, day("2026-01-01"))

	assert.False(t, h.IsLowStock)
	assert.False(t, h.IsExpired)
	assert.Equal(t, 334, h.DaysToExpiry)
	assert.Equal(t, 0, h.Shortage)
}

func TestEvaluateHealth_LowStockIsStrictlyBelowThreshold(t *testing.T) {
	atThreshold := &repository.Batch{
		QuantityAvailable: 10,
		MinimumThreshold:  10,
		ExpiryDate:        day("2027-01-01"),
	}
	belowThreshold := &repository.Batch{
		QuantityAvailable: 9,
		MinimumThreshold:  10,
		ExpiryDate:        day("2027-01-01"),
	}

	assert.False(t, service.EvaluateHealth(atThreshold, day("2026-01-01")).IsLowStock)

	h := service.EvaluateHealth(belowThreshold, day("2026-01-01"))
	assert.True(t, h.IsLowStock)
	assert.Equal(t, 1, h.Shortage)
}

func TestEvaluateHealth_ReservedDoesNotCountTowardThreshold(t *testing.T) {
	batch := &repository.Batch{
		QuantityAvailable: 3,
		QuantityReserved:  20,
		MinimumThreshold:  10,
		ExpiryDate:        day("2027-01-01"),
	}

	h := service.EvaluateHealth(batch, day("2026-01-01"))

	assert.True(t, h.IsLowStock)
	assert.Equal(t, 7, h.Shortage)
}

func TestEvaluateHealth_Expiry(t *testing.T) {
	batch := &repository.Batch{
		QuantityAvailable: 50,
		MinimumThreshold:  10,
		ExpiryDate:        day("2026-06-15"),
	}

	before := service.EvaluateHealth(batch, day("2026-06-14"))
	assert.False(t, before.IsExpired)
	assert.Equal(t, 1, before.DaysToExpiry)

	onDay := service.EvaluateHealth(batch, day("2026-06-15"))
	assert.False(t, onDay.IsExpired)
	assert.Equal(t, 0, onDay.DaysToExpiry)

	after := service.EvaluateHealth(batch, day("2026-06-16"))
	assert.True(t, after.IsExpired)
	assert.Equal(t, -1, after.DaysToExpiry)
}

func TestDetectCrossing_HealthyToLowFiresHigh(t *testing.T) {
	before := service.Health{IsLowStock: false}
	after := service.Health{IsLowStock: true}

	c := service.DetectCrossing(before, after, 12, 7)

	assert.True(t, c.Fired)
	assert.Equal(t, repository.PriorityHigh, c.Priority)
}

func TestDetectCrossing_LowToLowerFiresNothing(t *testing.T) {
	before := service.Health{IsLowStock: true}
	after := service.Health{IsLowStock: true}

	c := service.DetectCrossing(before, after, 7, 2)

	assert.False(t, c.Fired)
}

func TestDetectCrossing_HealthyToHealthyFiresNothing(t *testing.T) {
	before := service.Health{IsLowStock: false}
	after := service.Health{IsLowStock: false}

	c := service.DetectCrossing(before, after, 50, 40)

	assert.False(t, c.Fired)
}

func TestDetectCrossing_ReachingZeroFiresCritical(t *testing.T) {
	before := service.Health{IsLowStock: true}
	after := service.Health{IsLowStock: true}

	c := service.DetectCrossing(before, after, 2, 0)

	assert.True(t, c.Fired)
	assert.Equal(t, repository.PriorityCritical, c.Priority)
}

func TestDetectCrossing_CriticalOverridesHigh(t *testing.T) {
	// One mutation takes the batch from healthy straight to empty
	before := service.Health{IsLowStock: false}
	after := service.Health{IsLowStock: true}

	c := service.DetectCrossing(before, after, 15, 0)

	assert.True(t, c.Fired)
	assert.Equal(t, repository.PriorityCritical, c.Priority)
}

func TestDetectCrossing_StayingAtZeroFiresNothing(t *testing.T) {
	before := service.Health{IsLowStock: true}
	after := service.Health{IsLowStock: true}

	c := service.DetectCrossing(before, after, 0, 0)

	assert.False(t, c.Fired)
}

func TestDetectCreationCrossing(t *testing.T) {
	tests := []struct {
		name         string
		available    int
		low          bool
		wantFired    bool
		wantPriority repository.Priority
	}{
		{"healthy batch", 100, false, false, ""},
		{"born low", 5, true, true, repository.PriorityHigh},
		{"born empty", 0, true, true, repository.PriorityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := service.DetectCreationCrossing(service.Health{IsLowStock: tt.low}, tt.available)
			assert.Equal(t, tt.wantFired, c.Fired)
			if tt.wantFired {
				assert.Equal(t, tt.wantPriority, c.Priority)
			}
		})
	}
}

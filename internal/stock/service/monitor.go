package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
	"github.com/pharmaflow/pharmaflow-backend/pkg/messaging"
)

// EventPublisher publishes domain events. Satisfied by messaging.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Crossing describes a stock-health transition caused by one mutation.
// A crossing fires an alert; a level that merely stays low does not.
type Crossing struct {
	Fired    bool
	Priority repository.Priority
}

// DetectCrossing compares health signals from before and after a mutation.
// Rules:
//   - stock hitting exactly zero from a positive level fires Critical,
//     overriding the low-stock High
//   - healthy to low fires High
//   - low to lower, or healthy to healthy, fires nothing
func DetectCrossing(before, after Health, availableBefore, availableAfter int) Crossing {
	if availableAfter == 0 && availableBefore > 0 {
		return Crossing{Fired: true, Priority: repository.PriorityCritical}
	}
	if !before.IsLowStock && after.IsLowStock {
		return Crossing{Fired: true, Priority: repository.PriorityHigh}
	}
	return Crossing{}
}

// DetectCreationCrossing evaluates a freshly created batch. A batch born
// below its threshold counts as a crossing; there was no earlier healthy
// state, but the condition is new to the system.
func DetectCreationCrossing(health Health, available int) Crossing {
	if available == 0 {
		return Crossing{Fired: true, Priority: repository.PriorityCritical}
	}
	if health.IsLowStock {
		return Crossing{Fired: true, Priority: repository.PriorityHigh}
	}
	return Crossing{}
}

// Notifier creates stock alerts and announces them on the event bus
type Notifier struct {
	notifications *repository.NotificationRepository
	publisher     EventPublisher
	logger        *logger.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(notifications *repository.NotificationRepository, publisher EventPublisher, log *logger.Logger) *Notifier {
	return &Notifier{
		notifications: notifications,
		publisher:     publisher,
		logger:        log,
	}
}

// Emit persists a notification and publishes an alert event. When the
// notification carries a dedup key that has already been used, nothing is
// inserted and no event goes out.
func (n *Notifier) Emit(ctx context.Context, notification *repository.Notification) (bool, error) {
	created, err := n.notifications.Create(ctx, notification)
	if err != nil {
		return false, err
	}
	if !created {
		n.logger.Debug().
			Str("pharmacy_id", notification.PharmacyID).
			Str("type", string(notification.Type)).
			Msg("duplicate alert suppressed")
		return false, nil
	}

	if n.publisher != nil {
		event := messaging.AlertCreatedEvent{
			NotificationID: notification.ID,
			PharmacyID:     notification.PharmacyID,
			Type:           notification.Type,
			Priority:       notification.Priority,
			Title:          notification.Title,
		}
		if err := n.publisher.Publish(ctx, messaging.EventAlertCreated, event); err != nil {
			// The alert is durable either way; event delivery is best effort
			n.logger.Warn().Err(err).Msg("failed to publish alert event")
		}
	}

	return true, nil
}

// EmitStockCrossing builds and emits the alert for a threshold crossing
func (n *Notifier) EmitStockCrossing(ctx context.Context, batch *repository.Batch, medicineName string, health Health, crossing Crossing) error {
	if !crossing.Fired {
		return nil
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"batch_id":           batch.ID,
		"medicine_id":        batch.MedicineID,
		"medicine_name":      medicineName,
		"batch_number":       batch.BatchNumber,
		"quantity_available": batch.QuantityAvailable,
		"minimum_threshold":  batch.MinimumThreshold,
		"shortage":           health.Shortage,
	})

	notification := &repository.Notification{
		PharmacyID:     batch.PharmacyID,
		Priority:       crossing.Priority,
		Data:           payload,
		ActionRequired: true,
	}

	if crossing.Priority == repository.PriorityCritical {
		notification.Type = repository.TypeOutOfStock
		notification.Title = fmt.Sprintf("Out of Stock: %s", medicineName)
		notification.Message = fmt.Sprintf(
			"%s (batch %s) has no available stock left. Reorder immediately.",
			medicineName, batch.BatchNumber)
	} else {
		notification.Type = repository.TypeLowStock
		notification.Title = fmt.Sprintf("Low Stock Alert: %s", medicineName)
		notification.Message = fmt.Sprintf(
			"%s (batch %s) is running low: %d available, minimum threshold %d.",
			medicineName, batch.BatchNumber, batch.QuantityAvailable, batch.MinimumThreshold)
	}

	// Crossings carry no dedup key; each crossing is a distinct alert
	_, err := n.Emit(ctx, notification)
	return err
}

// EmitExpiringSoon builds and emits the daily expiry alert for a batch.
// Idempotent per batch and day via the dedup key.
func (n *Notifier) EmitExpiringSoon(ctx context.Context, batch *repository.BatchWithMedicine, daysToExpiry int, day string) (bool, error) {
	priority := repository.PriorityNormal
	if daysToExpiry <= 7 {
		priority = repository.PriorityHigh
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"batch_id":           batch.ID,
		"medicine_id":        batch.MedicineID,
		"medicine_name":      batch.MedicineName,
		"batch_number":       batch.BatchNumber,
		"quantity_available": batch.QuantityAvailable,
		"expiry_date":        batch.ExpiryDate.Format("2006-01-02"),
		"days_to_expiry":     daysToExpiry,
	})

	dedupKey := fmt.Sprintf("expiry:%s:%s", batch.ID, day)

	notification := &repository.Notification{
		PharmacyID:     batch.PharmacyID,
		Type:           repository.TypeExpiringSoon,
		Priority:       priority,
		Title:          fmt.Sprintf("Expiring Soon: %s", batch.MedicineName),
		Message: fmt.Sprintf(
			"%s (batch %s) expires in %d days on %s. %d units still in stock.",
			batch.MedicineName, batch.BatchNumber, daysToExpiry,
			batch.ExpiryDate.Format("2006-01-02"), batch.QuantityAvailable),
		Data:           payload,
		DedupKey:       &dedupKey,
		ActionRequired: daysToExpiry <= 7,
	}

	return n.Emit(ctx, notification)
}

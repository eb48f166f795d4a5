package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
)

// Event types
const (
	// Stock events
	EventStockAdded    = "stock.added"
	EventStockAdjusted = "stock.adjusted"
	EventStockReserved = "stock.reserved"
	EventStockReleased = "stock.released"
	EventStockConsumed = "stock.consumed"
	EventBatchDeleted  = "stock.batch.deleted"

	// Alert events
	EventAlertCreated = "stock.alert.created"

	// Prescription events (consumed from the prescription service)
	EventDispenseRequested    = "prescription.dispense.requested"
	EventDispenseConfirmed    = "prescription.dispense.confirmed"
	EventPrescriptionCanceled = "prescription.cancelled"
)

// Exchange names
const (
	ExchangeStockEvents        = "stock.events"
	ExchangePrescriptionEvents = "prescription.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// StockAddedEvent is published when a new batch is registered
type StockAddedEvent struct {
	BatchID     string `json:"batch_id"`
	PharmacyID  string `json:"pharmacy_id"`
	MedicineID  string `json:"medicine_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
	ExpiryDate  string `json:"expiry_date"`
}

// StockAdjustedEvent is published when the on-hand quantity of a batch changes
type StockAdjustedEvent struct {
	BatchID           string `json:"batch_id"`
	PharmacyID        string `json:"pharmacy_id"`
	MedicineID        string `json:"medicine_id"`
	QuantityAvailable int    `json:"quantity_available"`
	QuantityReserved  int    `json:"quantity_reserved"`
	Delta             int    `json:"delta"`
	Reason            string `json:"reason,omitempty"`
}

// StockReservedEvent is published when stock is reserved against a batch
type StockReservedEvent struct {
	BatchID           string `json:"batch_id"`
	PharmacyID        string `json:"pharmacy_id"`
	MedicineID        string `json:"medicine_id"`
	Amount            int    `json:"amount"`
	QuantityAvailable int    `json:"quantity_available"`
	QuantityReserved  int    `json:"quantity_reserved"`
}

// StockReleasedEvent is published when a reservation is released back to stock
type StockReleasedEvent struct {
	BatchID           string `json:"batch_id"`
	PharmacyID        string `json:"pharmacy_id"`
	MedicineID        string `json:"medicine_id"`
	Amount            int    `json:"amount"`
	QuantityAvailable int    `json:"quantity_available"`
	QuantityReserved  int    `json:"quantity_reserved"`
}

// StockConsumedEvent is published when reserved stock leaves the pharmacy
type StockConsumedEvent struct {
	BatchID          string `json:"batch_id"`
	PharmacyID       string `json:"pharmacy_id"`
	MedicineID       string `json:"medicine_id"`
	Amount           int    `json:"amount"`
	QuantityReserved int    `json:"quantity_reserved"`
}

// BatchDeletedEvent is published when a batch record is removed
type BatchDeletedEvent struct {
	BatchID    string `json:"batch_id"`
	PharmacyID string `json:"pharmacy_id"`
	MedicineID string `json:"medicine_id"`
}

// AlertCreatedEvent is published when a stock alert notification is created
type AlertCreatedEvent struct {
	NotificationID string                      `json:"notification_id"`
	PharmacyID     string                      `json:"pharmacy_id"`
	Type           repository.NotificationType `json:"type"`
	Priority       repository.Priority         `json:"priority"`
	Title          string                      `json:"title"`
}

// Prescription Events

// DispenseRequestedEvent is consumed when the prescription service requests a dispense
type DispenseRequestedEvent struct {
	PrescriptionID string `json:"prescription_id"`
	PharmacyID     string `json:"pharmacy_id"`
	MedicineID     string `json:"medicine_id"`
	Quantity       int    `json:"quantity"`
}

// DispenseConfirmedEvent is consumed when a dispense is handed to the patient
type DispenseConfirmedEvent struct {
	PrescriptionID string            `json:"prescription_id"`
	PharmacyID     string            `json:"pharmacy_id"`
	Allocations    []EventAllocation `json:"allocations"`
}

// PrescriptionCanceledEvent is consumed when a prescription is cancelled
type PrescriptionCanceledEvent struct {
	PrescriptionID string            `json:"prescription_id"`
	PharmacyID     string            `json:"pharmacy_id"`
	Allocations    []EventAllocation `json:"allocations"`
}

// EventAllocation names a batch and the amount reserved against it
type EventAllocation struct {
	BatchID string `json:"batch_id"`
	Amount  int    `json:"amount"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}

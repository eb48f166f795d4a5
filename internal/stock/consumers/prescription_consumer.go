package consumers

import (
	"context"
	"fmt"

	"github.com/pharmaflow/pharmaflow-backend/internal/stock/service"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
	"github.com/pharmaflow/pharmaflow-backend/pkg/messaging"
)

// PrescriptionEventHandler applies prescription lifecycle events to the
// stock ledger (testable without RabbitMQ). Dispensing always routes
// through reserve and consume; a prescription never touches quantities
// directly.
type PrescriptionEventHandler struct {
	ledger *service.Ledger
	logger *logger.Logger
}

// NewPrescriptionEventHandler creates a new handler
func NewPrescriptionEventHandler(ledger *service.Ledger, log *logger.Logger) *PrescriptionEventHandler {
	return &PrescriptionEventHandler{
		ledger: ledger,
		logger: log,
	}
}

// handleDispenseRequested reserves stock for a requested dispense,
// earliest-expiring batches first
func (h *PrescriptionEventHandler) handleDispenseRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.DispenseRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal DispenseRequestedEvent")
		return err
	}

	allocations, err := h.ledger.AllocateFEFO(ctx, data.PharmacyID, data.MedicineID, data.Quantity)
	if err != nil {
		if errors.Is(err, errors.ErrInsufficientStock) {
			// Out of stock is a terminal outcome for this request, not a
			// delivery failure worth retrying
			h.logger.Warn().
				Str("prescription_id", data.PrescriptionID).
				Str("medicine_id", data.MedicineID).
				Int("quantity", data.Quantity).
				Msg("dispense request exceeds available stock")
			return nil
		}
		return fmt.Errorf("allocate for prescription %s: %w", data.PrescriptionID, err)
	}

	h.logger.Info().
		Str("prescription_id", data.PrescriptionID).
		Int("batches", len(allocations)).
		Int("quantity", data.Quantity).
		Msg("stock reserved for prescription")

	return nil
}

// handleDispenseConfirmed finalizes a dispense, consuming the reserved
// units batch by batch
func (h *PrescriptionEventHandler) handleDispenseConfirmed(ctx context.Context, event *messaging.Event) error {
	var data messaging.DispenseConfirmedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal DispenseConfirmedEvent")
		return err
	}

	for _, alloc := range data.Allocations {
		if _, err := h.ledger.Consume(ctx, data.PharmacyID, alloc.BatchID, alloc.Amount); err != nil {
			return fmt.Errorf("consume batch %s for prescription %s: %w",
				alloc.BatchID, data.PrescriptionID, err)
		}
	}

	h.logger.Info().
		Str("prescription_id", data.PrescriptionID).
		Int("batches", len(data.Allocations)).
		Msg("dispense finalized")

	return nil
}

// handlePrescriptionCanceled returns reserved units to the shelf
func (h *PrescriptionEventHandler) handlePrescriptionCanceled(ctx context.Context, event *messaging.Event) error {
	var data messaging.PrescriptionCanceledEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal PrescriptionCanceledEvent")
		return err
	}

	for _, alloc := range data.Allocations {
		if _, err := h.ledger.Release(ctx, data.PharmacyID, alloc.BatchID, alloc.Amount); err != nil {
			return fmt.Errorf("release batch %s for prescription %s: %w",
				alloc.BatchID, data.PrescriptionID, err)
		}
	}

	h.logger.Info().
		Str("prescription_id", data.PrescriptionID).
		Int("batches", len(data.Allocations)).
		Msg("reservation released after cancellation")

	return nil
}

// PrescriptionEventConsumer consumes prescription events from the
// prescription service exchange
type PrescriptionEventConsumer struct {
	consumer *messaging.Consumer
	handler  *PrescriptionEventHandler
	logger   *logger.Logger
}

// NewPrescriptionEventConsumer creates and binds the consumer
func NewPrescriptionEventConsumer(rmq *messaging.RabbitMQ, ledger *service.Ledger, log *logger.Logger) (*PrescriptionEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.prescription-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangePrescriptionEvents, "prescription.#"); err != nil {
		return nil, err
	}

	handler := NewPrescriptionEventHandler(ledger, log)

	consumer.RegisterHandler(messaging.EventDispenseRequested, handler.handleDispenseRequested)
	consumer.RegisterHandler(messaging.EventDispenseConfirmed, handler.handleDispenseConfirmed)
	consumer.RegisterHandler(messaging.EventPrescriptionCanceled, handler.handlePrescriptionCanceled)

	return &PrescriptionEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   log,
	}, nil
}

// Start starts consuming messages
func (c *PrescriptionEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
	"github.com/pharmaflow/pharmaflow-backend/pkg/messaging"
)

// Ledger is the only writer of batch quantities. Every mutation runs as
// one row-locked transaction with a bounded lock wait; callers receiving
// a retryable error may repeat the whole call verbatim.
type Ledger struct {
	db          *database.DB
	batches     *repository.BatchRepository
	medicines   *repository.MedicineRepository
	notifier    *Notifier
	publisher   EventPublisher
	lockTimeout time.Duration
	logger      *logger.Logger
	now         func() time.Time
}

// NewLedger creates a new stock ledger service
func NewLedger(
	db *database.DB,
	batches *repository.BatchRepository,
	medicines *repository.MedicineRepository,
	notifier *Notifier,
	publisher EventPublisher,
	lockTimeout time.Duration,
	log *logger.Logger,
) *Ledger {
	return &Ledger{
		db:          db,
		batches:     batches,
		medicines:   medicines,
		notifier:    notifier,
		publisher:   publisher,
		lockTimeout: lockTimeout,
		logger:      log,
		now:         time.Now,
	}
}

// AddStockInput carries the fields needed to register a new batch
type AddStockInput struct {
	MedicineID        string     `json:"medicine_id" validate:"required,uuid"`
	BatchNumber       string     `json:"batch_number" validate:"required,min=1,max=100"`
	QuantityAvailable int        `json:"quantity_available" validate:"gte=0"`
	MinimumThreshold  int        `json:"minimum_threshold" validate:"required,gte=1"`
	ManufactureDate   *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate        time.Time  `json:"expiry_date" validate:"required"`
	PurchaseDate      *time.Time `json:"purchase_date,omitempty"`
	SupplierName      *string    `json:"supplier_name,omitempty" validate:"omitempty,max=255"`
	UnitPrice         *float64   `json:"unit_price,omitempty" validate:"omitempty,gt=0"`
	MRP               *float64   `json:"mrp,omitempty" validate:"omitempty,gt=0"`
}

// UpdateBatchInput carries the mutable fields of a batch. QuantityAvailable
// is an absolute value; reserved stock never changes through an update.
type UpdateBatchInput struct {
	BatchNumber       *string    `json:"batch_number,omitempty" validate:"omitempty,min=1,max=100"`
	QuantityAvailable *int       `json:"quantity_available,omitempty" validate:"omitempty,gte=0"`
	MinimumThreshold  *int       `json:"minimum_threshold,omitempty" validate:"omitempty,gte=1"`
	ManufactureDate   *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	PurchaseDate      *time.Time `json:"purchase_date,omitempty"`
	SupplierName      *string    `json:"supplier_name,omitempty" validate:"omitempty,max=255"`
	UnitPrice         *float64   `json:"unit_price,omitempty" validate:"omitempty,gt=0"`
	MRP               *float64   `json:"mrp,omitempty" validate:"omitempty,gt=0"`
}

// Allocation names a batch and the amount reserved from it
type Allocation struct {
	BatchID string `json:"batch_id"`
	Amount  int    `json:"amount"`
}

// AddStock registers a new batch for the pharmacy
func (l *Ledger) AddStock(ctx context.Context, pharmacyID string, input AddStockInput) (*repository.Batch, error) {
	medicine, err := l.medicines.GetByID(ctx, input.MedicineID)
	if err != nil {
		return nil, err
	}

	if input.ManufactureDate != nil && !input.ExpiryDate.After(*input.ManufactureDate) {
		return nil, errors.Validation(map[string]string{
			"expiry_date": "must be after manufacture date",
		})
	}

	batch := &repository.Batch{
		PharmacyID:        pharmacyID,
		MedicineID:        input.MedicineID,
		BatchNumber:       input.BatchNumber,
		QuantityAvailable: input.QuantityAvailable,
		MinimumThreshold:  input.MinimumThreshold,
		ManufactureDate:   input.ManufactureDate,
		ExpiryDate:        input.ExpiryDate,
		PurchaseDate:      input.PurchaseDate,
		SupplierName:      input.SupplierName,
		UnitPrice:         input.UnitPrice,
		MRP:               input.MRP,
	}

	if err := l.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("batch_id", batch.ID).
		Str("pharmacy_id", pharmacyID).
		Str("medicine_id", batch.MedicineID).
		Int("quantity", batch.QuantityAvailable).
		Msg("batch registered")

	health := EvaluateHealth(batch, l.now())
	crossing := DetectCreationCrossing(health, batch.QuantityAvailable)
	if err := l.notifier.EmitStockCrossing(ctx, batch, medicine.Name, health, crossing); err != nil {
		l.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("failed to emit stock alert")
	}

	l.publish(ctx, messaging.EventStockAdded, messaging.StockAddedEvent{
		BatchID:     batch.ID,
		PharmacyID:  pharmacyID,
		MedicineID:  batch.MedicineID,
		BatchNumber: batch.BatchNumber,
		Quantity:    batch.QuantityAvailable,
		ExpiryDate:  batch.ExpiryDate.Format("2006-01-02"),
	})

	return batch, nil
}

// GetBatch returns a single batch
func (l *Ledger) GetBatch(ctx context.Context, pharmacyID, batchID string) (*repository.Batch, error) {
	return l.batches.GetByID(ctx, pharmacyID, batchID)
}

// ListBatches lists batches for the pharmacy
func (l *Ledger) ListBatches(ctx context.Context, pharmacyID string, filter repository.BatchFilter) ([]*repository.BatchWithMedicine, error) {
	return l.batches.ListByPharmacy(ctx, pharmacyID, filter)
}

// UpdateBatch updates a batch under its row lock. Threshold and quantity
// changes can both move the batch across its low-stock boundary, so the
// whole update runs like any other ledger mutation.
func (l *Ledger) UpdateBatch(ctx context.Context, pharmacyID, batchID string, input UpdateBatchInput) (*repository.Batch, error) {
	var (
		result          *repository.Batch
		before, after   Health
		availableBefore int
		delta           int
	)

	err := l.db.LockedTransaction(ctx, l.lockTimeout, func(tx *sqlx.Tx) error {
		batch, err := l.batches.GetByIDForUpdate(ctx, tx, pharmacyID, batchID)
		if err != nil {
			return err
		}

		before = EvaluateHealth(batch, l.now())
		availableBefore = batch.QuantityAvailable

		if input.BatchNumber != nil {
			batch.BatchNumber = *input.BatchNumber
		}
		if input.QuantityAvailable != nil {
			delta = *input.QuantityAvailable - batch.QuantityAvailable
			batch.QuantityAvailable = *input.QuantityAvailable
		}
		if input.MinimumThreshold != nil {
			batch.MinimumThreshold = *input.MinimumThreshold
		}
		if input.ManufactureDate != nil {
			batch.ManufactureDate = input.ManufactureDate
		}
		if input.ExpiryDate != nil {
			batch.ExpiryDate = *input.ExpiryDate
		}
		if input.PurchaseDate != nil {
			batch.PurchaseDate = input.PurchaseDate
		}
		if input.SupplierName != nil {
			batch.SupplierName = input.SupplierName
		}
		if input.UnitPrice != nil {
			batch.UnitPrice = input.UnitPrice
		}
		if input.MRP != nil {
			batch.MRP = input.MRP
		}

		if batch.ManufactureDate != nil && !batch.ExpiryDate.After(*batch.ManufactureDate) {
			return errors.Validation(map[string]string{
				"expiry_date": "must be after manufacture date",
			})
		}

		if err := l.batches.Update(ctx, tx, batch); err != nil {
			return err
		}

		after = EvaluateHealth(batch, l.now())
		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.emitCrossing(ctx, result, before, after, availableBefore, result.QuantityAvailable)

	if delta != 0 {
		l.publish(ctx, messaging.EventStockAdjusted, messaging.StockAdjustedEvent{
			BatchID:           result.ID,
			PharmacyID:        pharmacyID,
			MedicineID:        result.MedicineID,
			QuantityAvailable: result.QuantityAvailable,
			QuantityReserved:  result.QuantityReserved,
			Delta:             delta,
			Reason:            "batch update",
		})
	}

	return result, nil
}

// DeleteBatch removes a batch. Batches with reserved stock are protected.
func (l *Ledger) DeleteBatch(ctx context.Context, pharmacyID, batchID string) error {
	batch, err := l.batches.GetByID(ctx, pharmacyID, batchID)
	if err != nil {
		return err
	}

	if err := l.batches.Delete(ctx, pharmacyID, batchID); err != nil {
		return err
	}

	l.logger.Info().
		Str("batch_id", batchID).
		Str("pharmacy_id", pharmacyID).
		Msg("batch deleted")

	l.publish(ctx, messaging.EventBatchDeleted, messaging.BatchDeletedEvent{
		BatchID:    batchID,
		PharmacyID: pharmacyID,
		MedicineID: batch.MedicineID,
	})

	return nil
}

// AdjustQuantity changes available stock by delta, positive or negative.
// The result may not go below zero.
func (l *Ledger) AdjustQuantity(ctx context.Context, pharmacyID, batchID string, delta int, reason string) (*repository.Batch, error) {
	batch, err := l.mutate(ctx, pharmacyID, batchID, func(b *repository.Batch) error {
		next := b.QuantityAvailable + delta
		if next < 0 {
			return errors.InvalidQuantity(fmt.Sprintf(
				"adjustment of %d would leave %d available", delta, next))
		}
		b.QuantityAvailable = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, messaging.EventStockAdjusted, messaging.StockAdjustedEvent{
		BatchID:           batch.ID,
		PharmacyID:        pharmacyID,
		MedicineID:        batch.MedicineID,
		QuantityAvailable: batch.QuantityAvailable,
		QuantityReserved:  batch.QuantityReserved,
		Delta:             delta,
		Reason:            reason,
	})

	return batch, nil
}

// Reserve moves amount from available to reserved. The sum of the two
// quantities is unchanged.
func (l *Ledger) Reserve(ctx context.Context, pharmacyID, batchID string, amount int) (*repository.Batch, error) {
	if amount <= 0 {
		return nil, errors.InvalidQuantity("reservation amount must be positive")
	}

	batch, err := l.mutate(ctx, pharmacyID, batchID, func(b *repository.Batch) error {
		if b.QuantityAvailable < amount {
			return errors.InsufficientStock(fmt.Sprintf(
				"requested %d but only %d available", amount, b.QuantityAvailable))
		}
		b.QuantityAvailable -= amount
		b.QuantityReserved += amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, messaging.EventStockReserved, messaging.StockReservedEvent{
		BatchID:           batch.ID,
		PharmacyID:        pharmacyID,
		MedicineID:        batch.MedicineID,
		Amount:            amount,
		QuantityAvailable: batch.QuantityAvailable,
		QuantityReserved:  batch.QuantityReserved,
	})

	return batch, nil
}

// Release reverses a reservation, moving amount back to available
func (l *Ledger) Release(ctx context.Context, pharmacyID, batchID string, amount int) (*repository.Batch, error) {
	if amount <= 0 {
		return nil, errors.InvalidQuantity("release amount must be positive")
	}

	batch, err := l.mutate(ctx, pharmacyID, batchID, func(b *repository.Batch) error {
		if amount > b.QuantityReserved {
			return errors.InvalidQuantity(fmt.Sprintf(
				"cannot release %d, only %d reserved", amount, b.QuantityReserved))
		}
		b.QuantityReserved -= amount
		b.QuantityAvailable += amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, messaging.EventStockReleased, messaging.StockReleasedEvent{
		BatchID:           batch.ID,
		PharmacyID:        pharmacyID,
		MedicineID:        batch.MedicineID,
		Amount:            amount,
		QuantityAvailable: batch.QuantityAvailable,
		QuantityReserved:  batch.QuantityReserved,
	})

	return batch, nil
}

// Consume finalizes a dispense, removing amount from reserved for good
func (l *Ledger) Consume(ctx context.Context, pharmacyID, batchID string, amount int) (*repository.Batch, error) {
	if amount <= 0 {
		return nil, errors.InvalidQuantity("consume amount must be positive")
	}

	batch, err := l.mutate(ctx, pharmacyID, batchID, func(b *repository.Batch) error {
		if amount > b.QuantityReserved {
			return errors.InvalidQuantity(fmt.Sprintf(
				"cannot consume %d, only %d reserved", amount, b.QuantityReserved))
		}
		b.QuantityReserved -= amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, messaging.EventStockConsumed, messaging.StockConsumedEvent{
		BatchID:          batch.ID,
		PharmacyID:       pharmacyID,
		MedicineID:       batch.MedicineID,
		Amount:           amount,
		QuantityReserved: batch.QuantityReserved,
	})

	return batch, nil
}

// AllocateFEFO reserves amountNeeded units of a medicine across its
// batches, earliest expiry first. All-or-nothing: when total sellable
// stock is short the call fails and no partial reservation persists.
func (l *Ledger) AllocateFEFO(ctx context.Context, pharmacyID, medicineID string, amountNeeded int) ([]Allocation, error) {
	if amountNeeded <= 0 {
		return nil, errors.InvalidQuantity("allocation amount must be positive")
	}

	var (
		allocations []Allocation
		crossings   []pendingCrossing
	)

	err := l.db.LockedTransaction(ctx, l.lockTimeout, func(tx *sqlx.Tx) error {
		candidates, err := l.batches.CandidatesForUpdate(ctx, tx, pharmacyID, medicineID)
		if err != nil {
			return err
		}

		plan, err := planFEFO(candidates, amountNeeded)
		if err != nil {
			return err
		}

		for i, take := range plan {
			batch := candidates[i]
			if take == 0 {
				continue
			}

			before := EvaluateHealth(batch, l.now())
			availableBefore := batch.QuantityAvailable

			batch.QuantityAvailable -= take
			batch.QuantityReserved += take

			if err := l.batches.UpdateQuantities(ctx, tx, batch); err != nil {
				return err
			}

			after := EvaluateHealth(batch, l.now())
			allocations = append(allocations, Allocation{BatchID: batch.ID, Amount: take})
			crossings = append(crossings, pendingCrossing{
				batch:           *batch,
				before:          before,
				after:           after,
				availableBefore: availableBefore,
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range crossings {
		pc := &crossings[i]
		l.emitCrossing(ctx, &pc.batch, pc.before, pc.after, pc.availableBefore, pc.batch.QuantityAvailable)
	}

	for _, a := range allocations {
		l.publish(ctx, messaging.EventStockReserved, messaging.StockReservedEvent{
			BatchID:    a.BatchID,
			PharmacyID: pharmacyID,
			MedicineID: medicineID,
			Amount:     a.Amount,
		})
	}

	return allocations, nil
}

// planFEFO decides how much to take from each candidate batch. Candidates
// must already be ordered by ascending expiry. The returned slice is
// parallel to candidates. Fails without planning anything when total
// available stock cannot cover the request.
func planFEFO(candidates []*repository.Batch, amountNeeded int) ([]int, error) {
	total := 0
	for _, b := range candidates {
		total += b.QuantityAvailable
	}
	if total < amountNeeded {
		return nil, errors.InsufficientStock(fmt.Sprintf(
			"requested %d but only %d available across %d batches",
			amountNeeded, total, len(candidates)))
	}

	plan := make([]int, len(candidates))
	remaining := amountNeeded
	for i, b := range candidates {
		if remaining == 0 {
			break
		}
		take := b.QuantityAvailable
		if take > remaining {
			take = remaining
		}
		plan[i] = take
		remaining -= take
	}

	return plan, nil
}

type pendingCrossing struct {
	batch           repository.Batch
	before          Health
	after           Health
	availableBefore int
}

// mutate runs one quantity mutation on a locked batch row and handles
// crossing detection. The apply function sees current quantities and
// rewrites them; any error rolls the whole transaction back.
func (l *Ledger) mutate(ctx context.Context, pharmacyID, batchID string, apply func(*repository.Batch) error) (*repository.Batch, error) {
	var (
		result          *repository.Batch
		before, after   Health
		availableBefore int
	)

	err := l.db.LockedTransaction(ctx, l.lockTimeout, func(tx *sqlx.Tx) error {
		batch, err := l.batches.GetByIDForUpdate(ctx, tx, pharmacyID, batchID)
		if err != nil {
			return err
		}

		before = EvaluateHealth(batch, l.now())
		availableBefore = batch.QuantityAvailable

		if err := apply(batch); err != nil {
			return err
		}

		if err := l.batches.UpdateQuantities(ctx, tx, batch); err != nil {
			return err
		}

		after = EvaluateHealth(batch, l.now())
		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.emitCrossing(ctx, result, before, after, availableBefore, result.QuantityAvailable)

	return result, nil
}

func (l *Ledger) emitCrossing(ctx context.Context, batch *repository.Batch, before, after Health, availableBefore, availableAfter int) {
	crossing := DetectCrossing(before, after, availableBefore, availableAfter)
	if !crossing.Fired {
		return
	}

	medicineName := batch.MedicineID
	if medicine, err := l.medicines.GetByID(ctx, batch.MedicineID); err == nil {
		medicineName = medicine.Name
	}

	if err := l.notifier.EmitStockCrossing(ctx, batch, medicineName, after, crossing); err != nil {
		l.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("failed to emit stock alert")
	}
}

func (l *Ledger) publish(ctx context.Context, eventType string, payload interface{}) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, eventType, payload); err != nil {
		l.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

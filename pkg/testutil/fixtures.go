package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MedicineFixture represents a medicine catalog row for tests
type MedicineFixture struct {
	ID                   string
	Name                 string
	GenericName          string
	Manufacturer         string
	Strength             string
	Form                 string
	PrescriptionRequired bool
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// BatchFixture represents an inventory batch row for tests
type BatchFixture struct {
	ID                string
	PharmacyID        string
	MedicineID        string
	BatchNumber       string
	QuantityAvailable int
	QuantityReserved  int
	MinimumThreshold  int
	ManufactureDate   time.Time
	ExpiryDate        time.Time
	SupplierName      string
	UnitPrice         float64
	MRP               float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FixtureFactory creates test fixtures with unique sequential values
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Medicine creates a medicine fixture with defaults
func (f *FixtureFactory) Medicine(opts ...func(*MedicineFixture)) MedicineFixture {
	seq := f.nextSeq()

	med := MedicineFixture{
		ID:                   uuid.New().String(),
		Name:                 fmt.Sprintf("Medicine %d", seq),
		GenericName:          fmt.Sprintf("generic-%d", seq),
		Manufacturer:         "Test Pharma GmbH",
		Strength:             "500mg",
		Form:                 "tablet",
		PrescriptionRequired: true,
		IsActive:             true,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}

	for _, opt := range opts {
		opt(&med)
	}

	return med
}

// WithMedicineName sets the medicine name
func WithMedicineName(name string) func(*MedicineFixture) {
	return func(m *MedicineFixture) {
		m.Name = name
	}
}

// Batch creates a batch fixture with defaults: healthy quantities and an
// expiry a year out
func (f *FixtureFactory) Batch(pharmacyID, medicineID string, opts ...func(*BatchFixture)) BatchFixture {
	seq := f.nextSeq()
	now := time.Now()

	batch := BatchFixture{
		ID:                uuid.New().String(),
		PharmacyID:        pharmacyID,
		MedicineID:        medicineID,
		BatchNumber:       fmt.Sprintf("BATCH-%04d", seq),
		QuantityAvailable: 100,
		QuantityReserved:  0,
		MinimumThreshold:  10,
		ManufactureDate:   now.AddDate(0, -6, 0),
		ExpiryDate:        now.AddDate(1, 0, 0),
		SupplierName:      "Test Supplier",
		UnitPrice:         4.50,
		MRP:               5.99,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	for _, opt := range opts {
		opt(&batch)
	}

	return batch
}

// WithQuantities sets available and reserved quantities
func WithQuantities(available, reserved int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.QuantityAvailable = available
		b.QuantityReserved = reserved
	}
}

// WithThreshold sets the minimum threshold
func WithThreshold(threshold int) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.MinimumThreshold = threshold
	}
}

// WithExpiry sets the expiry date
func WithExpiry(expiry time.Time) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.ExpiryDate = expiry
	}
}

// WithBatchNumber sets the batch number
func WithBatchNumber(number string) func(*BatchFixture) {
	return func(b *BatchFixture) {
		b.BatchNumber = number
	}
}

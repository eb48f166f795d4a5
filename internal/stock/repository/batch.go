package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
)

// Batch represents one physical batch of a medicine held by a pharmacy
type Batch struct {
	ID                string     `db:"id" json:"id"`
	PharmacyID        string     `db:"pharmacy_id" json:"pharmacy_id"`
	MedicineID        string     `db:"medicine_id" json:"medicine_id"`
	BatchNumber       string     `db:"batch_number" json:"batch_number"`
	QuantityAvailable int        `db:"quantity_available" json:"quantity_available"`
	QuantityReserved  int        `db:"quantity_reserved" json:"quantity_reserved"`
	MinimumThreshold  int        `db:"minimum_threshold" json:"minimum_threshold"`
	ManufactureDate   *time.Time `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate        time.Time  `db:"expiry_date" json:"expiry_date"`
	PurchaseDate      *time.Time `db:"purchase_date" json:"purchase_date,omitempty"`
	SupplierName      *string    `db:"supplier_name" json:"supplier_name,omitempty"`
	UnitPrice         *float64   `db:"unit_price" json:"unit_price,omitempty"`
	MRP               *float64   `db:"mrp" json:"mrp,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// TotalQuantity returns on-hand plus reserved stock
func (b *Batch) TotalQuantity() int {
	return b.QuantityAvailable + b.QuantityReserved
}

// BatchWithMedicine joins a batch with its medicine catalog entry for listings
type BatchWithMedicine struct {
	Batch
	MedicineName string  `db:"medicine_name" json:"medicine_name"`
	GenericName  *string `db:"generic_name" json:"generic_name,omitempty"`
}

// BatchFilter narrows ListByPharmacy results. Name and number filters
// match substrings, case-insensitively.
type BatchFilter struct {
	MedicineID     string
	MedicineName   string
	BatchNumber    string
	LowStockOnly   bool
	ExpiringInDays int
	Limit          int
	Offset         int
}

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create creates a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_batches (
			id, pharmacy_id, medicine_id, batch_number,
			quantity_available, quantity_reserved, minimum_threshold,
			manufacture_date, expiry_date, purchase_date,
			supplier_name, unit_price, mrp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		batch.ID, batch.PharmacyID, batch.MedicineID, batch.BatchNumber,
		batch.QuantityAvailable, batch.QuantityReserved, batch.MinimumThreshold,
		batch.ManufactureDate, batch.ExpiryDate, batch.PurchaseDate,
		batch.SupplierName, batch.UnitPrice, batch.MRP,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)

	return database.TranslateError(err)
}

// GetByID gets a batch by ID, scoped to the pharmacy
func (r *BatchRepository) GetByID(ctx context.Context, pharmacyID, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM inventory_batches WHERE id = $1 AND pharmacy_id = $2`
	if err := r.db.GetContext(ctx, &batch, query, id, pharmacyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByIDForUpdate locks the batch row for the duration of the transaction
// and returns its current state
func (r *BatchRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, pharmacyID, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM inventory_batches WHERE id = $1 AND pharmacy_id = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &batch, query, id, pharmacyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, database.TranslateError(err)
	}
	return &batch, nil
}

// ListByPharmacy lists batches for a pharmacy, joined with the medicine
// catalog and ordered by medicine name then soonest expiry
func (r *BatchRepository) ListByPharmacy(ctx context.Context, pharmacyID string, filter BatchFilter) ([]*BatchWithMedicine, error) {
	var (
		conditions = []string{"b.pharmacy_id = $1"}
		args       = []interface{}{pharmacyID}
	)

	if filter.MedicineID != "" {
		args = append(args, filter.MedicineID)
		conditions = append(conditions, fmt.Sprintf("b.medicine_id = $%d", len(args)))
	}
	if filter.MedicineName != "" {
		args = append(args, "%"+filter.MedicineName+"%")
		conditions = append(conditions, fmt.Sprintf("m.name ILIKE $%d", len(args)))
	}
	if filter.BatchNumber != "" {
		args = append(args, "%"+filter.BatchNumber+"%")
		conditions = append(conditions, fmt.Sprintf("b.batch_number ILIKE $%d", len(args)))
	}
	if filter.LowStockOnly {
		conditions = append(conditions, "b.quantity_available < b.minimum_threshold")
	}
	if filter.ExpiringInDays > 0 {
		args = append(args, filter.ExpiringInDays)
		conditions = append(conditions, fmt.Sprintf(
			"b.expiry_date >= CURRENT_DATE AND b.expiry_date <= CURRENT_DATE + $%d * INTERVAL '1 day'", len(args)))
	}

	query := `
		SELECT b.*, m.name AS medicine_name, m.generic_name
		FROM inventory_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY m.name, b.expiry_date
	`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var batches []*BatchWithMedicine
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, err
	}
	return batches, nil
}

// Update rewrites a locked batch row, metadata and quantities alike.
// Must run inside the transaction that locked the row.
func (r *BatchRepository) Update(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	query := `
		UPDATE inventory_batches SET
			batch_number = $3, minimum_threshold = $4,
			manufacture_date = $5, expiry_date = $6, purchase_date = $7,
			supplier_name = $8, unit_price = $9, mrp = $10,
			quantity_available = $11, quantity_reserved = $12,
			updated_at = NOW()
		WHERE id = $1 AND pharmacy_id = $2
	`

	result, err := tx.ExecContext(ctx, query,
		batch.ID, batch.PharmacyID, batch.BatchNumber, batch.MinimumThreshold,
		batch.ManufactureDate, batch.ExpiryDate, batch.PurchaseDate,
		batch.SupplierName, batch.UnitPrice, batch.MRP,
		batch.QuantityAvailable, batch.QuantityReserved,
	)
	if err != nil {
		return database.TranslateError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// UpdateQuantities writes new quantity columns for a locked batch row.
// Must run inside the transaction that locked the row.
func (r *BatchRepository) UpdateQuantities(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	query := `
		UPDATE inventory_batches SET
			quantity_available = $3, quantity_reserved = $4, updated_at = NOW()
		WHERE id = $1 AND pharmacy_id = $2
	`

	result, err := tx.ExecContext(ctx, query,
		batch.ID, batch.PharmacyID, batch.QuantityAvailable, batch.QuantityReserved,
	)
	if err != nil {
		return database.TranslateError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// Delete removes a batch. Batches holding active reservations cannot be
// removed.
func (r *BatchRepository) Delete(ctx context.Context, pharmacyID, id string) error {
	query := `DELETE FROM inventory_batches WHERE id = $1 AND pharmacy_id = $2 AND quantity_reserved = 0`
	result, err := r.db.ExecContext(ctx, query, id, pharmacyID)
	if err != nil {
		return database.TranslateError(err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		// Distinguish a missing batch from one blocked by reservations
		var reserved int
		check := `SELECT quantity_reserved FROM inventory_batches WHERE id = $1 AND pharmacy_id = $2`
		if err := r.db.GetContext(ctx, &reserved, check, id, pharmacyID); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("batch")
			}
			return err
		}
		return errors.Conflict("batch has active reservations and cannot be deleted")
	}

	return nil
}

// CandidatesForUpdate locks every batch of a medicine that still has
// sellable stock, in first-expiry-first-out order. Locking in a stable
// order keeps concurrent allocators from deadlocking each other.
func (r *BatchRepository) CandidatesForUpdate(ctx context.Context, tx *sqlx.Tx, pharmacyID, medicineID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM inventory_batches
		WHERE pharmacy_id = $1 AND medicine_id = $2
		  AND quantity_available > 0
		  AND expiry_date >= CURRENT_DATE
		ORDER BY expiry_date, id
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &batches, query, pharmacyID, medicineID); err != nil {
		return nil, database.TranslateError(err)
	}
	return batches, nil
}

// Pharmacies returns the distinct pharmacy IDs holding any stock
func (r *BatchRepository) Pharmacies(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT pharmacy_id FROM inventory_batches`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}

// LowStock returns batches below their minimum threshold
func (r *BatchRepository) LowStock(ctx context.Context, pharmacyID string) ([]*BatchWithMedicine, error) {
	var batches []*BatchWithMedicine
	query := `
		SELECT b.*, m.name AS medicine_name, m.generic_name
		FROM inventory_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.pharmacy_id = $1 AND b.quantity_available < b.minimum_threshold
		ORDER BY (b.minimum_threshold - b.quantity_available) DESC, m.name
	`
	if err := r.db.SelectContext(ctx, &batches, query, pharmacyID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ExpiringWithin returns unexpired batches whose expiry falls inside the
// given window, soonest first
func (r *BatchRepository) ExpiringWithin(ctx context.Context, pharmacyID string, days int) ([]*BatchWithMedicine, error) {
	var batches []*BatchWithMedicine
	query := `
		SELECT b.*, m.name AS medicine_name, m.generic_name
		FROM inventory_batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.pharmacy_id = $1
		  AND b.expiry_date >= CURRENT_DATE
		  AND b.expiry_date <= CURRENT_DATE + $2 * INTERVAL '1 day'
		ORDER BY b.expiry_date, m.name
	`
	if err := r.db.SelectContext(ctx, &batches, query, pharmacyID, days); err != nil {
		return nil, err
	}
	return batches, nil
}

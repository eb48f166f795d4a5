package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
)

// Medicine represents an entry in the shared medicine catalog
type Medicine struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	GenericName          *string   `db:"generic_name" json:"generic_name,omitempty"`
	Manufacturer         *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	Strength             *string   `db:"strength" json:"strength,omitempty"`
	Form                 *string   `db:"form" json:"form,omitempty"`
	PrescriptionRequired bool      `db:"prescription_required" json:"prescription_required"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// MedicineRepository handles medicine catalog persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create adds a medicine to the catalog
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (id, name, generic_name, manufacturer, strength, form, prescription_required, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.Name, m.GenericName, m.Manufacturer, m.Strength, m.Form,
		m.PrescriptionRequired, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	return database.TranslateError(err)
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT * FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}

// List returns active medicines, optionally filtered by a name search
func (r *MedicineRepository) List(ctx context.Context, search string, limit, offset int) ([]*Medicine, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT * FROM medicines
		WHERE is_active
		  AND ($1 = '' OR LOWER(name) LIKE '%' || LOWER($1) || '%' OR LOWER(COALESCE(generic_name, '')) LIKE '%' || LOWER($1) || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3
	`

	var medicines []*Medicine
	if err := r.db.SelectContext(ctx, &medicines, query, search, limit, offset); err != nil {
		return nil, err
	}
	return medicines, nil
}

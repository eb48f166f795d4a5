package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationEnabled reports whether integration tests should run.
// Set PHARMAFLOW_INTEGRATION=1 to enable them; they need Docker.
func IntegrationEnabled() bool {
	return os.Getenv("PHARMAFLOW_INTEGRATION") == "1"
}

// SkipUnlessIntegration skips the test when integration tests are disabled
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if !IntegrationEnabled() {
		t.Skip("integration tests disabled; set PHARMAFLOW_INTEGRATION=1 to run")
	}
}

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    if !testutil.IntegrationEnabled() {
//	        os.Exit(m.Run())
//	    }
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := container.ApplySchema(ctx, db); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		DB:        wrappedDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// Truncate empties the given tables between tests
func (s *IntegrationSuite) Truncate(t *testing.T, ctx context.Context, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := s.RawDB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// SeedMedicine inserts a medicine fixture and returns it
func (s *IntegrationSuite) SeedMedicine(t *testing.T, ctx context.Context, opts ...func(*MedicineFixture)) MedicineFixture {
	t.Helper()
	med := s.Fixtures.Medicine(opts...)
	_, err := s.RawDB.ExecContext(ctx, `
		INSERT INTO medicines (id, name, generic_name, manufacturer, strength, form, prescription_required, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, med.ID, med.Name, med.GenericName, med.Manufacturer, med.Strength, med.Form, med.PrescriptionRequired, med.IsActive)
	if err != nil {
		t.Fatalf("failed to seed medicine: %v", err)
	}
	return med
}

// SeedBatch inserts a batch fixture and returns it
func (s *IntegrationSuite) SeedBatch(t *testing.T, ctx context.Context, pharmacyID, medicineID string, opts ...func(*BatchFixture)) BatchFixture {
	t.Helper()
	batch := s.Fixtures.Batch(pharmacyID, medicineID, opts...)
	_, err := s.RawDB.ExecContext(ctx, `
		INSERT INTO inventory_batches (
			id, pharmacy_id, medicine_id, batch_number,
			quantity_available, quantity_reserved, minimum_threshold,
			manufacture_date, expiry_date, supplier_name, unit_price, mrp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, batch.ID, batch.PharmacyID, batch.MedicineID, batch.BatchNumber,
		batch.QuantityAvailable, batch.QuantityReserved, batch.MinimumThreshold,
		batch.ManufactureDate, batch.ExpiryDate, batch.SupplierName, batch.UnitPrice, batch.MRP)
	if err != nil {
		t.Fatalf("failed to seed batch: %v", err)
	}
	return batch
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		globalDB.Close()
	}
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
	"github.com/pharmaflow/pharmaflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatch(pharmacyID, medicineID, number string, available, threshold int, expiry time.Time) *repository.Batch {
	return &repository.Batch{
		PharmacyID:        pharmacyID,
		MedicineID:        medicineID,
		BatchNumber:       number,
		QuantityAvailable: available,
		MinimumThreshold:  threshold,
		ExpiryDate:        expiry,
	}
}

func TestBatchCreate_DuplicateBatchNumber(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	repo := repository.NewBatchRepository(suite.DB)
	expiry := time.Now().AddDate(1, 0, 0)

	first := newBatch(pharmacyID, medicine.ID, "DUP-001", 50, 10, expiry)
	require.NoError(t, repo.Create(ctx, first))

	second := newBatch(pharmacyID, medicine.ID, "DUP-001", 30, 10, expiry)
	err := repo.Create(ctx, second)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateBatch))

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "DUPLICATE_BATCH", appErr.Code)
}

func TestBatchCreate_SameNumberDifferentPharmacy(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	medicine := suite.SeedMedicine(t, ctx)

	repo := repository.NewBatchRepository(suite.DB)
	expiry := time.Now().AddDate(1, 0, 0)

	require.NoError(t, repo.Create(ctx, newBatch(newPharmacyID(), medicine.ID, "SHARED-001", 50, 10, expiry)))
	require.NoError(t, repo.Create(ctx, newBatch(newPharmacyID(), medicine.ID, "SHARED-001", 50, 10, expiry)))
}

func TestBatchCreate_ExpiryBeforeManufactureRejected(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	repo := repository.NewBatchRepository(suite.DB)

	manufacture := time.Now()
	batch := newBatch(pharmacyID, medicine.ID, "BAD-DATES", 50, 10, manufacture.AddDate(0, -1, 0))
	batch.ManufactureDate = &manufacture

	err := repo.Create(ctx, batch)

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, "expiry_date")
}

func TestBatchGetByID_ScopedToPharmacy(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)
	batch := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID)

	repo := repository.NewBatchRepository(suite.DB)

	found, err := repo.GetByID(ctx, pharmacyID, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchNumber, found.BatchNumber)

	_, err = repo.GetByID(ctx, newPharmacyID(), batch.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBatchDelete_ReservedStockBlocksDeletion(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)
	batch := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID, testutil.WithQuantities(10, 3))

	repo := repository.NewBatchRepository(suite.DB)

	err := repo.Delete(ctx, pharmacyID, batch.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	// Clear the reservation, then deletion goes through
	_, err = suite.RawDB.ExecContext(ctx,
		`UPDATE inventory_batches SET quantity_reserved = 0 WHERE id = $1`, batch.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, pharmacyID, batch.ID))

	_, err = repo.GetByID(ctx, pharmacyID, batch.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBatchLowStock_StrictThresholdAndOrdering(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	// shortage 8
	worst := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithQuantities(2, 0), testutil.WithThreshold(10))
	// shortage 3
	mild := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithQuantities(7, 0), testutil.WithThreshold(10))
	// at threshold, not low
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithQuantities(10, 0), testutil.WithThreshold(10))

	repo := repository.NewBatchRepository(suite.DB)

	low, err := repo.LowStock(ctx, pharmacyID)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, worst.ID, low[0].ID)
	assert.Equal(t, mild.ID, low[1].ID)
}

func TestBatchExpiringWithin_WindowExcludesExpired(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	today := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now()))
	soon := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, 5)))
	// outside the window
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, 40)))
	// already expired batches never appear
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, -1)))

	repo := repository.NewBatchRepository(suite.DB)

	within, err := repo.ExpiringWithin(ctx, pharmacyID, 30)
	require.NoError(t, err)
	require.Len(t, within, 2)
	// Stock expiring today is still sellable and leads the report
	assert.Equal(t, today.ID, within[0].ID)
	assert.Equal(t, soon.ID, within[1].ID)
}

func TestCandidatesForUpdate_TodayExpiryIsStillSellable(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	today := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now()))
	later := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 6, 0)))
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, -1)))
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithQuantities(0, 0))

	repo := repository.NewBatchRepository(suite.DB)

	err := suite.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		candidates, err := repo.CandidatesForUpdate(ctx, tx, pharmacyID, medicine.ID)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, today.ID, candidates[0].ID)
		assert.Equal(t, later.ID, candidates[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestBatchListByPharmacy_Filters(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medA := suite.SeedMedicine(t, ctx, testutil.WithMedicineName("Amoxicillin 500mg"))
	medB := suite.SeedMedicine(t, ctx, testutil.WithMedicineName("Ibuprofen 400mg"))

	suite.SeedBatch(t, ctx, pharmacyID, medA.ID, testutil.WithBatchNumber("AMX-1"))
	suite.SeedBatch(t, ctx, pharmacyID, medB.ID, testutil.WithBatchNumber("IBU-1"))
	suite.SeedBatch(t, ctx, pharmacyID, medB.ID,
		testutil.WithBatchNumber("IBU-2"),
		testutil.WithQuantities(1, 0), testutil.WithThreshold(10))

	repo := repository.NewBatchRepository(suite.DB)

	byMedicine, err := repo.ListByPharmacy(ctx, pharmacyID, repository.BatchFilter{MedicineID: medB.ID})
	require.NoError(t, err)
	assert.Len(t, byMedicine, 2)

	// Name filter matches a case-insensitive substring
	byName, err := repo.ListByPharmacy(ctx, pharmacyID, repository.BatchFilter{MedicineName: "ibuprofen"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	// Batch number filter is a substring match too
	byNumber, err := repo.ListByPharmacy(ctx, pharmacyID, repository.BatchFilter{BatchNumber: "AMX"})
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	assert.Equal(t, "Amoxicillin 500mg", byNumber[0].MedicineName)

	lowOnly, err := repo.ListByPharmacy(ctx, pharmacyID, repository.BatchFilter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, lowOnly, 1)
	assert.Equal(t, "IBU-2", lowOnly[0].BatchNumber)
}

func TestBatchListByPharmacy_ExpiryWindowFilter(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	inWindow := suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, 10)))
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, 60)))
	suite.SeedBatch(t, ctx, pharmacyID, medicine.ID,
		testutil.WithExpiry(time.Now().AddDate(0, 0, -1)))

	repo := repository.NewBatchRepository(suite.DB)

	within, err := repo.ListByPharmacy(ctx, pharmacyID, repository.BatchFilter{ExpiringInDays: 30})
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, inWindow.ID, within[0].ID)
}

func TestBatchCreate_ZeroPriceRejected(t *testing.T) {
	testutil.SkipUnlessIntegration(t)
	ctx := context.Background()
	pharmacyID := newPharmacyID()
	medicine := suite.SeedMedicine(t, ctx)

	repo := repository.NewBatchRepository(suite.DB)

	zero := 0.0
	batch := newBatch(pharmacyID, medicine.ID, "FREE-001", 50, 10, time.Now().AddDate(1, 0, 0))
	batch.UnitPrice = &zero

	err := repo.Create(ctx, batch)

	require.Error(t, err)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, "unit_price")
}

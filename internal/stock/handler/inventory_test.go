package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/handler"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/service"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/identity"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
	"github.com/pharmaflow/pharmaflow-backend/pkg/messaging"
	"github.com/pharmaflow/pharmaflow-backend/pkg/testutil"
)

const (
	testPharmacyID = "11111111-1111-1111-1111-111111111111"
	testMedicineID = "22222222-2222-2222-2222-222222222222"
	testBatchID    = "33333333-3333-3333-3333-333333333333"
)

func newInventoryRouter(t *testing.T) (http.Handler, *testutil.MockDB, *testutil.MockPublisher) {
	t.Helper()

	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.FromSqlx(mockDB.DB, log)

	batchRepo := repository.NewBatchRepository(db)
	medicineRepo := repository.NewMedicineRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	publisher := testutil.NewMockPublisher()
	notifier := service.NewNotifier(notificationRepo, publisher, log)
	ledger := service.NewLedger(db, batchRepo, medicineRepo, notifier, publisher, 250*time.Millisecond, log)
	reports := service.NewReports(batchRepo)

	h := handler.NewInventoryHandler(ledger, reports, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithPharmacyID(req.Context(), testPharmacyID)))
		})
	})
	r.Get("/inventory", h.List)
	r.Delete("/inventory/{id}", h.Delete)

	return r, mockDB, publisher
}

func batchColumns() []string {
	return []string{
		"id", "pharmacy_id", "medicine_id", "batch_number",
		"quantity_available", "quantity_reserved", "minimum_threshold",
		"manufacture_date", "expiry_date", "purchase_date",
		"supplier_name", "unit_price", "mrp", "created_at", "updated_at",
	}
}

func batchRow(available, reserved int) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(batchColumns()...).AddRow(
		testBatchID, testPharmacyID, testMedicineID, "BATCH-001",
		available, reserved, 5,
		nil, now.AddDate(1, 0, 0), nil,
		nil, nil, nil, now, now,
	)
}

func TestDeleteBatch_ReturnsDeletedID(t *testing.T) {
	router, mockDB, publisher := newInventoryRouter(t)

	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 AND pharmacy_id = $2").
		WithArgs(testBatchID, testPharmacyID).
		WillReturnRows(batchRow(0, 0))
	mockDB.ExpectExec("DELETE FROM inventory_batches").
		WithArgs(testBatchID, testPharmacyID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := testutil.NewHTTPRequest(http.MethodDelete, "/inventory/"+testBatchID, nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, testBatchID)
	publisher.AssertEventPublished(t, messaging.EventBatchDeleted)
	mockDB.ExpectationsWereMet(t)
}

func TestDeleteBatch_ReservedStockConflicts(t *testing.T) {
	router, mockDB, publisher := newInventoryRouter(t)

	mockDB.ExpectQuery("SELECT * FROM inventory_batches WHERE id = $1 AND pharmacy_id = $2").
		WithArgs(testBatchID, testPharmacyID).
		WillReturnRows(batchRow(10, 4))
	mockDB.ExpectExec("DELETE FROM inventory_batches").
		WithArgs(testBatchID, testPharmacyID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectQuery("SELECT quantity_reserved FROM inventory_batches").
		WithArgs(testBatchID, testPharmacyID).
		WillReturnRows(testutil.MockRows("quantity_reserved").AddRow(4))

	req := testutil.NewHTTPRequest(http.MethodDelete, "/inventory/"+testBatchID, nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	publisher.AssertNoEvents(t)
	mockDB.ExpectationsWereMet(t)
}

func TestListBatches_QueryParamsReachFilters(t *testing.T) {
	router, mockDB, _ := newInventoryRouter(t)

	cols := append(batchColumns(), "medicine_name", "generic_name")
	mockDB.ExpectQuery("m.name ILIKE $2 AND b.batch_number ILIKE $3").
		WithArgs(testPharmacyID, "%amox%", "%BX%", 15, 50).
		WillReturnRows(testutil.MockRows(cols...))

	req := testutil.NewHTTPRequest(http.MethodGet,
		"/inventory?medicine_name=amox&batch_number=BX&expiry_days=15", nil)
	rr := testutil.ExecuteRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	mockDB.ExpectationsWereMet(t)
}

package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/service"
	"github.com/pharmaflow/pharmaflow-backend/pkg/errors"
	"github.com/pharmaflow/pharmaflow-backend/pkg/httputil"
	"github.com/pharmaflow/pharmaflow-backend/pkg/identity"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
)

const defaultExpiryWindowDays = 30

// InventoryHandler handles batch and stock-ledger endpoints
type InventoryHandler struct {
	ledger  *service.Ledger
	reports *service.Reports
	logger  *logger.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(ledger *service.Ledger, reports *service.Reports, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		ledger:  ledger,
		reports: reports,
		logger:  log,
	}
}

// List lists batches for the calling pharmacy
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	filter := repository.BatchFilter{
		MedicineID:     r.URL.Query().Get("medicine_id"),
		MedicineName:   r.URL.Query().Get("medicine_name"),
		BatchNumber:    r.URL.Query().Get("batch_number"),
		LowStockOnly:   r.URL.Query().Get("low_stock") == "true",
		ExpiringInDays: queryInt(r, "expiry_days", 0),
		Limit:          queryInt(r, "limit", 50),
		Offset:         queryInt(r, "offset", 0),
	}

	batches, err := h.ledger.ListBatches(r.Context(), pharmacyID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page := 1
	if filter.Limit > 0 {
		page = filter.Offset/filter.Limit + 1
	}
	httputil.JSONWithMeta(w, http.StatusOK, batches, &httputil.Meta{
		Page:    page,
		PerPage: filter.Limit,
	})
}

// Create registers a new batch
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	var input service.AddStockInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.ledger.AddStock(r.Context(), pharmacyID, input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Get returns a single batch
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())
	id := chi.URLParam(r, "id")

	batch, err := h.ledger.GetBatch(r.Context(), pharmacyID, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Update updates batch metadata
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())
	id := chi.URLParam(r, "id")

	var input service.UpdateBatchInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.ledger.UpdateBatch(r.Context(), pharmacyID, id, input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Delete removes a batch
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.ledger.DeleteBatch(r.Context(), pharmacyID, id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"id": id})
}

// Adjust changes available stock by a signed delta
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Delta  int    `json:"delta" validate:"required"`
		Reason string `json:"reason" validate:"omitempty,max=255"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.ledger.AdjustQuantity(r.Context(), pharmacyID, id, req.Delta, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Reserve moves stock from available to reserved
func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.quantityOp(w, r, h.ledger.Reserve)
}

// Release moves reserved stock back to available
func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.quantityOp(w, r, h.ledger.Release)
}

// Consume removes reserved stock permanently
func (h *InventoryHandler) Consume(w http.ResponseWriter, r *http.Request) {
	h.quantityOp(w, r, h.ledger.Consume)
}

func (h *InventoryHandler) quantityOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, pharmacyID, batchID string, amount int) (*repository.Batch, error)) {
	pharmacyID := identity.MustPharmacyID(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Amount int `json:"amount" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := op(r.Context(), pharmacyID, id, req.Amount)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Allocate reserves stock for a medicine across batches, earliest
// expiry first
func (h *InventoryHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	var req struct {
		MedicineID string `json:"medicine_id" validate:"required,uuid"`
		Amount     int    `json:"amount" validate:"required,gt=0"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	allocations, err := h.ledger.AllocateFEFO(r.Context(), pharmacyID, req.MedicineID, req.Amount)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"medicine_id": req.MedicineID,
		"amount":      req.Amount,
		"allocations": allocations,
	})
}

// LowStock returns the shortage report
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	entries, err := h.reports.LowStock(r.Context(), pharmacyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// ExpiringSoon returns the expiry-risk report
func (h *InventoryHandler) ExpiringSoon(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	days := queryInt(r, "days", defaultExpiryWindowDays)
	if days <= 0 || days > 365 {
		httputil.Error(w, errors.BadRequest("days must be between 1 and 365"))
		return
	}

	report, err := h.reports.ExpiringWithin(r.Context(), pharmacyID, days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

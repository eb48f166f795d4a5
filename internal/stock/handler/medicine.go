package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/pkg/httputil"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
)

// MedicineHandler handles medicine catalog lookups
type MedicineHandler struct {
	repo   *repository.MedicineRepository
	logger *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(repo *repository.MedicineRepository, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		repo:   repo,
		logger: log,
	}
}

// List lists active medicines, optionally filtered by name
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.repo.List(r.Context(),
		r.URL.Query().Get("search"),
		queryInt(r, "limit", 50),
		queryInt(r, "offset", 0),
	)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}

// Get returns a single medicine
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	medicine, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

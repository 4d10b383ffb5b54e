package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// StockHandler handles stock-level endpoints: duplicate checks,
// allocation and grouped views
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// CheckDuplicateRequest identifies the entry being checked
type CheckDuplicateRequest struct {
	MedicineName string `json:"medicine_name" validate:"required"`
	BatchNumber  string `json:"batch_number" validate:"required"`
}

// CheckDuplicate checks whether a new entry collides with an existing batch
func (h *StockHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req CheckDuplicateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result := h.service.CheckForDuplicate(r.Context(), req.MedicineName, req.BatchNumber)
	httputil.JSON(w, http.StatusOK, result)
}

// AllocateRequest asks for a first-expiry-first-out allocation plan.
// With commit set the plan is applied to stock levels.
type AllocateRequest struct {
	MedicineName string `json:"medicine_name" validate:"required"`
	Quantity     int    `json:"quantity" validate:"gt=0"`
	Commit       bool   `json:"commit"`
}

// Allocate plans (and optionally commits) a FEFO allocation
func (h *StockHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.AllocateFEFO(r.Context(), req.MedicineName, req.Quantity, req.Commit, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// BestBatch returns the batch a sale should draw from first
func (h *StockHandler) BestBatch(w http.ResponseWriter, r *http.Request) {
	medicineName := chi.URLParam(r, "medicine")

	batch, err := h.service.BestBatch(r.Context(), medicineName)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// ListByMedicine lists the batches of one medicine in first-expiry order
func (h *StockHandler) ListByMedicine(w http.ResponseWriter, r *http.Request) {
	medicineName := chi.URLParam(r, "medicine")

	batches, err := h.service.ListBatchesByMedicine(r.Context(), medicineName)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Grouped returns the whole inventory partitioned by medicine name
func (h *StockHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.GroupedByMedicine(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, groups)
}

// Dashboard returns inventory dashboard aggregates
func (h *StockHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

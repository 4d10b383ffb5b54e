package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/httputil"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.StockService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// CreateBatchRequest is the payload for entering a new batch
type CreateBatchRequest struct {
	MedicineName      string          `json:"medicine_name" validate:"required"`
	BatchNumber       string          `json:"batch_number" validate:"required"`
	Quantity          int             `json:"quantity" validate:"gte=0"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
	Company           string          `json:"company"`
	RackLocation      string          `json:"rack_location"`
	SellingUnit       string          `json:"selling_unit"`
	IsNarcotic        bool            `json:"is_narcotic"`
}

// Create creates a new batch
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	details := make(map[string]string)
	if !req.SellingPrice.IsPositive() {
		details["selling_price"] = "must be positive"
	}
	if !req.PurchasePrice.IsPositive() {
		details["purchase_price"] = "must be positive"
	}
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	batch := &domain.Batch{
		MedicineName:      req.MedicineName,
		BatchNumber:       req.BatchNumber,
		Quantity:          req.Quantity,
		SellingPrice:      req.SellingPrice,
		PurchasePrice:     req.PurchasePrice,
		ExpiryDate:        req.ExpiryDate,
		ManufacturingDate: req.ManufacturingDate,
		Company:           req.Company,
		RackLocation:      req.RackLocation,
		SellingUnit:       req.SellingUnit,
		IsNarcotic:        req.IsNarcotic,
	}

	if err := h.service.CreateBatch(r.Context(), batch, httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// List lists batches with pagination
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	batches, err := h.service.ListBatches(r.Context(), limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Update updates a batch
func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var batch domain.Batch
	if err := httputil.DecodeJSON(r, &batch); err != nil {
		httputil.Error(w, err)
		return
	}

	batch.ID = id
	if err := h.service.UpdateBatch(r.Context(), &batch); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Delete deletes a batch
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBatch(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// MergeRequest is the payload for merging incoming stock into a batch
type MergeRequest struct {
	Quantity          int             `json:"quantity" validate:"required"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	ManufacturingDate time.Time       `json:"manufacturing_date"`
}

// Merge merges incoming stock into an existing batch
func (h *BatchHandler) Merge(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	var req MergeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	incoming := domain.IncomingStock{
		Quantity:          req.Quantity,
		SellingPrice:      req.SellingPrice,
		PurchasePrice:     req.PurchasePrice,
		ExpiryDate:        req.ExpiryDate,
		ManufacturingDate: req.ManufacturingDate,
	}

	outcome, err := h.service.MergeStock(r.Context(), batchID, incoming, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, outcome)
}

// ListAudit lists a batch's merge history, newest first
func (h *BatchHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	limit, offset := pagination(r)

	entries, total, err := h.service.ListMergeAudit(r.Context(), batchID, limit, offset)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{
		Total: int64(total),
	})
}

// pagination reads limit/offset query params with sane bounds
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

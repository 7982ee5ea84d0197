package invoices

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyline/tallyline/internal/platform/httpx"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

// Handler exposes the invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.remove)
		r.Post("/authenticate", h.authenticate)
		r.Post("/business-verify", h.businessVerify)
	})
}

type createPayload struct {
	InvoiceNo    string  `json:"invoiceNo" validate:"required"`
	InvoiceCode  string  `json:"invoiceCode"`
	SupplierID   string  `json:"supplierId" validate:"required"`
	SupplierName string  `json:"supplierName"`
	InvoiceType  string  `json:"invoiceType"`
	Source       string  `json:"source" validate:"omitempty,oneof=manual ocr electronic_import"`
	Amount       float64 `json:"amount" validate:"gt=0"`
	TaxAmount    float64 `json:"taxAmount" validate:"gte=0"`
	InvoiceDate  string  `json:"invoiceDate"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Create(r.Context(), CreateInput{
		InvoiceNo:    payload.InvoiceNo,
		InvoiceCode:  payload.InvoiceCode,
		SupplierID:   payload.SupplierID,
		SupplierName: payload.SupplierName,
		InvoiceType:  payload.InvoiceType,
		Source:       payload.Source,
		Amount:       payload.Amount,
		TaxAmount:    payload.TaxAmount,
		InvoiceDate:  payload.InvoiceDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": inv})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		SupplierID:   r.URL.Query().Get("supplierId"),
		Status:       settlement.VerificationStatus(r.URL.Query().Get("verificationStatus")),
		Authenticity: settlement.AuthenticityStatus(r.URL.Query().Get("authenticityStatus")),
		Business:     settlement.BusinessStatus(r.URL.Query().Get("businessStatus")),
	}
	out, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if out == nil {
		out = []settlement.Invoice{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Authenticate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrServiceUnavailable) {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": err.Error(),
			"data":  inv,
		})
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

type businessVerifyPayload struct {
	Usable bool   `json:"usable"`
	Reason string `json:"reason"`
}

func (h *Handler) businessVerify(w http.ResponseWriter, r *http.Request) {
	var payload businessVerifyPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	inv, err := h.service.BusinessVerify(r.Context(), chi.URLParam(r, "id"), payload.Usable, payload.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": inv})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAuthenticityRequired),
		errors.Is(err, ErrReasonRequired),
		errors.Is(err, ErrInUse):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package statements

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyline/tallyline/internal/platform/httpx"
	"github.com/tallyline/tallyline/internal/shared"
)

// Handler exposes the statement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers statement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/send", h.send)
		r.Post("/supplier-confirm", h.supplierConfirm)
		r.Post("/dispute", h.dispute)
		r.Post("/confirm", h.buyerConfirm)
	})
}

type createStatementPayload struct {
	SupplierID        string   `json:"supplierId" validate:"required"`
	SupplierName      string   `json:"supplierName"`
	PeriodStart       string   `json:"periodStart" validate:"required"`
	PeriodEnd         string   `json:"periodEnd" validate:"required"`
	PurchaseRecordIDs []string `json:"purchaseRecordIds" validate:"required,min=1"`
	DeductionAmount   float64  `json:"deductionAmount" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createStatementPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	st, err := h.service.Create(r.Context(), CreateInput{
		SupplierID:        payload.SupplierID,
		SupplierName:      payload.SupplierName,
		PeriodStart:       payload.PeriodStart,
		PeriodEnd:         payload.PeriodEnd,
		PurchaseRecordIDs: payload.PurchaseRecordIDs,
		DeductionAmount:   payload.DeductionAmount,
	})
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": st})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.List(r.Context(), Status(q.Get("status")), q.Get("supplierId"))
	if err != nil {
		h.logger.Error("list statements failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Statement{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": st})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.SendToSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": st})
}

type supplierConfirmPayload struct {
	SupplierAmount float64 `json:"supplierAmount" validate:"gte=0"`
}

func (h *Handler) supplierConfirm(w http.ResponseWriter, r *http.Request) {
	// The supplier's own balance is optional; no body means full agreement.
	var payload supplierConfirmPayload
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
			return
		}
		if err := h.validate.Struct(payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	st, err := h.service.SupplierConfirm(r.Context(), chi.URLParam(r, "id"), payload.SupplierAmount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": st})
}

type disputePayload struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) dispute(w http.ResponseWriter, r *http.Request) {
	var payload disputePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	st, err := h.service.Dispute(r.Context(), chi.URLParam(r, "id"), payload.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": st})
}

func (h *Handler) buyerConfirm(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.BuyerConfirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": st})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadTransition):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("statement request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

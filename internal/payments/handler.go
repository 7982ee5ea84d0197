package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyline/tallyline/internal/platform/httpx"
	"github.com/tallyline/tallyline/internal/shared"
)

// Handler exposes the payment request endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/submit", h.submit)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Post("/pay", h.pay)
	})
}

type createRequestPayload struct {
	SupplierID      string   `json:"supplierId" validate:"required"`
	SupplierName    string   `json:"supplierName"`
	Amount          float64  `json:"amount" validate:"gt=0"`
	InvoiceIDs      []string `json:"invoiceIds"`
	PurchaseOrderID string   `json:"purchaseOrderId"`
	PayableID       string   `json:"payableId"`
	Remarks         string   `json:"remarks"`
	CreatedBy       string   `json:"createdBy" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createRequestPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req, err := h.service.Create(r.Context(), CreateInput{
		SupplierID:      payload.SupplierID,
		SupplierName:    payload.SupplierName,
		Amount:          payload.Amount,
		InvoiceIDs:      payload.InvoiceIDs,
		PurchaseOrderID: payload.PurchaseOrderID,
		PayableID:       payload.PayableID,
		Remarks:         payload.Remarks,
		CreatedBy:       payload.CreatedBy,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": req})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.List(r.Context(), RequestStatus(q.Get("status")), q.Get("supplierId"))
	if err != nil {
		h.logger.Error("list payment requests failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []PaymentRequest{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": req})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": req})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": req})
}

type rejectPayload struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var payload rejectPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"), payload.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": req})
}

type payPayload struct {
	Amount        float64 `json:"amount" validate:"gte=0"`
	PaymentMethod string  `json:"paymentMethod"`
	BankAccount   string  `json:"bankAccount"`
	BankName      string  `json:"bankName"`
	TransactionNo string  `json:"transactionNo"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	// Everything is optional: an empty body pays the full unpaid balance.
	var payload payPayload
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
	req, err := h.service.Pay(r.Context(), chi.URLParam(r, "id"), PayInput{
		Amount:        payload.Amount,
		PaymentMethod: payload.PaymentMethod,
		BankAccount:   payload.BankAccount,
		BankName:      payload.BankName,
		TransactionNo: payload.TransactionNo,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": req})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrSourceRequired),
		errors.Is(err, ErrSourceConflict),
		errors.Is(err, ErrAmountExceedsSource),
		errors.Is(err, ErrBadTransition):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("payment request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package settlement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyline/tallyline/internal/observability"
	"github.com/tallyline/tallyline/internal/platform/httpx"
)

// Handler exposes the verification endpoints under /accounts-payable.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers verification routes on the accounts-payable router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/batch-verify", h.batchVerify)
	r.Route("/{id}/verifications", func(r chi.Router) {
		r.Get("/", h.listVerifications)
		r.Post("/", h.verify)
		r.Post("/{vid}/reverse", h.reverse)
	})
}

// detailPayload is the wire form of a per-document amount.
type detailPayload struct {
	PaymentOrderID string  `json:"paymentOrderId"`
	InvoiceID      string  `json:"invoiceId"`
	Amount         float64 `json:"amount"`
}

// verifyPayload accepts both the plural reference fields and the legacy
// singular ones older clients still send.
type verifyPayload struct {
	PaymentOrderIDs     []string        `json:"paymentOrderIds"`
	PaymentOrderID      string          `json:"paymentOrderId"`
	InvoiceIDs          []string        `json:"invoiceIds"`
	InvoiceID           string          `json:"invoiceId"`
	Amount              float64         `json:"amount"`
	PaymentOrderDetails []detailPayload `json:"paymentOrderDetails"`
	InvoiceDetails      []detailPayload `json:"invoiceDetails"`
	VerifiedBy          string          `json:"verifiedBy" validate:"required"`
	Remarks             string          `json:"remarks"`
}

func (p verifyPayload) toInput(payableID string) VerifyInput {
	in := VerifyInput{
		PayableID:       payableID,
		PaymentOrderIDs: p.PaymentOrderIDs,
		InvoiceIDs:      p.InvoiceIDs,
		Amount:          p.Amount,
		VerifiedBy:      p.VerifiedBy,
		Remarks:         p.Remarks,
	}
	if len(in.PaymentOrderIDs) == 0 && p.PaymentOrderID != "" {
		in.PaymentOrderIDs = []string{p.PaymentOrderID}
	}
	if len(in.InvoiceIDs) == 0 && p.InvoiceID != "" {
		in.InvoiceIDs = []string{p.InvoiceID}
	}
	for _, d := range p.PaymentOrderDetails {
		in.PaymentOrderDetails = append(in.PaymentOrderDetails, DetailEntry{ID: d.PaymentOrderID, Amount: d.Amount})
	}
	for _, d := range p.InvoiceDetails {
		in.InvoiceDetails = append(in.InvoiceDetails, DetailEntry{ID: d.InvoiceID, Amount: d.Amount})
	}
	return in
}

func (h *Handler) listVerifications(w http.ResponseWriter, r *http.Request) {
	payableID := chi.URLParam(r, "id")
	records, err := h.service.ListVerifications(r.Context(), payableID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if records == nil {
		records = []VerificationRecord{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	payableID := chi.URLParam(r, "id")
	var payload verifyPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.Verify(r.Context(), payload.toInput(payableID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordVerification(string(rec.Type))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

type batchPayload struct {
	Configs []struct {
		PayableID string `json:"payableId" validate:"required"`
		verifyPayload
	} `json:"configs" validate:"required,min=1"`
	VerifiedBy string `json:"verifiedBy"`
}

func (h *Handler) batchVerify(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if len(payload.Configs) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "configs must contain at least one entry")
		return
	}
	configs := make([]VerifyInput, 0, len(payload.Configs))
	for _, cfg := range payload.Configs {
		configs = append(configs, cfg.toInput(cfg.PayableID))
	}
	result, err := h.service.BatchVerify(r.Context(), configs, payload.VerifiedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordBatchVerification(result.SuccessCount, result.FailCount)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": result})
}

type reversePayload struct {
	ReasonType        string `json:"reasonType" validate:"required"`
	ReasonDetail      string `json:"reasonDetail" validate:"required"`
	ReversedBy        string `json:"reversedBy" validate:"required"`
	ApprovalConfirmed bool   `json:"approvalConfirmed"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	payableID := chi.URLParam(r, "id")
	verificationID := chi.URLParam(r, "vid")
	var payload reversePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.Reverse(r.Context(), ReverseInput{
		VerificationID:    verificationID,
		PayableID:         payableID,
		ReasonType:        ReverseReason(payload.ReasonType),
		ReasonDetail:      payload.ReasonDetail,
		ReversedBy:        payload.ReversedBy,
		ApprovalConfirmed: payload.ApprovalConfirmed,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordReversal(rec.CrossMonthApproved)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// respondError maps settlement errors onto HTTP responses. The cross-month
// gate keeps its dedicated shape so clients can prompt for approval.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var crossMonth *CrossMonthApprovalError
	if errors.As(err, &crossMonth) {
		httpx.JSON(w, http.StatusBadRequest, map[string]any{
			"error":             crossMonth.Error(),
			"requireApproval":   true,
			"crossMonth":        true,
			"verificationMonth": crossMonth.VerificationMonth,
		})
		return
	}
	var capErr *CapExceededError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &capErr),
		errors.Is(err, ErrEmptySelection),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, ErrMissingReason),
		errors.Is(err, ErrReasonTooShort):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("settlement request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

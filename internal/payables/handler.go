package payables

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyline/tallyline/internal/platform/httpx"
	"github.com/tallyline/tallyline/internal/settlement"
)

// Handler exposes the payable query endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		SupplierID:    r.URL.Query().Get("supplierId"),
		Status:        settlement.VerificationStatus(r.URL.Query().Get("verificationStatus")),
		PaymentStatus: settlement.PaymentStatus(r.URL.Query().Get("paymentStatus")),
		SourceType:    settlement.SourceType(r.URL.Query().Get("sourceType")),
	}
	payables, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list payables failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if payables == nil {
		payables = []settlement.Payable{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": payables})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": p})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("summarize payables failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyline/tallyline/internal/platform/httpx"
)

// Handler exposes the procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)
	r.Post("/records", h.addRecord)
	r.Get("/records", h.listRecords)
	r.Post("/records/{id}/confirm", h.confirmRecord)
}

type createOrderPayload struct {
	SupplierID   string  `json:"supplierId" validate:"required"`
	SupplierName string  `json:"supplierName"`
	OrderType    string  `json:"orderType"`
	TotalAmount  float64 `json:"totalAmount" validate:"gt=0"`
	Remarks      string  `json:"remarks"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		SupplierID:   payload.SupplierID,
		SupplierName: payload.SupplierName,
		OrderType:    OrderType(payload.OrderType),
		TotalAmount:  payload.TotalAmount,
		Remarks:      payload.Remarks,
	})
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), OrderType(r.URL.Query().Get("orderType")), r.URL.Query().Get("supplierId"))
	if err != nil {
		h.logger.Error("list purchase orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if orders == nil {
		orders = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": order})
}

type recordPayload struct {
	PoNo        string  `json:"poNo" validate:"required"`
	RecordType  string  `json:"recordType" validate:"omitempty,oneof=inbound return"`
	ItemName    string  `json:"itemName" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	DeliveredAt string  `json:"deliveredAt" validate:"required"`
}

func (h *Handler) addRecord(w http.ResponseWriter, r *http.Request) {
	var payload recordPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.AddRecord(r.Context(), RecordInput{
		PoNo:        payload.PoNo,
		RecordType:  RecordType(payload.RecordType),
		ItemName:    payload.ItemName,
		Quantity:    payload.Quantity,
		UnitPrice:   payload.UnitPrice,
		DeliveredAt: payload.DeliveredAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

func (h *Handler) confirmRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.ConfirmRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.service.ListRecords(r.Context(), q.Get("supplierId"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.logger.Error("list purchase records failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if records == nil {
		records = []PurchaseRecord{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

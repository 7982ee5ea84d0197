package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyline/tallyline/internal/invoices"
	"github.com/tallyline/tallyline/internal/observability"
	"github.com/tallyline/tallyline/internal/payables"
	"github.com/tallyline/tallyline/internal/payments"
	"github.com/tallyline/tallyline/internal/procurement"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/statements"
	"github.com/tallyline/tallyline/internal/suppliers"
)

// RouterParams lists everything the HTTP router needs.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Suppliers   *suppliers.Handler
	Procurement *procurement.Handler
	Invoices    *invoices.Handler
	Payables    *payables.Handler
	Settlement  *settlement.Handler
	Payments    *payments.Handler
	Statements  *statements.Handler
}

// NewRouter builds the top-level router with the full middleware stack.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/suppliers", params.Suppliers.MountRoutes)
	r.Route("/purchase-orders", params.Procurement.MountRoutes)
	r.Route("/invoices", params.Invoices.MountRoutes)
	r.Route("/accounts-payable", func(r chi.Router) {
		params.Payables.MountRoutes(r)
		params.Settlement.MountRoutes(r)
	})
	r.Route("/payment-requests", params.Payments.MountRoutes)
	r.Route("/supplier-statements", params.Statements.MountRoutes)

	return r
}

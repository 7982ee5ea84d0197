package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tallyline/tallyline/internal/app"
	"github.com/tallyline/tallyline/internal/invoices"
	"github.com/tallyline/tallyline/internal/observability"
	"github.com/tallyline/tallyline/internal/payables"
	"github.com/tallyline/tallyline/internal/payments"
	"github.com/tallyline/tallyline/internal/platform/cache"
	"github.com/tallyline/tallyline/internal/platform/db"
	"github.com/tallyline/tallyline/internal/procurement"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
	"github.com/tallyline/tallyline/internal/statements"
	"github.com/tallyline/tallyline/internal/suppliers"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, summary caching disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	supplierService := suppliers.NewService(suppliers.NewSQLRepository(pool), logger)
	supplierHandler := suppliers.NewHandler(logger, supplierService)

	procurementRepo := procurement.NewSQLRepository(pool)
	procurementService := procurement.NewService(procurementRepo, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	invoiceService := invoices.NewService(invoices.NewSQLRepository(pool), logger)
	invoiceHandler := invoices.NewHandler(logger, invoiceService)

	payableService := payables.NewService(payables.NewSQLRepository(pool), redisClient, logger)
	payableHandler := payables.NewHandler(logger, payableService)

	settlementService := settlement.NewService(settlement.NewSQLRepository(pool), auditLogger, logger)
	settlementHandler := settlement.NewHandler(logger, settlementService, metrics)

	paymentService := payments.NewService(payments.NewSQLRepository(pool), settlementService, logger)
	paymentHandler := payments.NewHandler(logger, paymentService)

	statementService := statements.NewService(
		statements.NewSQLRepository(pool),
		procurementRepo,
		payableService,
		settlementService,
		logger,
	)
	statementHandler := statements.NewHandler(logger, statementService)

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,

		Suppliers:   supplierHandler,
		Procurement: procurementHandler,
		Invoices:    invoiceHandler,
		Payables:    payableHandler,
		Settlement:  settlementHandler,
		Payments:    paymentHandler,
		Statements:  statementHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

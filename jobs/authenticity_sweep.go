package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tallyline/tallyline/internal/invoices"
	"github.com/tallyline/tallyline/internal/settlement"
)

// AuthenticitySweepJob re-runs the authenticity check for invoices that
// were never checked or whose last check hit a tax-service outage.
type AuthenticitySweepJob struct {
	Invoices *invoices.Service
	Logger   *slog.Logger
}

// NewAuthenticitySweepJob initialises the sweep handler.
func NewAuthenticitySweepJob(service *invoices.Service, logger *slog.Logger) *AuthenticitySweepJob {
	return &AuthenticitySweepJob{Invoices: service, Logger: logger}
}

// Handle executes one sweep run.
func (j *AuthenticitySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("authenticity sweep: handler not configured")
	}
	var payload AuthenticitySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 200
	}

	start := time.Now()
	logger := j.logger().With(slog.Int("limit", payload.Limit))
	logger.Info("starting authenticity sweep")

	candidates, err := j.collect(ctx, payload.Limit)
	if err != nil {
		logger.Error("list invoices", slog.Any("error", err))
		return err
	}

	var checked, outages, failures int
	for _, inv := range candidates {
		if _, err := j.Invoices.Authenticate(ctx, inv.ID); err != nil {
			if errors.Is(err, invoices.ErrServiceUnavailable) {
				outages++
				continue
			}
			failures++
			logger.Warn("authenticity check failed",
				slog.String("invoice_id", inv.ID),
				slog.Any("error", err),
			)
			continue
		}
		checked++
	}

	logger.Info("completed authenticity sweep",
		slog.Int("candidates", len(candidates)),
		slog.Int("checked", checked),
		slog.Int("outages", outages),
		slog.Int("failures", failures),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *AuthenticitySweepJob) collect(ctx context.Context, limit int) ([]settlement.Invoice, error) {
	var out []settlement.Invoice
	for _, status := range []settlement.AuthenticityStatus{
		settlement.AuthenticityUnchecked,
		settlement.AuthenticityServiceUnavailable,
	} {
		batch, err := j.Invoices.List(ctx, invoices.ListFilter{Authenticity: status})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

func (j *AuthenticitySweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

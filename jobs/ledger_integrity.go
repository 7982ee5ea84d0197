package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerTables maps every table carrying a verified/unverified split to
// its gross amount column.
var ledgerTables = map[string]string{
	"payables":       "total_amount",
	"payment_orders": "amount",
	"invoices":       "total_amount",
}

// balanceTolerance absorbs float storage noise when comparing ledger sums.
const balanceTolerance = 0.005

// LedgerIntegrityJob asserts verified + unverified == total across the
// settlement ledgers and logs every row that drifted.
type LedgerIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger}
}

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tables := payload.Tables
	if len(tables) == 0 {
		for name := range ledgerTables {
			tables = append(tables, name)
		}
		sort.Strings(tables)
	}

	start := time.Now()
	logger := j.logger()
	logger.Info("starting ledger integrity scan")

	var scanned, violations int
	for _, table := range tables {
		totalColumn, ok := ledgerTables[table]
		if !ok {
			logger.Warn("skipping unknown ledger table", slog.String("table", table))
			continue
		}
		rows, broken, err := j.scanTable(ctx, table, totalColumn)
		if err != nil {
			logger.Error("scan failed", slog.String("table", table), slog.Any("error", err))
			return err
		}
		scanned += rows
		violations += broken

		if table == "payables" {
			rows, broken, err = j.scanConservation(ctx)
			if err != nil {
				logger.Error("conservation scan failed", slog.Any("error", err))
				return err
			}
			scanned += rows
			violations += broken
		}
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("rows", scanned),
		slog.Int("violations", violations),
		slog.Duration("duration", time.Since(start)),
	)
	if violations > 0 {
		return fmt.Errorf("ledger integrity: %d rows out of balance", violations)
	}
	return nil
}

func (j *LedgerIntegrityJob) scanTable(ctx context.Context, table, totalColumn string) (int, int, error) {
	query := fmt.Sprintf(`SELECT id, %s::double precision, verified_amount::double precision, unverified_amount::double precision FROM %s`, totalColumn, table)
	rows, err := j.Pool.Query(ctx, query)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var scanned, violations int
	for rows.Next() {
		var id string
		var total, verified, unverified float64
		if err := rows.Scan(&id, &total, &verified, &unverified); err != nil {
			return scanned, violations, err
		}
		scanned++
		drift := math.Abs(total - verified - unverified)
		if drift > balanceTolerance || verified < 0 || unverified < 0 {
			violations++
			j.logger().Warn("ledger balance drift",
				slog.String("table", table),
				slog.String("id", id),
				slog.Float64("total", total),
				slog.Float64("verified", verified),
				slog.Float64("unverified", unverified),
				slog.Float64("drift", drift),
			)
		}
	}
	return scanned, violations, rows.Err()
}

// scanConservation recomputes each payable's verified amount from its
// completed verification records. Reversed records carry no weight, so
// a payable whose verified_amount drifted from the record sum is flagged.
func (j *LedgerIntegrityJob) scanConservation(ctx context.Context) (int, int, error) {
	query := `SELECT p.id,
		p.verified_amount::double precision,
		COALESCE(SUM(v.amount) FILTER (WHERE v.status = 'completed'), 0)::double precision
	FROM payables p
	LEFT JOIN verifications v ON v.payable_id = p.id
	GROUP BY p.id, p.verified_amount`
	rows, err := j.Pool.Query(ctx, query)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var scanned, violations int
	for rows.Next() {
		var id string
		var verified, recorded float64
		if err := rows.Scan(&id, &verified, &recorded); err != nil {
			return scanned, violations, err
		}
		scanned++
		drift := math.Abs(verified - recorded)
		if drift > balanceTolerance {
			violations++
			j.logger().Warn("verification record drift",
				slog.String("table", "payables"),
				slog.String("id", id),
				slog.Float64("verified", verified),
				slog.Float64("recorded", recorded),
				slog.Float64("drift", drift),
			)
		}
	}
	return scanned, violations, rows.Err()
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

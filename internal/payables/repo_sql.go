package payables

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs a repository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

const payableColumns = `id, payable_no, supplier_id, supplier_name, source_type, source_id, source_no, total_amount, paid_amount, unpaid_amount, payment_status, verified_amount, unverified_amount, verification_status, due_date, created_at, updated_at`

func scanPayable(row pgx.Row) (*settlement.Payable, error) {
	var p settlement.Payable
	err := row.Scan(&p.ID, &p.PayableNo, &p.SupplierID, &p.SupplierName, &p.SourceType, &p.SourceID, &p.SourceNo, &p.TotalAmount, &p.PaidAmount, &p.UnpaidAmount, &p.PaymentStatus, &p.VerifiedAmount, &p.UnverifiedAmount, &p.Status, &p.DueDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns payables matching the filter, newest first.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]settlement.Payable, error) {
	query := `SELECT ` + payableColumns + ` FROM payables WHERE 1=1`
	var args []any
	if filter.SupplierID != "" {
		args = append(args, filter.SupplierID)
		query += ` AND supplier_id=$` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND verification_status=$` + strconv.Itoa(len(args))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		query += ` AND payment_status=$` + strconv.Itoa(len(args))
	}
	if filter.SourceType != "" {
		args = append(args, filter.SourceType)
		query += ` AND source_type=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.Payable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one payable by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (*settlement.Payable, error) {
	return scanPayable(r.pool.QueryRow(ctx, `SELECT `+payableColumns+` FROM payables WHERE id=$1`, id))
}

// Create inserts a new payable.
func (r *SQLRepository) Create(ctx context.Context, p *settlement.Payable) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payables (`+payableColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.PayableNo, p.SupplierID, p.SupplierName, p.SourceType, p.SourceID, p.SourceNo, p.TotalAmount, p.PaidAmount, p.UnpaidAmount, p.PaymentStatus, p.VerifiedAmount, p.UnverifiedAmount, p.Status, p.DueDate, p.CreatedAt, p.UpdatedAt)
	return err
}

// Summarize aggregates the ledger in one scan.
func (r *SQLRepository) Summarize(ctx context.Context) (*Summary, error) {
	summary := &Summary{ByStatus: map[settlement.VerificationStatus]int{}}
	rows, err := r.pool.Query(ctx, `SELECT verification_status, COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(verified_amount), 0), COALESCE(SUM(unverified_amount), 0) FROM payables GROUP BY verification_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status settlement.VerificationStatus
		var count int
		var total, verified, unverified float64
		if err := rows.Scan(&status, &count, &total, &verified, &unverified); err != nil {
			return nil, err
		}
		summary.ByStatus[status] = count
		summary.TotalCount += count
		summary.TotalAmount += total
		summary.VerifiedAmount += verified
		summary.UnverifiedAmount += unverified
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}

package statements

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const statementColumns = `id, statement_no, supplier_id, supplier_name, period_start, period_end, purchase_record_ids, total_amount, return_amount, deduction_amount, net_amount, supplier_amount, difference_amount, status, dispute_reason, payable_id, created_at, updated_at`

func scanStatement(row pgx.Row) (*Statement, error) {
	var st Statement
	var disputeReason, payableID *string
	err := row.Scan(&st.ID, &st.StatementNo, &st.SupplierID, &st.SupplierName, &st.PeriodStart, &st.PeriodEnd, &st.PurchaseRecordIDs, &st.TotalAmount, &st.ReturnAmount, &st.DeductionAmount, &st.NetAmount, &st.SupplierAmount, &st.DifferenceAmount, &st.Status, &disputeReason, &payableID, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if disputeReason != nil {
		st.DisputeReason = *disputeReason
	}
	if payableID != nil {
		st.PayableID = *payableID
	}
	return &st, nil
}

// List returns statements, optionally filtered.
func (r *SQLRepository) List(ctx context.Context, status Status, supplierID string) ([]Statement, error) {
	query := `SELECT ` + statementColumns + ` FROM supplier_statements WHERE 1=1`
	var args []any
	if status != "" {
		args = append(args, status)
		query += ` AND status=$` + strconv.Itoa(len(args))
	}
	if supplierID != "" {
		args = append(args, supplierID)
		query += ` AND supplier_id=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one statement by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (*Statement, error) {
	return scanStatement(r.pool.QueryRow(ctx, `SELECT `+statementColumns+` FROM supplier_statements WHERE id=$1`, id))
}

// Create inserts a new statement.
func (r *SQLRepository) Create(ctx context.Context, st *Statement) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO supplier_statements (`+statementColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		st.ID, st.StatementNo, st.SupplierID, st.SupplierName, st.PeriodStart, st.PeriodEnd, st.PurchaseRecordIDs, st.TotalAmount, st.ReturnAmount, st.DeductionAmount, st.NetAmount, st.SupplierAmount, st.DifferenceAmount, st.Status, nullable(st.DisputeReason), nullable(st.PayableID), st.CreatedAt, st.UpdatedAt)
	return err
}

// Save updates the statement's lifecycle columns.
func (r *SQLRepository) Save(ctx context.Context, st *Statement) error {
	_, err := r.pool.Exec(ctx, `UPDATE supplier_statements SET status=$1, supplier_amount=$2, difference_amount=$3, dispute_reason=$4, payable_id=$5, updated_at=$6 WHERE id=$7`,
		st.Status, st.SupplierAmount, st.DifferenceAmount, nullable(st.DisputeReason), nullable(st.PayableID), st.UpdatedAt, st.ID)
	return err
}

// FindPrepaidPaymentOrders resolves the statement's purchase records to the
// payment orders of paid prepaid requests on the same purchase orders that
// still carry an unverified balance.
func (r *SQLRepository) FindPrepaidPaymentOrders(ctx context.Context, purchaseRecordIDs []string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT po.id
FROM payment_orders po
JOIN payment_requests pr ON pr.id = po.payment_request_id
JOIN purchase_orders pu ON pu.id = pr.purchase_order_id
WHERE pr.request_type = 'prepaid'
  AND pr.status = 'paid'
  AND po.unverified_amount > 0
  AND pu.order_type = 'prepaid'
  AND pu.po_no IN (SELECT DISTINCT rec.po_no FROM purchase_records rec WHERE rec.id = ANY($1))
ORDER BY po.created_at`, purchaseRecordIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package payments

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyline/tallyline/internal/procurement"
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

const requestColumns = `id, request_no, supplier_id, supplier_name, request_type, amount, paid_amount, unpaid_amount, invoice_ids, purchase_order_id, payable_id, status, reject_reason, remarks, created_by, payment_order_id, paid_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*PaymentRequest, error) {
	var req PaymentRequest
	var poID, payableID, rejectReason, paymentOrderID *string
	err := row.Scan(&req.ID, &req.RequestNo, &req.SupplierID, &req.SupplierName, &req.RequestType, &req.Amount, &req.PaidAmount, &req.UnpaidAmount, &req.InvoiceIDs, &poID, &payableID, &req.Status, &rejectReason, &req.Remarks, &req.CreatedBy, &paymentOrderID, &req.PaidAt, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if poID != nil {
		req.PurchaseOrderID = *poID
	}
	if payableID != nil {
		req.PayableID = *payableID
	}
	if rejectReason != nil {
		req.RejectReason = *rejectReason
	}
	if paymentOrderID != nil {
		req.PaymentOrderID = *paymentOrderID
	}
	return &req, nil
}

// ListRequests returns payment requests, optionally filtered.
func (r *SQLRepository) ListRequests(ctx context.Context, status RequestStatus, supplierID string) ([]PaymentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM payment_requests WHERE 1=1`
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
	var out []PaymentRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRequest fetches one payment request by id.
func (r *SQLRepository) GetRequest(ctx context.Context, id string) (*PaymentRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id=$1`, id))
}

// CreateRequest inserts a new payment request.
func (r *SQLRepository) CreateRequest(ctx context.Context, req *PaymentRequest) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO payment_requests (`+requestColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		req.ID, req.RequestNo, req.SupplierID, req.SupplierName, req.RequestType, req.Amount, req.PaidAmount, req.UnpaidAmount, req.InvoiceIDs, nullable(req.PurchaseOrderID), nullable(req.PayableID), req.Status, nullable(req.RejectReason), req.Remarks, req.CreatedBy, nullable(req.PaymentOrderID), req.PaidAt, req.CreatedAt, req.UpdatedAt)
	return err
}

// SaveRequest updates the request's lifecycle columns.
func (r *SQLRepository) SaveRequest(ctx context.Context, req *PaymentRequest) error {
	return saveRequest(ctx, r.pool, req)
}

// SumInvoiceUnverified totals the unverified balances of the named invoices.
func (r *SQLRepository) SumInvoiceUnverified(ctx context.Context, ids []string) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(unverified_amount), 0) FROM invoices WHERE id = ANY($1)`, ids).Scan(&sum)
	return sum, err
}

// GetPurchaseOrder fetches a purchase order for prepaid validation.
func (r *SQLRepository) GetPurchaseOrder(ctx context.Context, id string) (*procurement.PurchaseOrder, error) {
	var o procurement.PurchaseOrder
	err := r.pool.QueryRow(ctx, `SELECT id, po_no, supplier_id, supplier_name, order_type, total_amount, paid_amount, payment_status, remarks, created_at, updated_at FROM purchase_orders WHERE id=$1`, id).
		Scan(&o.ID, &o.PoNo, &o.SupplierID, &o.SupplierName, &o.OrderType, &o.TotalAmount, &o.PaidAmount, &o.PaymentStatus, &o.Remarks, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// WithTx wraps the payout writes in one transaction.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	wrapper := &sqlTxRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type sqlTxRepo struct {
	tx pgx.Tx
}

func (t *sqlTxRepo) SaveRequest(ctx context.Context, req *PaymentRequest) error {
	return saveRequest(ctx, t.tx, req)
}

func (t *sqlTxRepo) CreatePaymentOrder(ctx context.Context, o *settlement.PaymentOrder) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payment_orders (id, payment_no, supplier_id, supplier_name, payment_request_id, amount, verified_amount, unverified_amount, verification_status, payment_method, bank_account, bank_name, transaction_no, payment_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.PaymentNo, o.SupplierID, o.SupplierName, nullable(o.PaymentRequestID), o.Amount, o.VerifiedAmount, o.UnverifiedAmount, o.Status, o.PaymentMethod, nullable(o.BankAccount), nullable(o.BankName), nullable(o.TransactionNo), o.PaymentDate, o.CreatedAt, o.UpdatedAt)
	return err
}

// ApplyPurchaseOrderPayment moves the paid balance on a prepaid order and
// rederives its payment status.
func (t *sqlTxRepo) ApplyPurchaseOrderPayment(ctx context.Context, id string, amount float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET paid_amount = paid_amount + $1,
payment_status = CASE WHEN paid_amount + $1 >= total_amount THEN 'paid' WHEN paid_amount + $1 > 0 THEN 'partial_paid' ELSE 'unpaid' END,
updated_at=NOW() WHERE id=$2`, amount, id)
	return err
}

// ApplyPayablePayment moves the paid balance on a payable and rederives its
// payment status.
func (t *sqlTxRepo) ApplyPayablePayment(ctx context.Context, id string, amount float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE payables SET paid_amount = paid_amount + $1, unpaid_amount = unpaid_amount - $1,
payment_status = CASE WHEN paid_amount + $1 >= total_amount THEN 'paid' WHEN paid_amount + $1 > 0 THEN 'partial_paid' ELSE 'unpaid' END,
updated_at=NOW() WHERE id=$2`, amount, id)
	return err
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func saveRequest(ctx context.Context, db execer, req *PaymentRequest) error {
	_, err := db.Exec(ctx, `UPDATE payment_requests SET status=$1, paid_amount=$2, unpaid_amount=$3, reject_reason=$4, payment_order_id=$5, paid_at=$6, updated_at=$7 WHERE id=$8`,
		req.Status, req.PaidAmount, req.UnpaidAmount, nullable(req.RejectReason), nullable(req.PaymentOrderID), req.PaidAt, req.UpdatedAt, req.ID)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

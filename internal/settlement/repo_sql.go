package settlement

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs a repository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *SQLRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
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

// GetRecord fetches a single verification record.
func (r *SQLRepository) GetRecord(ctx context.Context, id string) (*VerificationRecord, error) {
	return scanRecord(r.pool.QueryRow(ctx, selectRecord+` WHERE id=$1`, id))
}

// ListRecordsByPayable returns the verification records of a payable, newest first.
func (r *SQLRepository) ListRecordsByPayable(ctx context.Context, payableID string) ([]VerificationRecord, error) {
	rows, err := r.pool.Query(ctx, selectRecord+` WHERE payable_id=$1 ORDER BY created_at DESC`, payableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []VerificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type sqlTxRepo struct {
	tx pgx.Tx
}

func (t *sqlTxRepo) GetPayable(ctx context.Context, id string) (*Payable, error) {
	var p Payable
	err := t.tx.QueryRow(ctx, `SELECT id, payable_no, supplier_id, supplier_name, source_type, source_id, source_no, total_amount, paid_amount, unpaid_amount, payment_status, verified_amount, unverified_amount, verification_status, due_date, created_at, updated_at FROM payables WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.PayableNo, &p.SupplierID, &p.SupplierName, &p.SourceType, &p.SourceID, &p.SourceNo, &p.TotalAmount, &p.PaidAmount, &p.UnpaidAmount, &p.PaymentStatus, &p.VerifiedAmount, &p.UnverifiedAmount, &p.Status, &p.DueDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *sqlTxRepo) SavePayable(ctx context.Context, p *Payable) error {
	_, err := t.tx.Exec(ctx, `UPDATE payables SET verified_amount=$1, unverified_amount=$2, verification_status=$3, updated_at=NOW() WHERE id=$4`,
		p.VerifiedAmount, p.UnverifiedAmount, p.Status, p.ID)
	return err
}

func (t *sqlTxRepo) GetPaymentOrder(ctx context.Context, id string) (*PaymentOrder, error) {
	var o PaymentOrder
	var requestID *string
	err := t.tx.QueryRow(ctx, `SELECT id, payment_no, supplier_id, supplier_name, payment_request_id, amount, verified_amount, unverified_amount, verification_status, payment_date, created_at, updated_at FROM payment_orders WHERE id=$1 FOR UPDATE`, id).
		Scan(&o.ID, &o.PaymentNo, &o.SupplierID, &o.SupplierName, &requestID, &o.Amount, &o.VerifiedAmount, &o.UnverifiedAmount, &o.Status, &o.PaymentDate, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if requestID != nil {
		o.PaymentRequestID = *requestID
	}
	return &o, nil
}

func (t *sqlTxRepo) SavePaymentOrder(ctx context.Context, o *PaymentOrder) error {
	_, err := t.tx.Exec(ctx, `UPDATE payment_orders SET verified_amount=$1, unverified_amount=$2, verification_status=$3, updated_at=NOW() WHERE id=$4`,
		o.VerifiedAmount, o.UnverifiedAmount, o.Status, o.ID)
	return err
}

func (t *sqlTxRepo) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	var inv Invoice
	err := t.tx.QueryRow(ctx, `SELECT id, invoice_no, invoice_code, supplier_id, supplier_name, invoice_type, amount, tax_amount, total_amount, verified_amount, unverified_amount, verification_status, authenticity_status, business_status, invoice_date, created_at, updated_at FROM invoices WHERE id=$1 FOR UPDATE`, id).
		Scan(&inv.ID, &inv.InvoiceNo, &inv.InvoiceCode, &inv.SupplierID, &inv.SupplierName, &inv.InvoiceType, &inv.Amount, &inv.TaxAmount, &inv.TotalAmount, &inv.VerifiedAmount, &inv.UnverifiedAmount, &inv.Status, &inv.Authenticity, &inv.Business, &inv.InvoiceDate, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (t *sqlTxRepo) SaveInvoice(ctx context.Context, inv *Invoice) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET verified_amount=$1, unverified_amount=$2, verification_status=$3, updated_at=NOW() WHERE id=$4`,
		inv.VerifiedAmount, inv.UnverifiedAmount, inv.Status, inv.ID)
	return err
}

const selectRecord = `SELECT id, verification_no, payable_id, payment_order_ids, invoice_ids, amount, verification_type, payment_order_details, invoice_details, verification_date, verified_by, remarks, status, reversed_at, reversed_by, reverse_reason_type, reverse_reason_detail, cross_month_approved, created_at FROM verifications`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*VerificationRecord, error) {
	var (
		rec          VerificationRecord
		orderDetails []byte
		invDetails   []byte
		reversedBy   *string
		reasonType   *string
		reasonDetail *string
	)
	err := row.Scan(&rec.ID, &rec.VerificationNo, &rec.PayableID, &rec.PaymentOrderIDs, &rec.InvoiceIDs, &rec.Amount, &rec.Type, &orderDetails, &invDetails, &rec.VerificationDate, &rec.VerifiedBy, &rec.Remarks, &rec.Status, &rec.ReversedAt, &reversedBy, &reasonType, &reasonDetail, &rec.CrossMonthApproved, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(orderDetails) > 0 {
		if err := json.Unmarshal(orderDetails, &rec.PaymentOrderDetails); err != nil {
			return nil, err
		}
	}
	if len(invDetails) > 0 {
		if err := json.Unmarshal(invDetails, &rec.InvoiceDetails); err != nil {
			return nil, err
		}
	}
	if reversedBy != nil {
		rec.ReversedBy = *reversedBy
	}
	if reasonType != nil {
		rec.ReverseReasonType = ReverseReason(*reasonType)
	}
	if reasonDetail != nil {
		rec.ReverseReasonDetail = *reasonDetail
	}
	return &rec, nil
}

func (t *sqlTxRepo) GetRecord(ctx context.Context, id string) (*VerificationRecord, error) {
	return scanRecord(t.tx.QueryRow(ctx, selectRecord+` WHERE id=$1 FOR UPDATE`, id))
}

func (t *sqlTxRepo) InsertRecord(ctx context.Context, rec *VerificationRecord) error {
	orderDetails, err := json.Marshal(rec.PaymentOrderDetails)
	if err != nil {
		return err
	}
	invDetails, err := json.Marshal(rec.InvoiceDetails)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO verifications (id, verification_no, payable_id, payment_order_ids, invoice_ids, amount, verification_type, payment_order_details, invoice_details, verification_date, verified_by, remarks, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.VerificationNo, rec.PayableID, rec.PaymentOrderIDs, rec.InvoiceIDs, rec.Amount, rec.Type, orderDetails, invDetails, rec.VerificationDate, rec.VerifiedBy, rec.Remarks, rec.Status, rec.CreatedAt)
	return err
}

func (t *sqlTxRepo) SaveRecord(ctx context.Context, rec *VerificationRecord) error {
	_, err := t.tx.Exec(ctx, `UPDATE verifications SET status=$1, reversed_at=$2, reversed_by=$3, reverse_reason_type=$4, reverse_reason_detail=$5, cross_month_approved=$6 WHERE id=$7`,
		rec.Status, rec.ReversedAt, rec.ReversedBy, rec.ReverseReasonType, rec.ReverseReasonDetail, rec.CrossMonthApproved, rec.ID)
	return err
}

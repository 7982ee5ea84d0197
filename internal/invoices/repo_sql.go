package invoices

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

const invoiceColumns = `id, invoice_no, invoice_code, supplier_id, supplier_name, invoice_type, source, amount, tax_amount, total_amount, verified_amount, unverified_amount, verification_status, authenticity_status, authenticity_checked_at, authenticity_message, business_status, business_reason, invoice_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*settlement.Invoice, error) {
	var inv settlement.Invoice
	var authMsg, bizReason *string
	err := row.Scan(&inv.ID, &inv.InvoiceNo, &inv.InvoiceCode, &inv.SupplierID, &inv.SupplierName, &inv.InvoiceType, &inv.Source, &inv.Amount, &inv.TaxAmount, &inv.TotalAmount, &inv.VerifiedAmount, &inv.UnverifiedAmount, &inv.Status, &inv.Authenticity, &inv.AuthenticityCheckedAt, &authMsg, &inv.Business, &bizReason, &inv.InvoiceDate, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if authMsg != nil {
		inv.AuthenticityMessage = *authMsg
	}
	if bizReason != nil {
		inv.BusinessReason = *bizReason
	}
	return &inv, nil
}

// List returns invoices matching the filter, newest first.
func (r *SQLRepository) List(ctx context.Context, filter ListFilter) ([]settlement.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	var args []any
	if filter.SupplierID != "" {
		args = append(args, filter.SupplierID)
		query += ` AND supplier_id=$` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND verification_status=$` + strconv.Itoa(len(args))
	}
	if filter.Authenticity != "" {
		args = append(args, filter.Authenticity)
		query += ` AND authenticity_status=$` + strconv.Itoa(len(args))
	}
	if filter.Business != "" {
		args = append(args, filter.Business)
		query += ` AND business_status=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []settlement.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one invoice by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (*settlement.Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
}

// Create inserts a new invoice.
func (r *SQLRepository) Create(ctx context.Context, inv *settlement.Invoice) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		inv.ID, inv.InvoiceNo, inv.InvoiceCode, inv.SupplierID, inv.SupplierName, inv.InvoiceType, inv.Source, inv.Amount, inv.TaxAmount, inv.TotalAmount, inv.VerifiedAmount, inv.UnverifiedAmount, inv.Status, inv.Authenticity, inv.AuthenticityCheckedAt, inv.AuthenticityMessage, inv.Business, inv.BusinessReason, inv.InvoiceDate, inv.CreatedAt, inv.UpdatedAt)
	return err
}

// Save updates the mutable review and verification columns.
func (r *SQLRepository) Save(ctx context.Context, inv *settlement.Invoice) error {
	_, err := r.pool.Exec(ctx, `UPDATE invoices SET verified_amount=$1, unverified_amount=$2, verification_status=$3, authenticity_status=$4, authenticity_checked_at=$5, authenticity_message=$6, business_status=$7, business_reason=$8, updated_at=$9 WHERE id=$10`,
		inv.VerifiedAmount, inv.UnverifiedAmount, inv.Status, inv.Authenticity, inv.AuthenticityCheckedAt, inv.AuthenticityMessage, inv.Business, inv.BusinessReason, inv.UpdatedAt, inv.ID)
	return err
}

// Delete removes an invoice.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

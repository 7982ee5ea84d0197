package procurement

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

const orderColumns = `id, po_no, supplier_id, supplier_name, order_type, total_amount, paid_amount, payment_status, remarks, created_at, updated_at`
const recordColumns = `id, record_no, po_no, supplier_id, record_type, item_name, quantity, unit_price, amount, status, delivered_at, created_at`

func scanOrder(row pgx.Row) (*PurchaseOrder, error) {
	var o PurchaseOrder
	err := row.Scan(&o.ID, &o.PoNo, &o.SupplierID, &o.SupplierName, &o.OrderType, &o.TotalAmount, &o.PaidAmount, &o.PaymentStatus, &o.Remarks, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns purchase orders, optionally filtered.
func (r *SQLRepository) ListOrders(ctx context.Context, orderType OrderType, supplierID string) ([]PurchaseOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE 1=1`
	var args []any
	if orderType != "" {
		args = append(args, orderType)
		query += ` AND order_type=$` + strconv.Itoa(len(args))
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
	var out []PurchaseOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder fetches one purchase order by id.
func (r *SQLRepository) GetOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
}

// GetOrderByNo fetches one purchase order by its document number.
func (r *SQLRepository) GetOrderByNo(ctx context.Context, poNo string) (*PurchaseOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE po_no=$1`, poNo))
}

// CreateOrder inserts a new purchase order.
func (r *SQLRepository) CreateOrder(ctx context.Context, o *PurchaseOrder) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO purchase_orders (`+orderColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.PoNo, o.SupplierID, o.SupplierName, o.OrderType, o.TotalAmount, o.PaidAmount, o.PaymentStatus, o.Remarks, o.CreatedAt, o.UpdatedAt)
	return err
}

// SaveOrder updates the paid balance columns.
func (r *SQLRepository) SaveOrder(ctx context.Context, o *PurchaseOrder) error {
	_, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET paid_amount=$1, payment_status=$2, updated_at=$3 WHERE id=$4`,
		o.PaidAmount, o.PaymentStatus, o.UpdatedAt, o.ID)
	return err
}

// CreateRecord inserts one delivery record.
func (r *SQLRepository) CreateRecord(ctx context.Context, rec *PurchaseRecord) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO purchase_records (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.RecordNo, rec.PoNo, rec.SupplierID, rec.RecordType, rec.ItemName, rec.Quantity, rec.UnitPrice, rec.Amount, rec.Status, rec.DeliveredAt, rec.CreatedAt)
	return err
}

// GetRecord fetches one delivery record.
func (r *SQLRepository) GetRecord(ctx context.Context, id string) (*PurchaseRecord, error) {
	var rec PurchaseRecord
	err := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM purchase_records WHERE id=$1`, id).
		Scan(&rec.ID, &rec.RecordNo, &rec.PoNo, &rec.SupplierID, &rec.RecordType, &rec.ItemName, &rec.Quantity, &rec.UnitPrice, &rec.Amount, &rec.Status, &rec.DeliveredAt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveRecord updates the record's confirmation status.
func (r *SQLRepository) SaveRecord(ctx context.Context, rec *PurchaseRecord) error {
	_, err := r.pool.Exec(ctx, `UPDATE purchase_records SET status=$1 WHERE id=$2`, rec.Status, rec.ID)
	return err
}

// ListRecords returns delivery records for a supplier within a date window.
func (r *SQLRepository) ListRecords(ctx context.Context, supplierID, from, to string) ([]PurchaseRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM purchase_records WHERE supplier_id=$1`
	args := []any{supplierID}
	if from != "" {
		args = append(args, from)
		query += ` AND delivered_at >= $` + strconv.Itoa(len(args))
	}
	if to != "" {
		args = append(args, to)
		query += ` AND delivered_at <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY delivered_at`
	return r.queryRecords(ctx, query, args...)
}

// ListRecordsByIDs returns the named delivery records.
func (r *SQLRepository) ListRecordsByIDs(ctx context.Context, ids []string) ([]PurchaseRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryRecords(ctx, `SELECT `+recordColumns+` FROM purchase_records WHERE id = ANY($1)`, ids)
}

func (r *SQLRepository) queryRecords(ctx context.Context, query string, args ...any) ([]PurchaseRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseRecord
	for rows.Next() {
		var rec PurchaseRecord
		if err := rows.Scan(&rec.ID, &rec.RecordNo, &rec.PoNo, &rec.SupplierID, &rec.RecordType, &rec.ItemName, &rec.Quantity, &rec.UnitPrice, &rec.Amount, &rec.Status, &rec.DeliveredAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

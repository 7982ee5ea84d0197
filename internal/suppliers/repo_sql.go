package suppliers

import (
	"context"
	"errors"

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

const supplierColumns = `id, name, contact, phone, bank_account, tax_no, active, created_at, updated_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.Contact, &s.Phone, &s.BankAccount, &s.TaxNo, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all suppliers ordered by name.
func (r *SQLRepository) List(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one supplier by id.
func (r *SQLRepository) Get(ctx context.Context, id string) (*Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
}

// Create inserts a new supplier.
func (r *SQLRepository) Create(ctx context.Context, s *Supplier) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO suppliers (`+supplierColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Name, s.Contact, s.Phone, s.BankAccount, s.TaxNo, s.Active, s.CreatedAt, s.UpdatedAt)
	return err
}

// Save updates a supplier's editable fields.
func (r *SQLRepository) Save(ctx context.Context, s *Supplier) error {
	_, err := r.pool.Exec(ctx, `UPDATE suppliers SET name=$1, contact=$2, phone=$3, bank_account=$4, tax_no=$5, active=$6, updated_at=$7 WHERE id=$8`,
		s.Name, s.Contact, s.Phone, s.BankAccount, s.TaxNo, s.Active, s.UpdatedAt, s.ID)
	return err
}

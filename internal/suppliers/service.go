// Package suppliers manages the supplier master data.
package suppliers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Supplier is one vendor the company settles with.
type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Contact     string    `json:"contact,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	BankAccount string    `json:"bankAccount,omitempty"`
	TaxNo       string    `json:"taxNo,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input carries supplier create/update fields.
type Input struct {
	Name        string
	Contact     string
	Phone       string
	BankAccount string
	TaxNo       string
}

// Repository is the persistence surface for suppliers.
type Repository interface {
	List(ctx context.Context) ([]Supplier, error)
	Get(ctx context.Context, id string) (*Supplier, error)
	Create(ctx context.Context, s *Supplier) error
	Save(ctx context.Context, s *Supplier) error
}

// Service implements supplier master data operations.
type Service struct {
	repo   Repository
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService builds the supplier service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now, newID: uuid.NewString}
}

// List returns all suppliers.
func (s *Service) List(ctx context.Context) ([]Supplier, error) {
	return s.repo.List(ctx)
}

// Get fetches one supplier.
func (s *Service) Get(ctx context.Context, id string) (*Supplier, error) {
	sup, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("supplier %s: %w", id, err)
	}
	return sup, nil
}

// Create registers a new supplier.
func (s *Service) Create(ctx context.Context, in Input) (*Supplier, error) {
	if in.Name == "" {
		return nil, errors.New("suppliers: name is required")
	}
	now := s.now()
	sup := &Supplier{
		ID:          s.newID(),
		Name:        in.Name,
		Contact:     in.Contact,
		Phone:       in.Phone,
		BankAccount: in.BankAccount,
		TaxNo:       in.TaxNo,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

// Update replaces the supplier's editable fields.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Supplier, error) {
	sup, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		sup.Name = in.Name
	}
	sup.Contact = in.Contact
	sup.Phone = in.Phone
	sup.BankAccount = in.BankAccount
	sup.TaxNo = in.TaxNo
	sup.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

// Deactivate marks the supplier inactive. Historical documents keep pointing
// at it.
func (s *Service) Deactivate(ctx context.Context, id string) (*Supplier, error) {
	sup, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sup.Active = false
	sup.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

// Package invoices manages supplier invoice intake, the tax-authority
// authenticity check and the internal business review.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

var (
	// ErrServiceUnavailable indicates the authenticity provider was unreachable.
	ErrServiceUnavailable = errors.New("invoices: authenticity service unavailable, try again later")
	// ErrAuthenticityRequired indicates business review before a passed authenticity check.
	ErrAuthenticityRequired = errors.New("invoices: authenticity must be verified before business review")
	// ErrReasonRequired indicates a missing or too-short unusable reason.
	ErrReasonRequired = errors.New("invoices: unusable reason must be at least 5 characters")
	// ErrInUse indicates the invoice has verified amounts and cannot be changed.
	ErrInUse = errors.New("invoices: invoice with verified amount cannot be modified")
)

// Authenticity check failure messages mirror the provider's responses.
const (
	msgInfoMismatch = "invoice information does not match tax authority records"
	msgNotExists    = "invoice does not exist or has been voided"
)

// CreateInput registers one incoming invoice.
// Intake sources. OCR and electronic import are input-method tags carried on
// the invoice; extraction happens upstream.
const (
	SourceManual           = "manual"
	SourceOCR              = "ocr"
	SourceElectronicImport = "electronic_import"
)

type CreateInput struct {
	InvoiceNo    string
	InvoiceCode  string
	SupplierID   string
	SupplierName string
	InvoiceType  string
	Source       string
	Amount       float64
	TaxAmount    float64
	InvoiceDate  string
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	SupplierID   string
	Status       settlement.VerificationStatus
	Authenticity settlement.AuthenticityStatus
	Business     settlement.BusinessStatus
}

// Repository is the persistence surface for invoices.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]settlement.Invoice, error)
	Get(ctx context.Context, id string) (*settlement.Invoice, error)
	Create(ctx context.Context, inv *settlement.Invoice) error
	Save(ctx context.Context, inv *settlement.Invoice) error
	Delete(ctx context.Context, id string) error
}

// Service implements invoice intake and the two-stage verification.
type Service struct {
	repo   Repository
	logger *slog.Logger

	now    func() time.Time
	newID  func() string
	randFn func() float64
}

// NewService builds the invoice service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		randFn: rand.Float64,
	}
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]settlement.Invoice, error) {
	return s.repo.List(ctx, filter)
}

// Get fetches one invoice.
func (s *Service) Get(ctx context.Context, id string) (*settlement.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	return inv, nil
}

// Create registers an invoice awaiting both checks. The settlement total is
// the net amount plus tax.
func (s *Service) Create(ctx context.Context, in CreateInput) (*settlement.Invoice, error) {
	if in.InvoiceNo == "" || in.SupplierID == "" {
		return nil, errors.New("invoices: invoiceNo and supplierId are required")
	}
	if in.Amount <= 0 {
		return nil, errors.New("invoices: amount must be greater than zero")
	}
	switch in.Source {
	case "":
		in.Source = SourceManual
	case SourceManual, SourceOCR, SourceElectronicImport:
	default:
		return nil, fmt.Errorf("invoices: unknown source %q", in.Source)
	}
	now := s.now()
	total := in.Amount + in.TaxAmount
	inv := &settlement.Invoice{
		ID:               s.newID(),
		InvoiceNo:        in.InvoiceNo,
		InvoiceCode:      in.InvoiceCode,
		SupplierID:       in.SupplierID,
		SupplierName:     in.SupplierName,
		InvoiceType:      in.InvoiceType,
		Source:           in.Source,
		Amount:           in.Amount,
		TaxAmount:        in.TaxAmount,
		TotalAmount:      total,
		UnverifiedAmount: total,
		Status:           settlement.StatusUnverified,
		Authenticity:     settlement.AuthenticityUnchecked,
		Business:         settlement.BusinessPending,
		InvoiceDate:      in.InvoiceDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Authenticate runs the tax-authority check. The provider is simulated: a
// small slice of calls fails with an outage, the rest split between passes
// and the two rejection classes.
func (s *Service) Authenticate(ctx context.Context, id string) (*settlement.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	roll := s.randFn()
	now := s.now()
	inv.AuthenticityCheckedAt = &now
	switch {
	case roll < 0.05:
		inv.Authenticity = settlement.AuthenticityServiceUnavailable
		inv.AuthenticityMessage = ""
		if err := s.repo.Save(ctx, inv); err != nil {
			return nil, err
		}
		return inv, ErrServiceUnavailable
	case roll > 0.15:
		inv.Authenticity = settlement.AuthenticityVerified
		inv.AuthenticityMessage = ""
	case roll > 0.10:
		inv.Authenticity = settlement.AuthenticityFailed
		inv.AuthenticityMessage = msgInfoMismatch
	default:
		inv.Authenticity = settlement.AuthenticityFailed
		inv.AuthenticityMessage = msgNotExists
	}
	inv.UpdatedAt = now
	if err := s.repo.Save(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("invoice authenticity checked",
		slog.String("invoice_no", inv.InvoiceNo),
		slog.String("result", string(inv.Authenticity)))
	return inv, nil
}

// BusinessVerify records the internal review outcome. Passing requires a
// prior authenticity pass; marking unusable requires a reason and is blocked
// once any amount has been verified.
func (s *Service) BusinessVerify(ctx context.Context, id string, usable bool, reason string) (*settlement.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Authenticity != settlement.AuthenticityVerified {
		return nil, ErrAuthenticityRequired
	}
	if usable {
		inv.Business = settlement.BusinessVerified
		inv.BusinessReason = ""
	} else {
		if inv.VerifiedAmount > 0 {
			return nil, ErrInUse
		}
		if utf8.RuneCountInString(reason) < 5 {
			return nil, ErrReasonRequired
		}
		inv.Business = settlement.BusinessUnusable
		inv.BusinessReason = reason
	}
	inv.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Delete removes an invoice that has never been verified against.
func (s *Service) Delete(ctx context.Context, id string) error {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.VerifiedAmount > 0 {
		return ErrInUse
	}
	return s.repo.Delete(ctx, id)
}

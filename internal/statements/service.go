// Package statements manages supplier statements: periodic reconciliations
// of delivered goods that both sides confirm before a payable is booked.
package statements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tallyline/tallyline/internal/payables"
	"github.com/tallyline/tallyline/internal/procurement"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

// Status is the confirmation lifecycle of a statement.
type Status string

const (
	StatusDraft                  Status = "draft"
	StatusPendingSupplierConfirm Status = "pending_supplier_confirm"
	StatusDisputed               Status = "disputed"
	StatusPendingBuyerConfirm    Status = "pending_buyer_confirm"
	StatusConfirmed              Status = "confirmed"
)

// ErrBadTransition indicates the statement is not in the right state.
var ErrBadTransition = errors.New("statements: statement is not in a state that allows this operation")

// Statement reconciles one supplier's deliveries over a period.
type Statement struct {
	ID                string    `json:"id"`
	StatementNo       string    `json:"statementNo"`
	SupplierID        string    `json:"supplierId"`
	SupplierName      string    `json:"supplierName"`
	PeriodStart       string    `json:"periodStart"`
	PeriodEnd         string    `json:"periodEnd"`
	PurchaseRecordIDs []string  `json:"purchaseRecordIds"`
	TotalAmount       float64   `json:"totalAmount"`
	ReturnAmount      float64   `json:"returnAmount"`
	DeductionAmount   float64   `json:"deductionAmount"`
	NetAmount         float64   `json:"netAmount"`
	SupplierAmount    float64   `json:"supplierAmount,omitempty"`
	DifferenceAmount  float64   `json:"differenceAmount,omitempty"`
	Status            Status    `json:"status"`
	DisputeReason     string    `json:"disputeReason,omitempty"`
	PayableID         string    `json:"payableId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// CreateInput carries a new draft statement.
type CreateInput struct {
	SupplierID        string
	SupplierName      string
	PeriodStart       string
	PeriodEnd         string
	PurchaseRecordIDs []string
	DeductionAmount   float64
}

// Repository is the persistence surface for statements.
type Repository interface {
	List(ctx context.Context, status Status, supplierID string) ([]Statement, error)
	Get(ctx context.Context, id string) (*Statement, error)
	Create(ctx context.Context, st *Statement) error
	Save(ctx context.Context, st *Statement) error
	// FindPrepaidPaymentOrders walks from the statement's purchase records to
	// the unconsumed payment orders of prepaid requests on the same purchase
	// orders, in payment order creation order.
	FindPrepaidPaymentOrders(ctx context.Context, purchaseRecordIDs []string) ([]string, error)
}

// RecordSource resolves delivery records for statement totals.
type RecordSource interface {
	ListRecordsByIDs(ctx context.Context, ids []string) ([]procurement.PurchaseRecord, error)
}

// PayableCreator books the payable a confirmed statement produces.
type PayableCreator interface {
	Create(ctx context.Context, in payables.CreateInput) (*settlement.Payable, error)
}

// PrepaidSettler consumes prepaid payment orders against the new payable.
type PrepaidSettler interface {
	AutoVerifyOnPrepaidSettlement(ctx context.Context, payableID string, paymentOrderIDs []string) ([]settlement.VerificationRecord, error)
}

// Service implements the statement lifecycle.
type Service struct {
	repo     Repository
	records  RecordSource
	payables PayableCreator
	settler  PrepaidSettler
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService builds the statements service. The settler may be nil; buyer
// confirmation then skips prepaid settlement.
func NewService(repo Repository, records RecordSource, payableCreator PayableCreator, settler PrepaidSettler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		records:  records,
		payables: payableCreator,
		settler:  settler,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// List returns statements matching the filter.
func (s *Service) List(ctx context.Context, status Status, supplierID string) ([]Statement, error) {
	return s.repo.List(ctx, status, supplierID)
}

// Get fetches one statement.
func (s *Service) Get(ctx context.Context, id string) (*Statement, error) {
	st, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("statement %s: %w", id, err)
	}
	return st, nil
}

// Create drafts a statement over the named delivery records. Inbound record
// amounts add up to the total, return records subtract, and the net further
// deducts agreed charge-backs. Only confirmed records can be reconciled.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Statement, error) {
	if in.SupplierID == "" {
		return nil, errors.New("statements: supplierId is required")
	}
	if len(in.PurchaseRecordIDs) == 0 {
		return nil, errors.New("statements: at least one purchase record is required")
	}
	recs, err := s.records.ListRecordsByIDs(ctx, in.PurchaseRecordIDs)
	if err != nil {
		return nil, err
	}
	if len(recs) != len(in.PurchaseRecordIDs) {
		return nil, fmt.Errorf("statements: %d of %d purchase records found", len(recs), len(in.PurchaseRecordIDs))
	}
	var total, returns float64
	for _, rec := range recs {
		if rec.Status != procurement.RecordConfirmed {
			return nil, fmt.Errorf("statements: purchase record %s is not confirmed", rec.RecordNo)
		}
		if rec.RecordType == procurement.RecordReturn {
			returns += rec.Amount
			continue
		}
		total += rec.Amount
	}
	if in.DeductionAmount < 0 || in.DeductionAmount > total-returns {
		return nil, errors.New("statements: deduction must be between zero and the statement balance")
	}

	now := s.now()
	st := &Statement{
		ID:                s.newID(),
		StatementNo:       shared.DocNumber(shared.DocPrefixStatement, now),
		SupplierID:        in.SupplierID,
		SupplierName:      in.SupplierName,
		PeriodStart:       in.PeriodStart,
		PeriodEnd:         in.PeriodEnd,
		PurchaseRecordIDs: in.PurchaseRecordIDs,
		TotalAmount:       total,
		ReturnAmount:      returns,
		DeductionAmount:   in.DeductionAmount,
		NetAmount:         total - returns - in.DeductionAmount,
		Status:            StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SendToSupplier hands a draft (or a revised disputed statement) over for
// supplier review.
func (s *Service) SendToSupplier(ctx context.Context, id string) (*Statement, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusDraft && st.Status != StatusDisputed {
		return nil, fmt.Errorf("%w: %s statement cannot be sent to the supplier", ErrBadTransition, st.Status)
	}
	st.Status = StatusPendingSupplierConfirm
	st.DisputeReason = ""
	st.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// SupplierConfirm records the supplier's agreement. The supplier may assert
// its own balance; the delta against the statement net is kept for the buyer
// to review before final confirmation. A zero supplierAmount means full
// agreement.
func (s *Service) SupplierConfirm(ctx context.Context, id string, supplierAmount float64) (*Statement, error) {
	if supplierAmount < 0 {
		return nil, errors.New("statements: supplier amount cannot be negative")
	}
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusPendingSupplierConfirm {
		return nil, fmt.Errorf("%w: %s statement cannot be confirmed by the supplier", ErrBadTransition, st.Status)
	}
	if supplierAmount == 0 {
		supplierAmount = st.NetAmount
	}
	st.SupplierAmount = supplierAmount
	st.DifferenceAmount = supplierAmount - st.NetAmount
	st.Status = StatusPendingBuyerConfirm
	st.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Dispute records the supplier's objection with its reason. The statement
// goes back to the buyer for revision.
func (s *Service) Dispute(ctx context.Context, id, reason string) (*Statement, error) {
	if reason == "" {
		return nil, errors.New("statements: a dispute reason is required")
	}
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusPendingSupplierConfirm {
		return nil, fmt.Errorf("%w: only statements awaiting supplier review can be disputed", ErrBadTransition)
	}
	st.Status = StatusDisputed
	st.DisputeReason = reason
	st.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// BuyerConfirm finalises the statement: it books a payable over the net
// amount due in thirty days, then offers any prepaid payment orders behind
// the statement's purchase orders for automatic settlement. A failed prepaid
// settlement never fails the confirmation.
func (s *Service) BuyerConfirm(ctx context.Context, id string) (*Statement, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusPendingBuyerConfirm {
		return nil, fmt.Errorf("%w: only statements awaiting buyer confirmation can be confirmed", ErrBadTransition)
	}

	now := s.now()
	payable, err := s.payables.Create(ctx, payables.CreateInput{
		SupplierID:   st.SupplierID,
		SupplierName: st.SupplierName,
		SourceType:   settlement.SourceStatement,
		SourceID:     st.ID,
		SourceNo:     st.StatementNo,
		TotalAmount:  st.NetAmount,
		DueDate:      now.AddDate(0, 0, 30).Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	st.Status = StatusConfirmed
	st.PayableID = payable.ID
	st.UpdatedAt = now
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("statement confirmed",
		slog.String("statement_no", st.StatementNo),
		slog.String("payable_no", payable.PayableNo),
		slog.Float64("net_amount", st.NetAmount))

	if s.settler != nil {
		orderIDs, err := s.repo.FindPrepaidPaymentOrders(ctx, st.PurchaseRecordIDs)
		if err != nil {
			s.logger.Warn("prepaid discovery failed", slog.String("statement_no", st.StatementNo), slog.Any("error", err))
			return st, nil
		}
		if len(orderIDs) > 0 {
			if _, err := s.settler.AutoVerifyOnPrepaidSettlement(ctx, payable.ID, orderIDs); err != nil {
				s.logger.Warn("prepaid settlement failed", slog.String("statement_no", st.StatementNo), slog.Any("error", err))
			}
		}
	}
	return st, nil
}

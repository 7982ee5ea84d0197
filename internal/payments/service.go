package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tallyline/tallyline/internal/procurement"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

var (
	// ErrSourceRequired indicates neither invoices nor a prepaid order were linked.
	ErrSourceRequired = errors.New("payments: link either invoices or a prepaid purchase order")
	// ErrSourceConflict indicates both source kinds were linked at once.
	ErrSourceConflict = errors.New("payments: invoices and a prepaid purchase order cannot be combined")
	// ErrAmountExceedsSource indicates the requested amount is above what the source covers.
	ErrAmountExceedsSource = errors.New("payments: amount exceeds the linked source balance")
	// ErrBadTransition indicates the request is not in the right state for the operation.
	ErrBadTransition = errors.New("payments: request is not in a state that allows this operation")
)

// Repository is the persistence surface for payment requests and the
// balances a payout touches.
type Repository interface {
	ListRequests(ctx context.Context, status RequestStatus, supplierID string) ([]PaymentRequest, error)
	GetRequest(ctx context.Context, id string) (*PaymentRequest, error)
	CreateRequest(ctx context.Context, req *PaymentRequest) error
	SaveRequest(ctx context.Context, req *PaymentRequest) error
	SumInvoiceUnverified(ctx context.Context, ids []string) (float64, error)
	GetPurchaseOrder(ctx context.Context, id string) (*procurement.PurchaseOrder, error)
	// WithTx runs fn against a transactional view of the payout writes.
	// Everything inside one call commits together or not at all.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the write surface of one payout transaction.
type TxRepository interface {
	SaveRequest(ctx context.Context, req *PaymentRequest) error
	CreatePaymentOrder(ctx context.Context, o *settlement.PaymentOrder) error
	ApplyPurchaseOrderPayment(ctx context.Context, id string, amount float64) error
	ApplyPayablePayment(ctx context.Context, id string, amount float64) error
}

// AutoVerifier triggers automatic verification right after a payout.
type AutoVerifier interface {
	AutoVerifyOnPayment(ctx context.Context, payableID, paymentOrderID string, invoiceIDs []string) (*settlement.VerificationRecord, error)
}

// Service implements the payment request lifecycle.
type Service struct {
	repo    Repository
	settler AutoVerifier
	logger  *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService builds the payments service. The settler may be nil; payouts
// then skip automatic verification.
func NewService(repo Repository, settler AutoVerifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, settler: settler, logger: logger, now: time.Now, newID: uuid.NewString}
}

// List returns payment requests matching the filter.
func (s *Service) List(ctx context.Context, status RequestStatus, supplierID string) ([]PaymentRequest, error) {
	return s.repo.ListRequests(ctx, status, supplierID)
}

// Get fetches one payment request.
func (s *Service) Get(ctx context.Context, id string) (*PaymentRequest, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("payment request %s: %w", id, err)
	}
	return req, nil
}

// Create registers a draft request. Exactly one funding source must be
// linked: a set of invoices, or a prepaid purchase order. The amount is
// capped by that source.
func (s *Service) Create(ctx context.Context, in CreateInput) (*PaymentRequest, error) {
	if in.Amount <= 0 {
		return nil, errors.New("payments: amount must be greater than zero")
	}
	hasInvoices := len(in.InvoiceIDs) > 0
	hasPrepaid := in.PurchaseOrderID != ""
	if !hasInvoices && !hasPrepaid {
		return nil, ErrSourceRequired
	}
	if hasInvoices && hasPrepaid {
		return nil, ErrSourceConflict
	}

	requestType := RequestInvoiceBased
	if hasPrepaid {
		requestType = RequestPrepaid
		order, err := s.repo.GetPurchaseOrder(ctx, in.PurchaseOrderID)
		if err != nil {
			return nil, fmt.Errorf("purchase order %s: %w", in.PurchaseOrderID, err)
		}
		if order.OrderType != procurement.OrderPrepaid {
			return nil, errors.New("payments: linked purchase order is not prepaid")
		}
		if in.Amount > order.TotalAmount-order.PaidAmount {
			return nil, ErrAmountExceedsSource
		}
	} else {
		covered, err := s.repo.SumInvoiceUnverified(ctx, in.InvoiceIDs)
		if err != nil {
			return nil, err
		}
		if in.Amount > covered {
			return nil, ErrAmountExceedsSource
		}
	}

	now := s.now()
	req := &PaymentRequest{
		ID:              s.newID(),
		RequestNo:       shared.DocNumber(shared.DocPrefixPaymentRequest, now),
		SupplierID:      in.SupplierID,
		SupplierName:    in.SupplierName,
		RequestType:     requestType,
		Amount:          in.Amount,
		UnpaidAmount:    in.Amount,
		InvoiceIDs:      in.InvoiceIDs,
		PurchaseOrderID: in.PurchaseOrderID,
		PayableID:       in.PayableID,
		Status:          RequestDraft,
		Remarks:         in.Remarks,
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Submit moves a draft into approval.
func (s *Service) Submit(ctx context.Context, id string) (*PaymentRequest, error) {
	return s.transition(ctx, id, RequestDraft, RequestPendingApproval, "")
}

// Approve accepts a pending request.
func (s *Service) Approve(ctx context.Context, id string) (*PaymentRequest, error) {
	return s.transition(ctx, id, RequestPendingApproval, RequestApproved, "")
}

// Reject declines a pending request with a reason.
func (s *Service) Reject(ctx context.Context, id, reason string) (*PaymentRequest, error) {
	return s.transition(ctx, id, RequestPendingApproval, RequestRejected, reason)
}

func (s *Service) transition(ctx context.Context, id string, from, to RequestStatus, reason string) (*PaymentRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != from {
		return nil, fmt.Errorf("%w: %s request cannot become %s", ErrBadTransition, req.Status, to)
	}
	req.Status = to
	req.RejectReason = reason
	req.UpdatedAt = s.now()
	if err := s.repo.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Pay executes one payout against an approved request inside a single
// transaction: it issues a payment order, moves the paid balances on the
// funding source, and marks the request paid once the full amount is out.
// Partial payouts leave the request approved with its unpaid balance.
// Afterwards it attempts automatic verification when the request is tied to
// a payable; a failed auto verification never fails the payout.
func (s *Service) Pay(ctx context.Context, id string, in PayInput) (*PaymentRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestApproved {
		return nil, fmt.Errorf("%w: only approved requests can be paid", ErrBadTransition)
	}
	amount := in.Amount
	if amount == 0 {
		amount = req.UnpaidAmount
	}
	if amount <= 0 {
		return nil, errors.New("payments: payout amount must be greater than zero")
	}
	if amount > req.UnpaidAmount {
		return nil, fmt.Errorf("%w: payout %.2f exceeds the unpaid balance %.2f", ErrAmountExceedsSource, amount, req.UnpaidAmount)
	}
	method := in.PaymentMethod
	if method == "" {
		method = "bank_transfer"
	}

	now := s.now()
	order := &settlement.PaymentOrder{
		ID:               s.newID(),
		PaymentNo:        shared.DocNumber(shared.DocPrefixPaymentOrder, now),
		SupplierID:       req.SupplierID,
		SupplierName:     req.SupplierName,
		PaymentRequestID: req.ID,
		Amount:           amount,
		UnverifiedAmount: amount,
		Status:           settlement.StatusUnverified,
		PaymentMethod:    method,
		BankAccount:      in.BankAccount,
		BankName:         in.BankName,
		TransactionNo:    in.TransactionNo,
		PaymentDate:      now.Format("2006-01-02"),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	req.PaidAmount += amount
	req.UnpaidAmount = req.Amount - req.PaidAmount
	req.PaymentOrderID = order.ID
	if req.UnpaidAmount <= 0 {
		req.Status = RequestPaid
		req.PaidAt = &now
	}
	req.UpdatedAt = now

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreatePaymentOrder(ctx, order); err != nil {
			return err
		}
		if req.RequestType == RequestPrepaid {
			if err := tx.ApplyPurchaseOrderPayment(ctx, req.PurchaseOrderID, amount); err != nil {
				return err
			}
		}
		if req.PayableID != "" {
			if err := tx.ApplyPayablePayment(ctx, req.PayableID, amount); err != nil {
				return err
			}
		}
		return tx.SaveRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment executed",
		slog.String("request_no", req.RequestNo),
		slog.String("payment_no", order.PaymentNo),
		slog.Float64("amount", amount),
		slog.Float64("unpaid_amount", req.UnpaidAmount))

	if s.settler != nil && req.PayableID != "" && len(req.InvoiceIDs) > 0 {
		if _, err := s.settler.AutoVerifyOnPayment(ctx, req.PayableID, order.ID, req.InvoiceIDs); err != nil {
			s.logger.Warn("auto verification after payment failed",
				slog.String("request_no", req.RequestNo), slog.Any("error", err))
		}
	}
	return req, nil
}

package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tallyline/tallyline/internal/shared"
)

// SystemActor is recorded as the operator on system-generated verifications.
const SystemActor = "system-auto"

// AuditRecorder persists audit trail entries for settlement mutations.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements verification, reversal and the auto-verification hooks.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger

	now   func() time.Time
	newID func() string
	docNo func(prefix string, at time.Time) string
}

// NewService returns a settlement service. The audit recorder may be nil.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		docNo:  shared.DocNumber,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListVerifications returns all verification records for a payable, newest
// first per repository ordering.
func (s *Service) ListVerifications(ctx context.Context, payableID string) ([]VerificationRecord, error) {
	return s.repo.ListRecordsByPayable(ctx, payableID)
}

// Verify applies one verification against a payable inside a single
// transaction. All documents are validated before any balance moves.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*VerificationRecord, error) {
	if len(in.PaymentOrderIDs) == 0 || len(in.InvoiceIDs) == 0 {
		return nil, ErrEmptySelection
	}
	var rec *VerificationRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		rec, txErr = s.applyVerification(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "settlement.verify", "verification", rec.ID, map[string]any{
		"payableId": rec.PayableID,
		"amount":    rec.Amount,
	})
	s.logger.Info("verification applied",
		slog.String("verification_no", rec.VerificationNo),
		slog.String("payable_id", rec.PayableID),
		slog.Float64("amount", rec.Amount))
	return rec, nil
}

// applyVerification runs the validate-then-commit sequence for a single
// configuration. Nothing is written until every referenced document has been
// loaded and the amount accepted, so a failing configuration leaves no
// partial state behind.
func (s *Service) applyVerification(ctx context.Context, tx TxRepository, in VerifyInput) (*VerificationRecord, error) {
	if len(in.PaymentOrderIDs) == 0 || len(in.InvoiceIDs) == 0 {
		return nil, ErrEmptySelection
	}
	payable, err := tx.GetPayable(ctx, in.PayableID)
	if err != nil {
		return nil, fmt.Errorf("payable %s: %w", in.PayableID, err)
	}

	orders := make([]*PaymentOrder, 0, len(in.PaymentOrderIDs))
	orderItems := make([]LedgerItem, 0, len(in.PaymentOrderIDs))
	for _, id := range in.PaymentOrderIDs {
		o, err := tx.GetPaymentOrder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("payment order %s: %w", id, err)
		}
		orders = append(orders, o)
		orderItems = append(orderItems, LedgerItem{ID: o.ID, Unverified: o.UnverifiedAmount})
	}
	invoices := make([]*Invoice, 0, len(in.InvoiceIDs))
	invoiceItems := make([]LedgerItem, 0, len(in.InvoiceIDs))
	for _, id := range in.InvoiceIDs {
		inv, err := tx.GetInvoice(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", id, err)
		}
		invoices = append(invoices, inv)
		invoiceItems = append(invoiceItems, LedgerItem{ID: inv.ID, Unverified: inv.UnverifiedAmount})
	}

	var (
		amount      float64
		orderAllocs []Allocation
		invAllocs   []Allocation
	)
	if in.ManualMode() {
		orderAllocs = Manual(toAllocations(in.PaymentOrderDetails)).Allocate(orderItems)
		invAllocs = Manual(toAllocations(in.InvoiceDetails)).Allocate(invoiceItems)
		amount = SumAllocations(orderAllocs)
		if sum := SumAllocations(invAllocs); sum < amount {
			amount = sum
		}
		if payable.UnverifiedAmount < amount {
			amount = payable.UnverifiedAmount
		}
		if amount <= 0 {
			return nil, ErrInvalidAmount
		}
	} else {
		if in.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
		limit := MaxVerifiable(payable.UnverifiedAmount, orderItems, invoiceItems)
		if in.Amount > limit {
			return nil, &CapExceededError{Cap: limit}
		}
		amount = in.Amount
		orderAllocs = Sequential(amount).Allocate(orderItems)
		invAllocs = Sequential(amount).Allocate(invoiceItems)
	}

	payable.ApplyVerified(amount)
	if err := tx.SavePayable(ctx, payable); err != nil {
		return nil, err
	}
	byOrder := indexDocuments(orders)
	for _, alloc := range orderAllocs {
		o := byOrder[alloc.ID]
		o.ApplyVerified(alloc.Amount)
		if err := tx.SavePaymentOrder(ctx, o); err != nil {
			return nil, err
		}
	}
	byInvoice := indexInvoices(invoices)
	for _, alloc := range invAllocs {
		inv := byInvoice[alloc.ID]
		inv.ApplyVerified(alloc.Amount)
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return nil, err
		}
	}

	now := s.now()
	rec := &VerificationRecord{
		ID:                  s.newID(),
		VerificationNo:      s.docNo(shared.DocPrefixVerification, now),
		PayableID:           payable.ID,
		PaymentOrderIDs:     allocationIDs(orderAllocs),
		InvoiceIDs:          allocationIDs(invAllocs),
		Amount:              amount,
		Type:                TypeManual,
		PaymentOrderDetails: toDetails(orderAllocs),
		InvoiceDetails:      toDetails(invAllocs),
		VerificationDate:    now.Format("2006-01-02"),
		VerifiedBy:          in.VerifiedBy,
		Remarks:             in.Remarks,
		Status:              RecordCompleted,
		CreatedAt:           now,
	}
	if err := tx.InsertRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// BatchVerify applies multiple configurations in one transaction. Each
// configuration succeeds or fails on its own; a failing one leaves no writes
// behind and does not abort the remainder.
func (s *Service) BatchVerify(ctx context.Context, configs []VerifyInput, verifiedBy string) (*BatchResult, error) {
	if len(configs) == 0 {
		return nil, errors.New("settlement: batch requires at least one configuration")
	}
	result := &BatchResult{Results: make([]BatchItemResult, 0, len(configs))}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, cfg := range configs {
			if cfg.VerifiedBy == "" {
				cfg.VerifiedBy = verifiedBy
			}
			if cfg.Remarks == "" {
				cfg.Remarks = "batch verification"
			}
			rec, err := s.applyVerification(ctx, tx, cfg)
			if err != nil {
				result.FailCount++
				result.Results = append(result.Results, BatchItemResult{
					PayableID: cfg.PayableID,
					Error:     err.Error(),
				})
				continue
			}
			result.SuccessCount++
			result.Results = append(result.Results, BatchItemResult{
				PayableID:      cfg.PayableID,
				Success:        true,
				VerificationNo: rec.VerificationNo,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch verification finished",
		slog.Int("success", result.SuccessCount),
		slog.Int("failed", result.FailCount))
	return result, nil
}

// Reverse undoes an active verification record, restoring every affected
// balance to its prior value. Reversals of records from a previous calendar
// month require the caller to confirm supervisor approval first.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (*VerificationRecord, error) {
	if !in.ReasonType.Valid() {
		return nil, ErrMissingReason
	}
	if utf8.RuneCountInString(in.ReasonDetail) < 10 {
		return nil, ErrReasonTooShort
	}
	var rec *VerificationRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		rec, txErr = s.applyReversal(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "settlement.reverse", "verification", rec.ID, map[string]any{
		"payableId":  rec.PayableID,
		"amount":     rec.Amount,
		"reasonType": string(rec.ReverseReasonType),
	})
	s.logger.Info("verification reversed",
		slog.String("verification_no", rec.VerificationNo),
		slog.String("payable_id", rec.PayableID),
		slog.Bool("cross_month", rec.CrossMonthApproved))
	return rec, nil
}

func (s *Service) applyReversal(ctx context.Context, tx TxRepository, in ReverseInput) (*VerificationRecord, error) {
	rec, err := tx.GetRecord(ctx, in.VerificationID)
	if err != nil {
		return nil, fmt.Errorf("verification %s: %w", in.VerificationID, err)
	}
	if rec.PayableID != in.PayableID {
		return nil, fmt.Errorf("verification %s: %w", in.VerificationID, ErrNotFound)
	}
	if rec.Status == RecordReversed {
		return nil, ErrAlreadyReversed
	}

	now := s.now()
	crossMonth := verificationMonth(rec.VerificationDate) != now.Format("2006-01")
	if crossMonth && !in.ApprovalConfirmed {
		return nil, &CrossMonthApprovalError{VerificationMonth: verificationMonth(rec.VerificationDate)}
	}

	if payable, err := tx.GetPayable(ctx, rec.PayableID); err == nil {
		payable.ApplyVerified(-rec.Amount)
		if err := tx.SavePayable(ctx, payable); err != nil {
			return nil, err
		}
	}

	// Per-detail restore; records written before detail tracking fall back
	// to putting the whole amount on the first referenced document.
	orderRestores := rec.PaymentOrderDetails
	if len(orderRestores) == 0 && len(rec.PaymentOrderIDs) > 0 {
		orderRestores = []DetailEntry{{ID: rec.PaymentOrderIDs[0], Amount: rec.Amount}}
	}
	for _, d := range orderRestores {
		o, err := tx.GetPaymentOrder(ctx, d.ID)
		if err != nil {
			continue
		}
		o.ApplyVerified(-d.Amount)
		if err := tx.SavePaymentOrder(ctx, o); err != nil {
			return nil, err
		}
	}
	invoiceRestores := rec.InvoiceDetails
	if len(invoiceRestores) == 0 && len(rec.InvoiceIDs) > 0 {
		invoiceRestores = []DetailEntry{{ID: rec.InvoiceIDs[0], Amount: rec.Amount}}
	}
	for _, d := range invoiceRestores {
		inv, err := tx.GetInvoice(ctx, d.ID)
		if err != nil {
			continue
		}
		inv.ApplyVerified(-d.Amount)
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return nil, err
		}
	}

	rec.Status = RecordReversed
	rec.ReversedAt = &now
	rec.ReversedBy = in.ReversedBy
	rec.ReverseReasonType = in.ReasonType
	rec.ReverseReasonDetail = in.ReasonDetail
	rec.CrossMonthApproved = crossMonth
	if err := tx.SaveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// AutoVerifyOnPayment creates a system verification right after a payment
// order is issued, matching it against the request's linked invoices. Returns
// nil without error when nothing is verifiable.
func (s *Service) AutoVerifyOnPayment(ctx context.Context, payableID, paymentOrderID string, invoiceIDs []string) (*VerificationRecord, error) {
	var rec *VerificationRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payable, err := tx.GetPayable(ctx, payableID)
		if err != nil {
			return nil
		}
		order, err := tx.GetPaymentOrder(ctx, paymentOrderID)
		if err != nil {
			return nil
		}
		invoices := make([]*Invoice, 0, len(invoiceIDs))
		items := make([]LedgerItem, 0, len(invoiceIDs))
		for _, id := range invoiceIDs {
			inv, err := tx.GetInvoice(ctx, id)
			if err != nil || inv.UnverifiedAmount <= 0 {
				continue
			}
			invoices = append(invoices, inv)
			items = append(items, LedgerItem{ID: inv.ID, Unverified: inv.UnverifiedAmount})
		}

		amount := order.UnverifiedAmount
		if sum := SumUnverified(items); sum < amount {
			amount = sum
		}
		if payable.UnverifiedAmount < amount {
			amount = payable.UnverifiedAmount
		}
		if amount <= 0 {
			return nil
		}

		allocs := Sequential(amount).Allocate(items)
		payable.ApplyVerified(amount)
		if err := tx.SavePayable(ctx, payable); err != nil {
			return err
		}
		order.ApplyVerified(amount)
		if err := tx.SavePaymentOrder(ctx, order); err != nil {
			return err
		}
		byInvoice := indexInvoices(invoices)
		for _, alloc := range allocs {
			inv := byInvoice[alloc.ID]
			inv.ApplyVerified(alloc.Amount)
			if err := tx.SaveInvoice(ctx, inv); err != nil {
				return err
			}
		}

		now := s.now()
		rec = &VerificationRecord{
			ID:                  s.newID(),
			VerificationNo:      s.docNo(shared.DocPrefixVerification, now),
			PayableID:           payable.ID,
			PaymentOrderIDs:     []string{order.ID},
			InvoiceIDs:          allocationIDs(allocs),
			Amount:              amount,
			Type:                TypeAuto,
			PaymentOrderDetails: []DetailEntry{{ID: order.ID, Amount: amount}},
			InvoiceDetails:      toDetails(allocs),
			VerificationDate:    now.Format("2006-01-02"),
			VerifiedBy:          SystemActor,
			Remarks:             "auto verification on payment",
			Status:              RecordCompleted,
			CreatedAt:           now,
		}
		return tx.InsertRecord(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.logger.Info("auto verification on payment",
			slog.String("verification_no", rec.VerificationNo),
			slog.Float64("amount", rec.Amount))
	}
	return rec, nil
}

// AutoVerifyOnPrepaidSettlement consumes prepaid payment orders against a
// statement-born payable, producing one system record per consumed order, in
// the order the orders were supplied. Stops once the payable is exhausted.
func (s *Service) AutoVerifyOnPrepaidSettlement(ctx context.Context, payableID string, paymentOrderIDs []string) ([]VerificationRecord, error) {
	var recs []VerificationRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payable, err := tx.GetPayable(ctx, payableID)
		if err != nil {
			return nil
		}
		for _, orderID := range paymentOrderIDs {
			if payable.UnverifiedAmount <= 0 {
				break
			}
			order, err := tx.GetPaymentOrder(ctx, orderID)
			if err != nil || order.UnverifiedAmount <= 0 {
				continue
			}
			amount := order.UnverifiedAmount
			if payable.UnverifiedAmount < amount {
				amount = payable.UnverifiedAmount
			}
			payable.ApplyVerified(amount)
			order.ApplyVerified(amount)
			if err := tx.SavePaymentOrder(ctx, order); err != nil {
				return err
			}

			now := s.now()
			rec := VerificationRecord{
				ID:                  s.newID(),
				VerificationNo:      s.docNo(shared.DocPrefixVerification, now),
				PayableID:           payable.ID,
				PaymentOrderIDs:     []string{order.ID},
				InvoiceIDs:          []string{},
				Amount:              amount,
				Type:                TypeAuto,
				PaymentOrderDetails: []DetailEntry{{ID: order.ID, Amount: amount}},
				VerificationDate:    now.Format("2006-01-02"),
				VerifiedBy:          SystemActor,
				Remarks:             "auto verification on prepaid settlement",
				Status:              RecordCompleted,
				CreatedAt:           now,
			}
			if err := tx.InsertRecord(ctx, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return tx.SavePayable(ctx, payable)
	})
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		s.logger.Info("auto verification on prepaid settlement",
			slog.String("payable_id", payableID),
			slog.Int("records", len(recs)))
	}
	return recs, nil
}

func (s *Service) recordAudit(ctx context.Context, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  SystemActor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func verificationMonth(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

func toAllocations(details []DetailEntry) []Allocation {
	out := make([]Allocation, 0, len(details))
	for _, d := range details {
		out = append(out, Allocation{ID: d.ID, Amount: d.Amount})
	}
	return out
}

func toDetails(allocs []Allocation) []DetailEntry {
	out := make([]DetailEntry, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, DetailEntry{ID: a.ID, Amount: a.Amount})
	}
	return out
}

func allocationIDs(allocs []Allocation) []string {
	out := make([]string, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, a.ID)
	}
	return out
}

func indexDocuments(orders []*PaymentOrder) map[string]*PaymentOrder {
	m := make(map[string]*PaymentOrder, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return m
}

func indexInvoices(invoices []*Invoice) map[string]*Invoice {
	m := make(map[string]*Invoice, len(invoices))
	for _, inv := range invoices {
		m[inv.ID] = inv
	}
	return m
}

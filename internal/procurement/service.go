// Package procurement manages purchase orders and delivery records. Prepaid
// purchase orders are paid ahead of delivery and later settled against
// statement-born payables.
package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

// OrderType distinguishes ordinary purchasing from prepaid arrangements.
type OrderType string

const (
	OrderStandard OrderType = "standard"
	OrderPrepaid  OrderType = "prepaid"
)

// PurchaseOrder is one procurement contract with a supplier.
type PurchaseOrder struct {
	ID            string                   `json:"id"`
	PoNo          string                   `json:"poNo"`
	SupplierID    string                   `json:"supplierId"`
	SupplierName  string                   `json:"supplierName"`
	OrderType     OrderType                `json:"orderType"`
	TotalAmount   float64                  `json:"totalAmount"`
	PaidAmount    float64                  `json:"paidAmount"`
	PaymentStatus settlement.PaymentStatus `json:"paymentStatus"`
	Remarks       string                   `json:"remarks,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// RecordType tells goods received apart from goods sent back.
type RecordType string

const (
	RecordInbound RecordType = "inbound"
	RecordReturn  RecordType = "return"
)

// RecordStatus is the confirmation state of a delivery record.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordConfirmed RecordStatus = "confirmed"
)

// PurchaseRecord is one delivered or returned line against a purchase order.
// Return records carry a positive amount and are subtracted during statement
// reconciliation.
type PurchaseRecord struct {
	ID          string       `json:"id"`
	RecordNo    string       `json:"recordNo"`
	PoNo        string       `json:"poNo"`
	SupplierID  string       `json:"supplierId"`
	RecordType  RecordType   `json:"recordType"`
	ItemName    string       `json:"itemName"`
	Quantity    float64      `json:"quantity"`
	UnitPrice   float64      `json:"unitPrice"`
	Amount      float64      `json:"amount"`
	Status      RecordStatus `json:"status"`
	DeliveredAt string       `json:"deliveredAt"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// CreateOrderInput carries a new purchase order.
type CreateOrderInput struct {
	SupplierID   string
	SupplierName string
	OrderType    OrderType
	TotalAmount  float64
	Remarks      string
}

// RecordInput carries one delivery line.
type RecordInput struct {
	PoNo        string
	RecordType  RecordType
	ItemName    string
	Quantity    float64
	UnitPrice   float64
	DeliveredAt string
}

// Repository is the persistence surface for procurement.
type Repository interface {
	ListOrders(ctx context.Context, orderType OrderType, supplierID string) ([]PurchaseOrder, error)
	GetOrder(ctx context.Context, id string) (*PurchaseOrder, error)
	GetOrderByNo(ctx context.Context, poNo string) (*PurchaseOrder, error)
	CreateOrder(ctx context.Context, o *PurchaseOrder) error
	SaveOrder(ctx context.Context, o *PurchaseOrder) error
	CreateRecord(ctx context.Context, rec *PurchaseRecord) error
	GetRecord(ctx context.Context, id string) (*PurchaseRecord, error)
	SaveRecord(ctx context.Context, rec *PurchaseRecord) error
	ListRecords(ctx context.Context, supplierID, from, to string) ([]PurchaseRecord, error)
	ListRecordsByIDs(ctx context.Context, ids []string) ([]PurchaseRecord, error)
}

// Service implements procurement operations.
type Service struct {
	repo   Repository
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService builds the procurement service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now, newID: uuid.NewString}
}

// ListOrders returns purchase orders, optionally filtered by type or supplier.
func (s *Service) ListOrders(ctx context.Context, orderType OrderType, supplierID string) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, orderType, supplierID)
}

// GetOrder fetches one purchase order.
func (s *Service) GetOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("purchase order %s: %w", id, err)
	}
	return o, nil
}

// CreateOrder registers a new purchase order.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*PurchaseOrder, error) {
	if in.SupplierID == "" {
		return nil, errors.New("procurement: supplierId is required")
	}
	if in.TotalAmount <= 0 {
		return nil, errors.New("procurement: totalAmount must be greater than zero")
	}
	if in.OrderType == "" {
		in.OrderType = OrderStandard
	}
	if in.OrderType != OrderStandard && in.OrderType != OrderPrepaid {
		return nil, fmt.Errorf("procurement: unknown order type %q", in.OrderType)
	}
	now := s.now()
	o := &PurchaseOrder{
		ID:            s.newID(),
		PoNo:          shared.DocNumber(shared.DocPrefixPurchaseOrder, now),
		SupplierID:    in.SupplierID,
		SupplierName:  in.SupplierName,
		OrderType:     in.OrderType,
		TotalAmount:   in.TotalAmount,
		PaymentStatus: settlement.PaymentUnpaid,
		Remarks:       in.Remarks,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// AddRecord registers one delivered or returned line against an existing
// order. Records start pending and must be confirmed before a statement can
// settle them.
func (s *Service) AddRecord(ctx context.Context, in RecordInput) (*PurchaseRecord, error) {
	order, err := s.repo.GetOrderByNo(ctx, in.PoNo)
	if err != nil {
		return nil, fmt.Errorf("purchase order %s: %w", in.PoNo, err)
	}
	if in.Quantity <= 0 || in.UnitPrice < 0 {
		return nil, errors.New("procurement: quantity must be positive and unitPrice non-negative")
	}
	if in.RecordType == "" {
		in.RecordType = RecordInbound
	}
	prefix := shared.DocPrefixInbound
	switch in.RecordType {
	case RecordInbound:
	case RecordReturn:
		prefix = shared.DocPrefixReturn
	default:
		return nil, fmt.Errorf("procurement: unknown record type %q", in.RecordType)
	}
	now := s.now()
	rec := &PurchaseRecord{
		ID:          s.newID(),
		RecordNo:    shared.DocNumber(prefix, now),
		PoNo:        order.PoNo,
		SupplierID:  order.SupplierID,
		RecordType:  in.RecordType,
		ItemName:    in.ItemName,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Amount:      in.Quantity * in.UnitPrice,
		Status:      RecordPending,
		DeliveredAt: in.DeliveredAt,
		CreatedAt:   now,
	}
	if err := s.repo.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ConfirmRecord marks a delivery record as checked against the goods.
func (s *Service) ConfirmRecord(ctx context.Context, id string) (*PurchaseRecord, error) {
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("purchase record %s: %w", id, err)
	}
	if rec.Status == RecordConfirmed {
		return rec, nil
	}
	rec.Status = RecordConfirmed
	if err := s.repo.SaveRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns delivery records for a supplier within a date window.
func (s *Service) ListRecords(ctx context.Context, supplierID, from, to string) ([]PurchaseRecord, error) {
	return s.repo.ListRecords(ctx, supplierID, from, to)
}

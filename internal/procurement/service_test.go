package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyline/tallyline/internal/shared"
)

type memoryRepo struct {
	orders  map[string]PurchaseOrder
	records map[string]PurchaseRecord
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:  make(map[string]PurchaseOrder),
		records: make(map[string]PurchaseRecord),
	}
}

func (m *memoryRepo) ListOrders(_ context.Context, orderType OrderType, supplierID string) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, o := range m.orders {
		if orderType != "" && o.OrderType != orderType {
			continue
		}
		if supplierID != "" && o.SupplierID != supplierID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryRepo) GetOrder(_ context.Context, id string) (*PurchaseOrder, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &o, nil
}

func (m *memoryRepo) GetOrderByNo(_ context.Context, poNo string) (*PurchaseOrder, error) {
	for _, o := range m.orders {
		if o.PoNo == poNo {
			copied := o
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) CreateOrder(_ context.Context, o *PurchaseOrder) error {
	m.orders[o.ID] = *o
	return nil
}

func (m *memoryRepo) SaveOrder(_ context.Context, o *PurchaseOrder) error {
	m.orders[o.ID] = *o
	return nil
}

func (m *memoryRepo) CreateRecord(_ context.Context, rec *PurchaseRecord) error {
	m.records[rec.ID] = *rec
	return nil
}

func (m *memoryRepo) GetRecord(_ context.Context, id string) (*PurchaseRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &rec, nil
}

func (m *memoryRepo) SaveRecord(_ context.Context, rec *PurchaseRecord) error {
	m.records[rec.ID] = *rec
	return nil
}

func (m *memoryRepo) ListRecords(_ context.Context, supplierID, from, to string) ([]PurchaseRecord, error) {
	var out []PurchaseRecord
	for _, rec := range m.records {
		if supplierID != "" && rec.SupplierID != supplierID {
			continue
		}
		if from != "" && rec.DeliveredAt < from {
			continue
		}
		if to != "" && rec.DeliveredAt > to {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memoryRepo) ListRecordsByIDs(_ context.Context, ids []string) ([]PurchaseRecord, error) {
	var out []PurchaseRecord
	for _, id := range ids {
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	}
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("po-%d", seq)
	}
	return svc
}

func TestCreateOrderDefaultsAndNumbering(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	o, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		SupplierID:   "sup-1",
		SupplierName: "Acme",
		TotalAmount:  12000,
	})
	require.NoError(t, err)
	require.Equal(t, OrderStandard, o.OrderType)
	require.True(t, strings.HasPrefix(o.PoNo, "PO20260115"), o.PoNo)
	require.Zero(t, o.PaidAmount)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{TotalAmount: 100})
	require.Error(t, err)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{SupplierID: "sup-1", TotalAmount: 0})
	require.Error(t, err)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{SupplierID: "sup-1", TotalAmount: 100, OrderType: "leaseback"})
	require.Error(t, err)
}

func TestAddRecordComputesAmount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: "sup-1", TotalAmount: 5000})
	require.NoError(t, err)

	rec, err := svc.AddRecord(ctx, RecordInput{
		PoNo:        o.PoNo,
		ItemName:    "steel plate",
		Quantity:    12,
		UnitPrice:   37.5,
		DeliveredAt: "2026-01-14",
	})
	require.NoError(t, err)
	require.Equal(t, 450.0, rec.Amount)
	require.Equal(t, "sup-1", rec.SupplierID)
	require.Equal(t, RecordInbound, rec.RecordType)
	require.Equal(t, RecordPending, rec.Status)
	require.True(t, strings.HasPrefix(rec.RecordNo, "RK20260115"), rec.RecordNo)
}

func TestAddReturnRecordNumbering(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: "sup-1", TotalAmount: 5000})
	require.NoError(t, err)

	rec, err := svc.AddRecord(ctx, RecordInput{
		PoNo:        o.PoNo,
		RecordType:  RecordReturn,
		ItemName:    "steel plate",
		Quantity:    2,
		UnitPrice:   37.5,
		DeliveredAt: "2026-01-15",
	})
	require.NoError(t, err)
	require.Equal(t, RecordReturn, rec.RecordType)
	require.True(t, strings.HasPrefix(rec.RecordNo, "TH20260115"), rec.RecordNo)
}

func TestConfirmRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, CreateOrderInput{SupplierID: "sup-1", TotalAmount: 5000})
	require.NoError(t, err)
	rec, err := svc.AddRecord(ctx, RecordInput{PoNo: o.PoNo, ItemName: "bolts", Quantity: 10, UnitPrice: 2, DeliveredAt: "2026-01-14"})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, RecordConfirmed, confirmed.Status)

	// idempotent
	again, err := svc.ConfirmRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, RecordConfirmed, again.Status)
}

func TestAddRecordUnknownOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.AddRecord(context.Background(), RecordInput{
		PoNo:      "PO20260101XXXX",
		Quantity:  1,
		UnitPrice: 10,
	})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyline/tallyline/internal/procurement"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

type memoryRepo struct {
	requests        map[string]PaymentRequest
	orders          map[string]settlement.PaymentOrder
	purchaseOrders  map[string]procurement.PurchaseOrder
	invoiceBalances map[string]float64
	payablePaid     map[string]float64

	txCalls    int
	payableErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requests:        map[string]PaymentRequest{},
		orders:          map[string]settlement.PaymentOrder{},
		purchaseOrders:  map[string]procurement.PurchaseOrder{},
		invoiceBalances: map[string]float64{},
		payablePaid:     map[string]float64{},
	}
}

func (m *memoryRepo) ListRequests(_ context.Context, status RequestStatus, supplierID string) ([]PaymentRequest, error) {
	var out []PaymentRequest
	for _, req := range m.requests {
		if status != "" && req.Status != status {
			continue
		}
		if supplierID != "" && req.SupplierID != supplierID {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (m *memoryRepo) GetRequest(_ context.Context, id string) (*PaymentRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &req, nil
}

func (m *memoryRepo) CreateRequest(_ context.Context, req *PaymentRequest) error {
	m.requests[req.ID] = *req
	return nil
}

func (m *memoryRepo) SaveRequest(_ context.Context, req *PaymentRequest) error {
	m.requests[req.ID] = *req
	return nil
}

func (m *memoryRepo) CreatePaymentOrder(_ context.Context, o *settlement.PaymentOrder) error {
	m.orders[o.ID] = *o
	return nil
}

func (m *memoryRepo) SumInvoiceUnverified(_ context.Context, ids []string) (float64, error) {
	var sum float64
	for _, id := range ids {
		sum += m.invoiceBalances[id]
	}
	return sum, nil
}

func (m *memoryRepo) GetPurchaseOrder(_ context.Context, id string) (*procurement.PurchaseOrder, error) {
	o, ok := m.purchaseOrders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &o, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txCalls++
	return fn(ctx, m)
}

func (m *memoryRepo) ApplyPurchaseOrderPayment(_ context.Context, id string, amount float64) error {
	o := m.purchaseOrders[id]
	o.PaidAmount += amount
	o.PaymentStatus = settlement.DerivePaymentStatus(o.PaidAmount, o.TotalAmount)
	m.purchaseOrders[id] = o
	return nil
}

func (m *memoryRepo) ApplyPayablePayment(_ context.Context, id string, amount float64) error {
	if m.payableErr != nil {
		return m.payableErr
	}
	m.payablePaid[id] += amount
	return nil
}

type fakeSettler struct {
	payableID  string
	orderID    string
	invoiceIDs []string
	calls      int
}

func (f *fakeSettler) AutoVerifyOnPayment(_ context.Context, payableID, orderID string, invoiceIDs []string) (*settlement.VerificationRecord, error) {
	f.calls++
	f.payableID = payableID
	f.orderID = orderID
	f.invoiceIDs = invoiceIDs
	return &settlement.VerificationRecord{ID: "vr-auto"}, nil
}

func newTestService(repo *memoryRepo, settler AutoVerifier) *Service {
	svc := NewService(repo, settler, nil)
	svc.now = func() time.Time { return time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateRequiresExactlyOneSource(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 1000
	repo.purchaseOrders["po-1"] = procurement.PurchaseOrder{ID: "po-1", OrderType: procurement.OrderPrepaid, TotalAmount: 5000}
	svc := newTestService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{SupplierID: "sup-1", Amount: 100})
	require.ErrorIs(t, err, ErrSourceRequired)

	_, err = svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 100,
		InvoiceIDs: []string{"inv-1"}, PurchaseOrderID: "po-1",
	})
	require.ErrorIs(t, err, ErrSourceConflict)
}

func TestCreateCapsAmountBySource(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 800
	repo.purchaseOrders["po-1"] = procurement.PurchaseOrder{ID: "po-1", OrderType: procurement.OrderPrepaid, TotalAmount: 5000, PaidAmount: 4500}
	svc := newTestService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 900, InvoiceIDs: []string{"inv-1"},
	})
	require.ErrorIs(t, err, ErrAmountExceedsSource)

	_, err = svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 600, PurchaseOrderID: "po-1",
	})
	require.ErrorIs(t, err, ErrAmountExceedsSource)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 500, PurchaseOrderID: "po-1",
	})
	require.NoError(t, err)
	require.Equal(t, RequestPrepaid, req.RequestType)
	require.Equal(t, "QK", req.RequestNo[:2])
	require.Equal(t, RequestDraft, req.Status)
}

func TestApprovalFlow(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 1000
	svc := newTestService(repo, nil)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 800, InvoiceIDs: []string{"inv-1"}, CreatedBy: "alice",
	})
	require.NoError(t, err)

	// Approving a draft skips the submission step and must fail.
	_, err = svc.Approve(context.Background(), req.ID)
	require.ErrorIs(t, err, ErrBadTransition)

	_, err = svc.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	got, err := svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestApproved, got.Status)
}

func TestRejectRecordsReason(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 1000
	svc := newTestService(repo, nil)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 800, InvoiceIDs: []string{"inv-1"}, CreatedBy: "alice",
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), req.ID)
	require.NoError(t, err)

	got, err := svc.Reject(context.Background(), req.ID, "missing delivery proof")
	require.NoError(t, err)
	require.Equal(t, RequestRejected, got.Status)
	require.Equal(t, "missing delivery proof", got.RejectReason)
}

func TestPayIssuesOrderAndTriggersAutoVerification(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 2000
	settler := &fakeSettler{}
	svc := newTestService(repo, settler)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 1500,
		InvoiceIDs: []string{"inv-1"}, PayableID: "ap-1", CreatedBy: "alice",
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)

	paid, err := svc.Pay(context.Background(), req.ID, PayInput{TransactionNo: "TXN-20260115-001"})
	require.NoError(t, err)
	require.Equal(t, RequestPaid, paid.Status)
	require.NotEmpty(t, paid.PaymentOrderID)
	require.Equal(t, 1500.0, paid.PaidAmount)
	require.Zero(t, paid.UnpaidAmount)
	require.NotNil(t, paid.PaidAt)

	order := repo.orders[paid.PaymentOrderID]
	require.Equal(t, "FK", order.PaymentNo[:2])
	require.Equal(t, 1500.0, order.UnverifiedAmount)
	require.Equal(t, settlement.StatusUnverified, order.Status)
	require.Equal(t, "bank_transfer", order.PaymentMethod)
	require.Equal(t, "TXN-20260115-001", order.TransactionNo)
	require.Equal(t, 1500.0, repo.payablePaid["ap-1"])
	require.Equal(t, 1, repo.txCalls)

	require.Equal(t, 1, settler.calls)
	require.Equal(t, "ap-1", settler.payableID)
	require.Equal(t, paid.PaymentOrderID, settler.orderID)
	require.Equal(t, []string{"inv-1"}, settler.invoiceIDs)
}

func TestPayPrepaidMovesPurchaseOrderBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.purchaseOrders["po-1"] = procurement.PurchaseOrder{ID: "po-1", OrderType: procurement.OrderPrepaid, TotalAmount: 5000}
	settler := &fakeSettler{}
	svc := newTestService(repo, settler)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 2000, PurchaseOrderID: "po-1", CreatedBy: "alice",
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), req.ID, PayInput{})
	require.NoError(t, err)
	require.Equal(t, 2000.0, repo.purchaseOrders["po-1"].PaidAmount)
	require.Equal(t, settlement.PaymentPartialPaid, repo.purchaseOrders["po-1"].PaymentStatus)
	// No payable linked, so no auto verification runs.
	require.Equal(t, 0, settler.calls)
}

func TestPartialPayoutsAccumulate(t *testing.T) {
	repo := newMemoryRepo()
	repo.purchaseOrders["po-1"] = procurement.PurchaseOrder{
		ID: "po-1", OrderType: procurement.OrderPrepaid,
		TotalAmount: 2000, PaymentStatus: settlement.PaymentUnpaid,
	}
	svc := newTestService(repo, nil)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 2000, PurchaseOrderID: "po-1", CreatedBy: "alice",
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)

	first, err := svc.Pay(context.Background(), req.ID, PayInput{Amount: 600, TransactionNo: "TXN-1"})
	require.NoError(t, err)
	require.Equal(t, RequestApproved, first.Status)
	require.Equal(t, 600.0, first.PaidAmount)
	require.Equal(t, 1400.0, first.UnpaidAmount)
	require.Nil(t, first.PaidAt)
	require.Equal(t, 600.0, repo.orders[first.PaymentOrderID].Amount)
	require.Equal(t, settlement.PaymentPartialPaid, repo.purchaseOrders["po-1"].PaymentStatus)

	_, err = svc.Pay(context.Background(), req.ID, PayInput{Amount: 1500})
	require.ErrorIs(t, err, ErrAmountExceedsSource)

	// A zero amount pays out the remaining balance.
	final, err := svc.Pay(context.Background(), req.ID, PayInput{})
	require.NoError(t, err)
	require.Equal(t, RequestPaid, final.Status)
	require.Zero(t, final.UnpaidAmount)
	require.NotNil(t, final.PaidAt)
	require.Equal(t, 1400.0, repo.orders[final.PaymentOrderID].Amount)
	require.Equal(t, 2000.0, repo.purchaseOrders["po-1"].PaidAmount)
	require.Equal(t, settlement.PaymentPaid, repo.purchaseOrders["po-1"].PaymentStatus)
}

func TestPayFailureLeavesRequestUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 1000
	repo.payableErr = errors.New("payables unreachable")
	svc := newTestService(repo, nil)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 800, InvoiceIDs: []string{"inv-1"}, PayableID: "ap-1", CreatedBy: "alice",
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), req.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), req.ID)
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), req.ID, PayInput{})
	require.ErrorIs(t, err, repo.payableErr)
	stored := repo.requests[req.ID]
	require.Equal(t, RequestApproved, stored.Status)
	require.Zero(t, stored.PaidAmount)
	require.Equal(t, 800.0, stored.UnpaidAmount)
}

func TestPayRequiresApprovedStatus(t *testing.T) {
	repo := newMemoryRepo()
	repo.invoiceBalances["inv-1"] = 1000
	svc := newTestService(repo, nil)

	req, err := svc.Create(context.Background(), CreateInput{
		SupplierID: "sup-1", Amount: 500, InvoiceIDs: []string{"inv-1"}, CreatedBy: "alice",
	})
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), req.ID, PayInput{})
	require.ErrorIs(t, err, ErrBadTransition)
}

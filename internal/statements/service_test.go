package statements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tallyline/tallyline/internal/payables"
	"github.com/tallyline/tallyline/internal/procurement"
	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

type memoryRepo struct {
	statements    map[string]Statement
	prepaidOrders []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{statements: map[string]Statement{}}
}

func (m *memoryRepo) List(_ context.Context, status Status, supplierID string) ([]Statement, error) {
	var out []Statement
	for _, st := range m.statements {
		if status != "" && st.Status != status {
			continue
		}
		if supplierID != "" && st.SupplierID != supplierID {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Statement, error) {
	st, ok := m.statements[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &st, nil
}

func (m *memoryRepo) Create(_ context.Context, st *Statement) error {
	m.statements[st.ID] = *st
	return nil
}

func (m *memoryRepo) Save(_ context.Context, st *Statement) error {
	m.statements[st.ID] = *st
	return nil
}

func (m *memoryRepo) FindPrepaidPaymentOrders(_ context.Context, _ []string) ([]string, error) {
	return m.prepaidOrders, nil
}

type fakeRecords struct {
	records map[string]procurement.PurchaseRecord
}

func (f *fakeRecords) ListRecordsByIDs(_ context.Context, ids []string) ([]procurement.PurchaseRecord, error) {
	var out []procurement.PurchaseRecord
	for _, id := range ids {
		if rec, ok := f.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakePayables struct {
	created []payables.CreateInput
}

func (f *fakePayables) Create(_ context.Context, in payables.CreateInput) (*settlement.Payable, error) {
	f.created = append(f.created, in)
	return &settlement.Payable{
		ID:               uuid.NewString(),
		PayableNo:        "YF20260120TEST",
		SupplierID:       in.SupplierID,
		TotalAmount:      in.TotalAmount,
		UnverifiedAmount: in.TotalAmount,
		Status:           settlement.StatusUnverified,
		DueDate:          in.DueDate,
	}, nil
}

type fakeSettler struct {
	payableID string
	orderIDs  []string
	calls     int
}

func (f *fakeSettler) AutoVerifyOnPrepaidSettlement(_ context.Context, payableID string, orderIDs []string) ([]settlement.VerificationRecord, error) {
	f.calls++
	f.payableID = payableID
	f.orderIDs = orderIDs
	return nil, nil
}

func fixture() (*memoryRepo, *fakeRecords, *fakePayables, *fakeSettler, *Service) {
	repo := newMemoryRepo()
	records := &fakeRecords{records: map[string]procurement.PurchaseRecord{
		"rec-1": {ID: "rec-1", RecordNo: "RK20260110AAAA", PoNo: "PO20260101AAAA", RecordType: procurement.RecordInbound, Amount: 3000, Status: procurement.RecordConfirmed},
		"rec-2": {ID: "rec-2", RecordNo: "RK20260112BBBB", PoNo: "PO20260101AAAA", RecordType: procurement.RecordInbound, Amount: 2000, Status: procurement.RecordConfirmed},
		"rec-3": {ID: "rec-3", RecordNo: "TH20260113CCCC", PoNo: "PO20260101AAAA", RecordType: procurement.RecordReturn, Amount: 800, Status: procurement.RecordConfirmed},
		"rec-4": {ID: "rec-4", RecordNo: "RK20260114DDDD", PoNo: "PO20260101AAAA", RecordType: procurement.RecordInbound, Amount: 1000, Status: procurement.RecordPending},
	}}
	pay := &fakePayables{}
	settler := &fakeSettler{}
	svc := NewService(repo, records, pay, settler, nil)
	svc.now = func() time.Time { return time.Date(2026, time.January, 20, 9, 0, 0, 0, time.UTC) }
	return repo, records, pay, settler, svc
}

func createConfirmable(t *testing.T, svc *Service) *Statement {
	t.Helper()
	st, err := svc.Create(context.Background(), CreateInput{
		SupplierID:        "sup-1",
		SupplierName:      "Acme Components",
		PeriodStart:       "2026-01-01",
		PeriodEnd:         "2026-01-15",
		PurchaseRecordIDs: []string{"rec-1", "rec-2"},
		DeductionAmount:   500,
	})
	require.NoError(t, err)
	_, err = svc.SendToSupplier(context.Background(), st.ID)
	require.NoError(t, err)
	_, err = svc.SupplierConfirm(context.Background(), st.ID, 0)
	require.NoError(t, err)
	return st
}

func TestCreateComputesTotals(t *testing.T) {
	_, _, _, _, svc := fixture()
	st, err := svc.Create(context.Background(), CreateInput{
		SupplierID:        "sup-1",
		PeriodStart:       "2026-01-01",
		PeriodEnd:         "2026-01-15",
		PurchaseRecordIDs: []string{"rec-1", "rec-2"},
		DeductionAmount:   500,
	})
	require.NoError(t, err)
	require.Equal(t, "DZ", st.StatementNo[:2])
	require.Equal(t, 5000.0, st.TotalAmount)
	require.Equal(t, 4500.0, st.NetAmount)
	require.Equal(t, StatusDraft, st.Status)
}

func TestCreateSubtractsReturns(t *testing.T) {
	_, _, _, _, svc := fixture()
	st, err := svc.Create(context.Background(), CreateInput{
		SupplierID:        "sup-1",
		PeriodStart:       "2026-01-01",
		PeriodEnd:         "2026-01-15",
		PurchaseRecordIDs: []string{"rec-1", "rec-2", "rec-3"},
		DeductionAmount:   200,
	})
	require.NoError(t, err)
	require.Equal(t, 5000.0, st.TotalAmount)
	require.Equal(t, 800.0, st.ReturnAmount)
	require.Equal(t, 4000.0, st.NetAmount)
}

func TestCreateRejectsPendingRecords(t *testing.T) {
	_, _, _, _, svc := fixture()
	_, err := svc.Create(context.Background(), CreateInput{
		SupplierID:        "sup-1",
		PurchaseRecordIDs: []string{"rec-1", "rec-4"},
	})
	require.ErrorContains(t, err, "not confirmed")
}

func TestDisputeAndResend(t *testing.T) {
	_, _, _, _, svc := fixture()
	ctx := context.Background()
	st, err := svc.Create(ctx, CreateInput{
		SupplierID:        "sup-1",
		PurchaseRecordIDs: []string{"rec-1"},
	})
	require.NoError(t, err)
	_, err = svc.SendToSupplier(ctx, st.ID)
	require.NoError(t, err)

	_, err = svc.Dispute(ctx, st.ID, "")
	require.Error(t, err)

	disputed, err := svc.Dispute(ctx, st.ID, "missing the Jan 12 delivery")
	require.NoError(t, err)
	require.Equal(t, StatusDisputed, disputed.Status)
	require.Equal(t, "missing the Jan 12 delivery", disputed.DisputeReason)

	// disputed statements can go back out after revision
	resent, err := svc.SendToSupplier(ctx, st.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingSupplierConfirm, resent.Status)
	require.Empty(t, resent.DisputeReason)

	// and cannot be disputed while in draft
	other, err := svc.Create(ctx, CreateInput{SupplierID: "sup-1", PurchaseRecordIDs: []string{"rec-2"}})
	require.NoError(t, err)
	_, err = svc.Dispute(ctx, other.ID, "wrong period")
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestCreateRejectsUnknownRecords(t *testing.T) {
	_, _, _, _, svc := fixture()
	_, err := svc.Create(context.Background(), CreateInput{
		SupplierID:        "sup-1",
		PurchaseRecordIDs: []string{"rec-1", "rec-missing"},
	})
	require.Error(t, err)
}

func TestConfirmationOrderIsEnforced(t *testing.T) {
	_, _, _, _, svc := fixture()
	st, err := svc.Create(context.Background(), CreateInput{
		SupplierID:        "sup-1",
		PurchaseRecordIDs: []string{"rec-1"},
	})
	require.NoError(t, err)

	// Buyer cannot confirm before the supplier has.
	_, err = svc.BuyerConfirm(context.Background(), st.ID)
	require.ErrorIs(t, err, ErrBadTransition)
	_, err = svc.SupplierConfirm(context.Background(), st.ID, 0)
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestSupplierConfirmRecordsDifference(t *testing.T) {
	_, _, _, _, svc := fixture()
	ctx := context.Background()
	st, err := svc.Create(ctx, CreateInput{
		SupplierID:        "sup-1",
		PurchaseRecordIDs: []string{"rec-1", "rec-2"},
	})
	require.NoError(t, err)
	_, err = svc.SendToSupplier(ctx, st.ID)
	require.NoError(t, err)

	_, err = svc.SupplierConfirm(ctx, st.ID, -1)
	require.Error(t, err)

	confirmed, err := svc.SupplierConfirm(ctx, st.ID, 5200)
	require.NoError(t, err)
	require.Equal(t, StatusPendingBuyerConfirm, confirmed.Status)
	require.Equal(t, 5200.0, confirmed.SupplierAmount)
	require.Equal(t, 200.0, confirmed.DifferenceAmount)
}

func TestSupplierConfirmDefaultsToNet(t *testing.T) {
	_, _, _, _, svc := fixture()
	ctx := context.Background()
	st, err := svc.Create(ctx, CreateInput{
		SupplierID:        "sup-1",
		PurchaseRecordIDs: []string{"rec-1"},
	})
	require.NoError(t, err)
	_, err = svc.SendToSupplier(ctx, st.ID)
	require.NoError(t, err)

	confirmed, err := svc.SupplierConfirm(ctx, st.ID, 0)
	require.NoError(t, err)
	require.Equal(t, confirmed.NetAmount, confirmed.SupplierAmount)
	require.Zero(t, confirmed.DifferenceAmount)
}

func TestBuyerConfirmBooksPayableAndSettlesPrepaid(t *testing.T) {
	repo, _, pay, settler, svc := fixture()
	repo.prepaidOrders = []string{"pay-1", "pay-2"}
	st := createConfirmable(t, svc)

	confirmed, err := svc.BuyerConfirm(context.Background(), st.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotEmpty(t, confirmed.PayableID)

	require.Len(t, pay.created, 1)
	require.Equal(t, settlement.SourceStatement, pay.created[0].SourceType)
	require.Equal(t, 4500.0, pay.created[0].TotalAmount)
	require.Equal(t, st.StatementNo, pay.created[0].SourceNo)
	require.Equal(t, "2026-02-19", pay.created[0].DueDate)

	require.Equal(t, 1, settler.calls)
	require.Equal(t, confirmed.PayableID, settler.payableID)
	require.Equal(t, []string{"pay-1", "pay-2"}, settler.orderIDs)
}

func TestBuyerConfirmSkipsSettlementWithoutPrepaidOrders(t *testing.T) {
	_, _, pay, settler, svc := fixture()
	st := createConfirmable(t, svc)

	_, err := svc.BuyerConfirm(context.Background(), st.ID)
	require.NoError(t, err)
	require.Len(t, pay.created, 1)
	require.Equal(t, 0, settler.calls)
}

func TestBuyerConfirmTwiceFails(t *testing.T) {
	_, _, _, _, svc := fixture()
	st := createConfirmable(t, svc)

	_, err := svc.BuyerConfirm(context.Background(), st.ID)
	require.NoError(t, err)
	_, err = svc.BuyerConfirm(context.Background(), st.ID)
	require.ErrorIs(t, err, ErrBadTransition)
}

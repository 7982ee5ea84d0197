package invoices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyline/tallyline/internal/settlement"
	"github.com/tallyline/tallyline/internal/shared"
)

type memoryRepo struct {
	invoices map[string]settlement.Invoice
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: map[string]settlement.Invoice{}}
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]settlement.Invoice, error) {
	var out []settlement.Invoice
	for _, inv := range m.invoices {
		if filter.SupplierID != "" && inv.SupplierID != filter.SupplierID {
			continue
		}
		if filter.Authenticity != "" && inv.Authenticity != filter.Authenticity {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*settlement.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &inv, nil
}

func (m *memoryRepo) Create(_ context.Context, inv *settlement.Invoice) error {
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memoryRepo) Save(_ context.Context, inv *settlement.Invoice) error {
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func newTestService(repo *memoryRepo, roll float64) *Service {
	svc := NewService(repo, nil)
	svc.randFn = func() float64 { return roll }
	return svc
}

func createInvoice(t *testing.T, svc *Service) *settlement.Invoice {
	t.Helper()
	inv, err := svc.Create(context.Background(), CreateInput{
		InvoiceNo:    "INV-001",
		InvoiceCode:  "044001900111",
		SupplierID:   "sup-1",
		SupplierName: "Acme Components",
		InvoiceType:  "special_vat",
		Amount:       1000,
		TaxAmount:    130,
		InvoiceDate:  "2026-01-10",
	})
	require.NoError(t, err)
	return inv
}

func TestCreateComputesTotalsAndInitialStatuses(t *testing.T) {
	svc := newTestService(newMemoryRepo(), 0.5)
	inv := createInvoice(t, svc)
	require.Equal(t, 1130.0, inv.TotalAmount)
	require.Equal(t, 1130.0, inv.UnverifiedAmount)
	require.Equal(t, settlement.StatusUnverified, inv.Status)
	require.Equal(t, settlement.AuthenticityUnchecked, inv.Authenticity)
	require.Equal(t, settlement.BusinessPending, inv.Business)
}

func TestAuthenticateOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		roll    float64
		status  settlement.AuthenticityStatus
		message string
		wantErr error
	}{
		{name: "pass", roll: 0.5, status: settlement.AuthenticityVerified},
		{name: "info mismatch", roll: 0.12, status: settlement.AuthenticityFailed, message: msgInfoMismatch},
		{name: "not exists", roll: 0.07, status: settlement.AuthenticityFailed, message: msgNotExists},
		{name: "outage", roll: 0.01, status: settlement.AuthenticityServiceUnavailable, wantErr: ErrServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc := newTestService(repo, tc.roll)
			inv := createInvoice(t, svc)

			got, err := svc.Authenticate(context.Background(), inv.ID)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.status, got.Authenticity)
			require.Equal(t, tc.message, got.AuthenticityMessage)
			require.NotNil(t, got.AuthenticityCheckedAt)
			require.Equal(t, tc.status, repo.invoices[inv.ID].Authenticity)
		})
	}
}

func TestBusinessVerifyRequiresAuthenticityPass(t *testing.T) {
	svc := newTestService(newMemoryRepo(), 0.5)
	inv := createInvoice(t, svc)

	_, err := svc.BusinessVerify(context.Background(), inv.ID, true, "")
	require.ErrorIs(t, err, ErrAuthenticityRequired)

	_, err = svc.Authenticate(context.Background(), inv.ID)
	require.NoError(t, err)
	got, err := svc.BusinessVerify(context.Background(), inv.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, settlement.BusinessVerified, got.Business)
}

func TestBusinessVerifyUnusableNeedsReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, 0.5)
	inv := createInvoice(t, svc)
	_, err := svc.Authenticate(context.Background(), inv.ID)
	require.NoError(t, err)

	_, err = svc.BusinessVerify(context.Background(), inv.ID, false, "dup")
	require.ErrorIs(t, err, ErrReasonRequired)

	got, err := svc.BusinessVerify(context.Background(), inv.ID, false, "duplicate of INV-002")
	require.NoError(t, err)
	require.Equal(t, settlement.BusinessUnusable, got.Business)
	require.Equal(t, "duplicate of INV-002", got.BusinessReason)
}

func TestVerifiedInvoiceCannotBeUnusableOrDeleted(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, 0.5)
	inv := createInvoice(t, svc)
	_, err := svc.Authenticate(context.Background(), inv.ID)
	require.NoError(t, err)

	stored := repo.invoices[inv.ID]
	stored.ApplyVerified(200)
	repo.invoices[inv.ID] = stored

	_, err = svc.BusinessVerify(context.Background(), inv.ID, false, "no longer needed for settlement")
	require.ErrorIs(t, err, ErrInUse)
	require.ErrorIs(t, svc.Delete(context.Background(), inv.ID), ErrInUse)
}

func TestDeleteUnverifiedInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, 0.5)
	inv := createInvoice(t, svc)

	require.NoError(t, svc.Delete(context.Background(), inv.ID))
	_, err := svc.Get(context.Background(), inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

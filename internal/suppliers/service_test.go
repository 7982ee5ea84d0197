package suppliers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyline/tallyline/internal/shared"
)

type memoryRepo struct {
	suppliers map[string]Supplier
}

func (m *memoryRepo) List(_ context.Context) ([]Supplier, error) {
	var out []Supplier
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (m *memoryRepo) Create(_ context.Context, s *Supplier) error {
	m.suppliers[s.ID] = *s
	return nil
}

func (m *memoryRepo) Save(_ context.Context, s *Supplier) error {
	m.suppliers[s.ID] = *s
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := &memoryRepo{suppliers: make(map[string]Supplier)}
	svc := NewService(repo, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	}
	svc.newID = func() string { return "sup-1" }
	return svc, repo
}

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), Input{Contact: "Wang Lei"})
	require.Error(t, err)
}

func TestCreateStartsActive(t *testing.T) {
	svc, _ := newTestService()

	sup, err := svc.Create(context.Background(), Input{Name: "Acme", TaxNo: "91310000X"})
	require.NoError(t, err)
	require.True(t, sup.Active)
	require.Equal(t, "91310000X", sup.TaxNo)
}

func TestUpdateReplacesEditableFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Acme", Contact: "Wang Lei", Phone: "555"})
	require.NoError(t, err)

	sup, err := svc.Update(ctx, "sup-1", Input{Name: "Acme Components", Contact: "Chen Min"})
	require.NoError(t, err)
	require.Equal(t, "Acme Components", sup.Name)
	require.Equal(t, "Chen Min", sup.Contact)
	// phone was omitted from the update and is cleared
	require.Empty(t, sup.Phone)
}

func TestDeactivateKeepsRecord(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Acme"})
	require.NoError(t, err)

	sup, err := svc.Deactivate(ctx, "sup-1")
	require.NoError(t, err)
	require.False(t, sup.Active)
	require.Contains(t, repo.suppliers, "sup-1")
}

func TestGetUnknown(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), "sup-404")
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

package settlement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialFillsInOrder(t *testing.T) {
	items := []LedgerItem{
		{ID: "po-a", Unverified: 3000},
		{ID: "po-b", Unverified: 2000},
	}
	allocs := Sequential(4000).Allocate(items)
	require.Equal(t, []Allocation{
		{ID: "po-a", Amount: 3000},
		{ID: "po-b", Amount: 1000},
	}, allocs)
}

func TestSequentialSkipsExhaustedDocuments(t *testing.T) {
	items := []LedgerItem{
		{ID: "po-a", Unverified: 0},
		{ID: "po-b", Unverified: 500},
		{ID: "po-c", Unverified: 800},
	}
	allocs := Sequential(600).Allocate(items)
	require.Equal(t, []Allocation{
		{ID: "po-b", Amount: 500},
		{ID: "po-c", Amount: 100},
	}, allocs)
}

func TestSequentialStopsWhenTargetExhausted(t *testing.T) {
	items := []LedgerItem{
		{ID: "po-a", Unverified: 1000},
		{ID: "po-b", Unverified: 1000},
	}
	allocs := Sequential(1000).Allocate(items)
	require.Len(t, allocs, 1)
	require.Equal(t, "po-a", allocs[0].ID)
}

func TestManualClampsToUnverified(t *testing.T) {
	items := []LedgerItem{
		{ID: "inv-1", Unverified: 2000},
		{ID: "inv-2", Unverified: 1000},
	}
	allocs := Manual([]Allocation{
		{ID: "inv-1", Amount: 2500},
		{ID: "inv-2", Amount: 400},
	}).Allocate(items)
	require.Equal(t, []Allocation{
		{ID: "inv-1", Amount: 2000},
		{ID: "inv-2", Amount: 400},
	}, allocs)
}

func TestManualDropsUnknownAndNonPositive(t *testing.T) {
	items := []LedgerItem{{ID: "inv-1", Unverified: 2000}}
	allocs := Manual([]Allocation{
		{ID: "inv-1", Amount: 0},
		{ID: "inv-9", Amount: 100},
		{ID: "inv-1", Amount: -5},
	}).Allocate(items)
	require.Empty(t, allocs)
}

func TestMaxVerifiableTakesSmallestSide(t *testing.T) {
	orders := []LedgerItem{{ID: "po", Unverified: 8000}}
	invoices := []LedgerItem{{ID: "inv-1", Unverified: 3000}, {ID: "inv-2", Unverified: 2000}}
	require.Equal(t, 5000.0, MaxVerifiable(10000, orders, invoices))
	require.Equal(t, 4000.0, MaxVerifiable(4000, orders, invoices))
	require.Equal(t, 0.0, MaxVerifiable(0, orders, invoices))
}

package settlement

// LedgerItem is the allocation view of a document: its id and how much of it
// remains unverified.
type LedgerItem struct {
	ID         string
	Unverified float64
}

// Allocation assigns an amount to one document.
type Allocation struct {
	ID     string
	Amount float64
}

// Strategy distributes a verification across a set of documents.
type Strategy interface {
	Allocate(items []LedgerItem) []Allocation
}

// Sequential returns a strategy that fills documents in order, taking
// min(remaining, unverified) from each until the target is exhausted.
func Sequential(target float64) Strategy {
	return sequentialStrategy{target: target}
}

type sequentialStrategy struct {
	target float64
}

func (s sequentialStrategy) Allocate(items []LedgerItem) []Allocation {
	remaining := s.target
	out := make([]Allocation, 0, len(items))
	for _, item := range items {
		if remaining <= 0 {
			break
		}
		if item.Unverified <= 0 {
			continue
		}
		take := item.Unverified
		if remaining < take {
			take = remaining
		}
		out = append(out, Allocation{ID: item.ID, Amount: take})
		remaining -= take
	}
	return out
}

// Manual returns a strategy that honours operator-specified amounts, clamping
// each to the document's unverified balance. Requests for unknown documents
// or non-positive amounts are dropped; nothing is redistributed.
func Manual(requested []Allocation) Strategy {
	return manualStrategy{requested: requested}
}

type manualStrategy struct {
	requested []Allocation
}

func (s manualStrategy) Allocate(items []LedgerItem) []Allocation {
	unverified := make(map[string]float64, len(items))
	for _, item := range items {
		unverified[item.ID] = item.Unverified
	}
	out := make([]Allocation, 0, len(s.requested))
	for _, req := range s.requested {
		limit, ok := unverified[req.ID]
		if !ok || req.Amount <= 0 {
			continue
		}
		take := req.Amount
		if take > limit {
			take = limit
		}
		if take <= 0 {
			continue
		}
		out = append(out, Allocation{ID: req.ID, Amount: take})
	}
	return out
}

// SumAllocations totals the allocated amounts.
func SumAllocations(allocs []Allocation) float64 {
	var sum float64
	for _, a := range allocs {
		sum += a.Amount
	}
	return sum
}

// SumUnverified totals the unverified balances of the given documents.
func SumUnverified(items []LedgerItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Unverified
	}
	return sum
}

// MaxVerifiable is the ceiling for a verification: the smallest of the
// payable's unverified balance and the unverified sums on either side.
func MaxVerifiable(payableUnverified float64, orders, invoices []LedgerItem) float64 {
	limit := payableUnverified
	if s := SumUnverified(orders); s < limit {
		limit = s
	}
	if s := SumUnverified(invoices); s < limit {
		limit = s
	}
	return limit
}

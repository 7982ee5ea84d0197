package settlement

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced document does not exist.
	ErrNotFound = errors.New("settlement: not found")
	// ErrEmptySelection indicates no payment orders or invoices were selected.
	ErrEmptySelection = errors.New("settlement: at least one payment order and one invoice required")
	// ErrInvalidAmount indicates a zero or negative verification amount.
	ErrInvalidAmount = errors.New("settlement: verification amount must be greater than zero")
	// ErrAlreadyReversed indicates the record was reversed before.
	ErrAlreadyReversed = errors.New("settlement: verification record already reversed")
	// ErrMissingReason indicates an invalid or absent reversal reason type.
	ErrMissingReason = errors.New("settlement: reversal reason type is required")
	// ErrReasonTooShort indicates the reversal explanation is under 10 characters.
	ErrReasonTooShort = errors.New("settlement: reversal reason detail must be at least 10 characters")
)

// CapExceededError reports a verification amount above the verifiable ceiling.
type CapExceededError struct {
	Cap float64
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("settlement: amount exceeds maximum verifiable %.2f", e.Cap)
}

// CrossMonthApprovalError signals that the reversal targets a record from a
// prior month and the caller has not yet confirmed supervisor approval.
type CrossMonthApprovalError struct {
	VerificationMonth string
}

func (e *CrossMonthApprovalError) Error() string {
	return fmt.Sprintf("settlement: cross-month reversal of %s requires supervisor approval", e.VerificationMonth)
}

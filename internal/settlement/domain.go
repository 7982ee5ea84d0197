package settlement

import (
	"encoding/json"
	"time"
)

// VerificationStatus tracks how much of a document's amount has been matched.
type VerificationStatus string

const (
	StatusUnverified      VerificationStatus = "unverified"
	StatusPartialVerified VerificationStatus = "partial_verified"
	StatusVerified        VerificationStatus = "verified"
)

// DeriveStatus recomputes the verification status from the verified amount
// against the document total. Verified wins over partial when the verified
// amount covers the total.
func DeriveStatus(verified, total float64) VerificationStatus {
	switch {
	case verified >= total:
		return StatusVerified
	case verified == 0:
		return StatusUnverified
	default:
		return StatusPartialVerified
	}
}

// PaymentStatus tracks how much of a document's amount has been paid out.
type PaymentStatus string

const (
	PaymentUnpaid      PaymentStatus = "unpaid"
	PaymentPartialPaid PaymentStatus = "partial_paid"
	PaymentPaid        PaymentStatus = "paid"
)

// DerivePaymentStatus recomputes the payment status from the paid amount
// against the document total.
func DerivePaymentStatus(paid, total float64) PaymentStatus {
	switch {
	case paid >= total:
		return PaymentPaid
	case paid <= 0:
		return PaymentUnpaid
	default:
		return PaymentPartialPaid
	}
}

// SourceType identifies the business document a payable originates from.
type SourceType string

const (
	SourcePurchaseOrder SourceType = "purchase_order"
	SourceStatement     SourceType = "statement"
)

// Payable is an accounts-payable ledger entry awaiting settlement.
type Payable struct {
	ID               string             `json:"id"`
	PayableNo        string             `json:"payableNo"`
	SupplierID       string             `json:"supplierId"`
	SupplierName     string             `json:"supplierName"`
	SourceType       SourceType         `json:"sourceType"`
	SourceID         string             `json:"sourceId"`
	SourceNo         string             `json:"sourceNo"`
	TotalAmount      float64            `json:"totalAmount"`
	PaidAmount       float64            `json:"paidAmount"`
	UnpaidAmount     float64            `json:"unpaidAmount"`
	PaymentStatus    PaymentStatus      `json:"paymentStatus"`
	VerifiedAmount   float64            `json:"verifiedAmount"`
	UnverifiedAmount float64            `json:"unverifiedAmount"`
	Status           VerificationStatus `json:"verificationStatus"`
	DueDate          string             `json:"dueDate"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// ApplyVerified moves amount from the unverified to the verified side and
// rederives the status. Negative amounts reverse a prior application.
func (p *Payable) ApplyVerified(amount float64) {
	p.VerifiedAmount += amount
	p.UnverifiedAmount = p.TotalAmount - p.VerifiedAmount
	p.Status = DeriveStatus(p.VerifiedAmount, p.TotalAmount)
}

// PaymentOrder is an executed outgoing payment.
type PaymentOrder struct {
	ID               string             `json:"id"`
	PaymentNo        string             `json:"paymentNo"`
	SupplierID       string             `json:"supplierId"`
	SupplierName     string             `json:"supplierName"`
	PaymentRequestID string             `json:"paymentRequestId,omitempty"`
	Amount           float64            `json:"amount"`
	VerifiedAmount   float64            `json:"verifiedAmount"`
	UnverifiedAmount float64            `json:"unverifiedAmount"`
	Status           VerificationStatus `json:"verificationStatus"`
	PaymentMethod    string             `json:"paymentMethod,omitempty"`
	BankAccount      string             `json:"bankAccount,omitempty"`
	BankName         string             `json:"bankName,omitempty"`
	TransactionNo    string             `json:"transactionNo,omitempty"`
	PaymentDate      string             `json:"paymentDate"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// ApplyVerified moves amount between the order's unverified and verified sides.
func (o *PaymentOrder) ApplyVerified(amount float64) {
	o.VerifiedAmount += amount
	o.UnverifiedAmount = o.Amount - o.VerifiedAmount
	o.Status = DeriveStatus(o.VerifiedAmount, o.Amount)
}

// AuthenticityStatus is the tax-authority check outcome for an invoice.
type AuthenticityStatus string

const (
	AuthenticityUnchecked          AuthenticityStatus = "unchecked"
	AuthenticityVerified           AuthenticityStatus = "verified"
	AuthenticityFailed             AuthenticityStatus = "failed"
	AuthenticityServiceUnavailable AuthenticityStatus = "service_unavailable"
)

// BusinessStatus is the internal business review outcome for an invoice.
type BusinessStatus string

const (
	BusinessPending  BusinessStatus = "pending"
	BusinessVerified BusinessStatus = "verified"
	BusinessUnusable BusinessStatus = "unusable"
)

// Invoice is a supplier invoice registered for settlement.
type Invoice struct {
	ID                    string             `json:"id"`
	InvoiceNo             string             `json:"invoiceNo"`
	InvoiceCode           string             `json:"invoiceCode"`
	SupplierID            string             `json:"supplierId"`
	SupplierName          string             `json:"supplierName"`
	InvoiceType           string             `json:"invoiceType"`
	Source                string             `json:"source"`
	Amount                float64            `json:"amount"`
	TaxAmount             float64            `json:"taxAmount"`
	TotalAmount           float64            `json:"totalAmount"`
	VerifiedAmount        float64            `json:"verifiedAmount"`
	UnverifiedAmount      float64            `json:"unverifiedAmount"`
	Status                VerificationStatus `json:"verificationStatus"`
	Authenticity          AuthenticityStatus `json:"authenticityStatus"`
	AuthenticityCheckedAt *time.Time         `json:"authenticityCheckedAt,omitempty"`
	AuthenticityMessage   string             `json:"authenticityMessage,omitempty"`
	Business              BusinessStatus     `json:"businessStatus"`
	BusinessReason        string             `json:"businessReason,omitempty"`
	InvoiceDate           string             `json:"invoiceDate"`
	CreatedAt             time.Time          `json:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt"`
}

// ApplyVerified moves amount between the invoice's unverified and verified sides.
func (i *Invoice) ApplyVerified(amount float64) {
	i.VerifiedAmount += amount
	i.UnverifiedAmount = i.TotalAmount - i.VerifiedAmount
	i.Status = DeriveStatus(i.VerifiedAmount, i.TotalAmount)
}

// VerificationType distinguishes operator-driven from system-driven records.
type VerificationType string

const (
	TypeManual VerificationType = "manual"
	TypeAuto   VerificationType = "auto"
)

// RecordStatus is the lifecycle state of a verification record.
type RecordStatus string

const (
	RecordCompleted RecordStatus = "completed"
	RecordReversed  RecordStatus = "reversed"
)

// ReverseReason categorises why a verification record was undone.
type ReverseReason string

const (
	ReasonInputError            ReverseReason = "input_error"
	ReasonBusinessChange        ReverseReason = "business_change"
	ReasonDuplicateVerification ReverseReason = "duplicate_verification"
	ReasonInvoiceReturn         ReverseReason = "invoice_return"
	ReasonOther                 ReverseReason = "other"
)

// Valid reports whether r is one of the accepted reversal reasons.
func (r ReverseReason) Valid() bool {
	switch r {
	case ReasonInputError, ReasonBusinessChange, ReasonDuplicateVerification, ReasonInvoiceReturn, ReasonOther:
		return true
	}
	return false
}

// DetailEntry is a per-document amount within a verification record.
type DetailEntry struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
}

// VerificationRecord is the immutable log of one verification application.
// Payment orders and invoices are always stored as plural references; the
// legacy singular fields are derived on serialisation for older consumers.
type VerificationRecord struct {
	ID                  string           `json:"id"`
	VerificationNo      string           `json:"verificationNo"`
	PayableID           string           `json:"payableId"`
	PaymentOrderIDs     []string         `json:"paymentOrderIds"`
	InvoiceIDs          []string         `json:"invoiceIds"`
	Amount              float64          `json:"amount"`
	Type                VerificationType `json:"verificationType"`
	PaymentOrderDetails []DetailEntry    `json:"paymentOrderDetails,omitempty"`
	InvoiceDetails      []DetailEntry    `json:"invoiceDetails,omitempty"`
	VerificationDate    string           `json:"verificationDate"`
	VerifiedBy          string           `json:"verifiedBy"`
	Remarks             string           `json:"remarks,omitempty"`
	Status              RecordStatus     `json:"status"`
	ReversedAt          *time.Time       `json:"reversedAt,omitempty"`
	ReversedBy          string           `json:"reversedBy,omitempty"`
	ReverseReasonType   ReverseReason    `json:"reverseReasonType,omitempty"`
	ReverseReasonDetail string           `json:"reverseReasonDetail,omitempty"`
	CrossMonthApproved  bool             `json:"crossMonthApproved,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
}

type paymentOrderDetailView struct {
	PaymentOrderID string  `json:"paymentOrderId"`
	Amount         float64 `json:"amount"`
}

type invoiceDetailView struct {
	InvoiceID string  `json:"invoiceId"`
	Amount    float64 `json:"amount"`
}

// MarshalJSON emits the record with legacy singular paymentOrderId/invoiceId
// fields derived from the first element of the plural slices, and detail
// rows keyed by their document kind.
func (r VerificationRecord) MarshalJSON() ([]byte, error) {
	type alias VerificationRecord
	out := struct {
		alias
		PaymentOrderDetails []paymentOrderDetailView `json:"paymentOrderDetails,omitempty"`
		InvoiceDetails      []invoiceDetailView      `json:"invoiceDetails,omitempty"`
		PaymentOrderID      string                   `json:"paymentOrderId,omitempty"`
		InvoiceID           string                   `json:"invoiceId,omitempty"`
	}{alias: alias(r)}
	for _, d := range r.PaymentOrderDetails {
		out.PaymentOrderDetails = append(out.PaymentOrderDetails, paymentOrderDetailView{PaymentOrderID: d.ID, Amount: d.Amount})
	}
	for _, d := range r.InvoiceDetails {
		out.InvoiceDetails = append(out.InvoiceDetails, invoiceDetailView{InvoiceID: d.ID, Amount: d.Amount})
	}
	if len(r.PaymentOrderIDs) > 0 {
		out.PaymentOrderID = r.PaymentOrderIDs[0]
	}
	if len(r.InvoiceIDs) > 0 {
		out.InvoiceID = r.InvoiceIDs[0]
	}
	return json.Marshal(out)
}

// VerifyInput carries one verification request against a payable.
type VerifyInput struct {
	PayableID           string
	PaymentOrderIDs     []string
	InvoiceIDs          []string
	Amount              float64
	PaymentOrderDetails []DetailEntry
	InvoiceDetails      []DetailEntry
	VerifiedBy          string
	Remarks             string
}

// ManualMode reports whether the input pins per-document amounts on both
// sides. Partial detail input falls back to sequential allocation.
func (in VerifyInput) ManualMode() bool {
	return len(in.PaymentOrderDetails) > 0 && len(in.InvoiceDetails) > 0
}

// ReverseInput carries one reversal request for an active record.
type ReverseInput struct {
	VerificationID    string
	PayableID         string
	ReasonType        ReverseReason
	ReasonDetail      string
	ReversedBy        string
	ApprovalConfirmed bool
}

// BatchItemResult reports the outcome of one configuration in a batch run.
type BatchItemResult struct {
	PayableID      string `json:"payableId"`
	Success        bool   `json:"success"`
	VerificationNo string `json:"verificationNo,omitempty"`
	Error          string `json:"error,omitempty"`
}

// BatchResult aggregates a batch verification run.
type BatchResult struct {
	SuccessCount int               `json:"successCount"`
	FailCount    int               `json:"failCount"`
	Results      []BatchItemResult `json:"results"`
}

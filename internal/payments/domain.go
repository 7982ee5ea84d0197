// Package payments manages payment requests through approval and payout.
// Paying an approved request issues a payment order and, when the request is
// tied to a payable, immediately attempts automatic verification.
package payments

import "time"

// RequestType distinguishes invoice-backed requests from prepaid ones.
type RequestType string

const (
	RequestInvoiceBased RequestType = "invoice_based"
	RequestPrepaid      RequestType = "prepaid"
)

// RequestStatus is the approval lifecycle of a payment request.
type RequestStatus string

const (
	RequestDraft           RequestStatus = "draft"
	RequestPendingApproval RequestStatus = "pending_approval"
	RequestApproved        RequestStatus = "approved"
	RequestRejected        RequestStatus = "rejected"
	RequestPaid            RequestStatus = "paid"
)

// PaymentRequest asks finance to pay a supplier.
type PaymentRequest struct {
	ID              string        `json:"id"`
	RequestNo       string        `json:"requestNo"`
	SupplierID      string        `json:"supplierId"`
	SupplierName    string        `json:"supplierName"`
	RequestType     RequestType   `json:"requestType"`
	Amount          float64       `json:"amount"`
	PaidAmount      float64       `json:"paidAmount"`
	UnpaidAmount    float64       `json:"unpaidAmount"`
	InvoiceIDs      []string      `json:"invoiceIds,omitempty"`
	PurchaseOrderID string        `json:"purchaseOrderId,omitempty"`
	PayableID       string        `json:"payableId,omitempty"`
	Status          RequestStatus `json:"status"`
	RejectReason    string        `json:"rejectReason,omitempty"`
	Remarks         string        `json:"remarks,omitempty"`
	CreatedBy       string        `json:"createdBy"`
	PaymentOrderID  string        `json:"paymentOrderId,omitempty"`
	PaidAt          *time.Time    `json:"paidAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// CreateInput carries a new payment request.
type CreateInput struct {
	SupplierID      string
	SupplierName    string
	Amount          float64
	InvoiceIDs      []string
	PurchaseOrderID string
	PayableID       string
	Remarks         string
	CreatedBy       string
}

// PayInput carries one payout against an approved request. A zero Amount
// pays the full unpaid balance; TransactionNo is the bank's reference and
// may be empty.
type PayInput struct {
	Amount        float64
	PaymentMethod string
	BankAccount   string
	BankName      string
	TransactionNo string
}

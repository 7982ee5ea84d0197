package settlement

import "context"

// Repository provides access to settlement documents and a transactional
// unit of work for mutating operations.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetRecord(ctx context.Context, id string) (*VerificationRecord, error)
	ListRecordsByPayable(ctx context.Context, payableID string) ([]VerificationRecord, error)
}

// TxRepository is the transaction-scoped view used while applying or
// reversing a verification. Every write within one call to WithTx commits
// or rolls back together.
type TxRepository interface {
	GetPayable(ctx context.Context, id string) (*Payable, error)
	SavePayable(ctx context.Context, p *Payable) error
	GetPaymentOrder(ctx context.Context, id string) (*PaymentOrder, error)
	SavePaymentOrder(ctx context.Context, o *PaymentOrder) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	SaveInvoice(ctx context.Context, inv *Invoice) error
	GetRecord(ctx context.Context, id string) (*VerificationRecord, error)
	InsertRecord(ctx context.Context, rec *VerificationRecord) error
	SaveRecord(ctx context.Context, rec *VerificationRecord) error
}

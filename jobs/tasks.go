package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuthenticitySweep re-checks invoices whose authenticity is still pending.
	TaskTypeAuthenticitySweep = "invoice:authenticity_sweep"
	// TaskTypeLedgerIntegrity scans settlement ledgers for balance drift.
	TaskTypeLedgerIntegrity = "ledger:integrity_scan"
)

// AuthenticitySweepPayload bounds a single sweep run.
type AuthenticitySweepPayload struct {
	Limit int `json:"limit"`
}

// NewAuthenticitySweepTask constructs an authenticity sweep task.
func NewAuthenticitySweepTask(payload AuthenticitySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuthenticitySweep, data), nil
}

// LedgerIntegrityPayload selects which ledgers a scan covers. An empty
// list means all of them.
type LedgerIntegrityPayload struct {
	Tables []string `json:"tables,omitempty"`
}

// NewLedgerIntegrityTask constructs a ledger integrity task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLedgerIntegrity, data), nil
}

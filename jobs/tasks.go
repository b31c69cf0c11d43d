package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecalculateTotals recomputes the expense totals of one invoice.
	TaskRecalculateTotals = "invoice:recalculate_totals"
	// TaskOverdueSweep marks unpaid invoices past their due date as overdue.
	TaskOverdueSweep = "invoice:overdue_sweep"
)

// RecalculateTotalsPayload identifies the invoice to recalculate.
type RecalculateTotalsPayload struct {
	InvoiceID int64 `json:"invoice_id"`
}

// NewRecalculateTotalsTask constructs an Asynq task for a totals recalculation.
func NewRecalculateTotalsTask(invoiceID int64) (*asynq.Task, error) {
	body, err := json.Marshal(RecalculateTotalsPayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateTotals, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// OverdueSweepPayload carries the reference date of a sweep. A zero AsOf
// means the time the task runs.
type OverdueSweepPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, body, asynq.Queue(QueueDefault)), nil
}

package jobs

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	TaskLedgerIntegrity    = "ledger:integrity"
	TaskStockReconcile     = "stock:reconcile"
	TaskOrderTotals        = "pos:order-totals"
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// TaskTypes lists the maintenance tasks the worker serves.
func TaskTypes() []string {
	return []string{TaskLedgerIntegrity, TaskStockReconcile, TaskOrderTotals, TaskIdempotencyCleanup}
}

// OrderTotalsPayload controls the order-total reconciliation.
type OrderTotalsPayload struct {
	Fix bool `json:"fix"`
}

// CleanupPayload carries the idempotency key retention.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewTask builds a maintenance task. payload may be nil.
func NewTask(taskType string, payload any) (*asynq.Task, error) {
	if !slices.Contains(TaskTypes(), taskType) {
		return nil, fmt.Errorf("jobs: unknown task %q", taskType)
	}
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, err
		}
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func decode(t *asynq.Task, target any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), target); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return nil
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan reports products at or under their reorder level.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// LowStockScanPayload carries scheduling metadata and the trigger source.
type LowStockScanPayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

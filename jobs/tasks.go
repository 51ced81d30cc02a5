package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan is the task type for the periodic overdue loan scan.
	TaskOverdueScan = "borrows:overdue_scan"
)

// OverdueScanPayload tunes one overdue scan. Loans overdue by fewer than
// GraceDays are counted but not reported individually.
type OverdueScanPayload struct {
	GraceDays int `json:"grace_days"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(graceDays int) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{GraceDays: graceDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

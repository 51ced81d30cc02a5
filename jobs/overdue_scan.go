package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/librarydesk/librarydesk/internal/borrows"
	jobmetrics "github.com/librarydesk/librarydesk/internal/jobs"
)

// OverdueSource lists open loans past their due date.
type OverdueSource interface {
	Overdue(ctx context.Context) ([]borrows.Entry, error)
}

// OverdueScanJob reports loans that are past due.
type OverdueScanJob struct {
	Source  OverdueSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(source OverdueSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// ScanResult summarises one scan.
type ScanResult struct {
	Overdue  int
	Reported int
}

// Handle executes the overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.Metrics.Track(TaskOverdueScan)
	_, err := j.Scan(ctx, payload)
	return tracker.End(err)
}

// Scan counts overdue loans and logs each one past the grace period.
func (j *OverdueScanJob) Scan(ctx context.Context, payload OverdueScanPayload) (ScanResult, error) {
	start := time.Now()
	logger := j.logger().With(slog.Int("grace_days", payload.GraceDays))
	logger.Info("starting overdue scan")

	entries, err := j.Source.Overdue(ctx)
	if err != nil {
		logger.Error("overdue scan failed", slog.Any("error", err))
		return ScanResult{}, err
	}
	result := ScanResult{Overdue: len(entries)}
	for _, e := range entries {
		if e.DaysOverdue < payload.GraceDays {
			continue
		}
		result.Reported++
		logger.Warn("loan overdue",
			slog.Int64("borrow_id", e.ID),
			slog.Int64("member_id", e.MemberID),
			slog.String("member", e.MemberName),
			slog.String("book", e.BookTitle),
			slog.Int("days_overdue", e.DaysOverdue),
		)
	}
	j.Metrics.SetOverdue(result.Overdue)
	logger.Info("completed overdue scan",
		slog.Int("overdue", result.Overdue),
		slog.Int("reported", result.Reported),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gantry-erp/gantry/internal/jobs"
)

const (
	// TaskCompletionCheck evaluates one order's completion after a
	// receipt or return write.
	TaskCompletionCheck = "reconcile:completion_check"
	// TaskCompletionSweep re-evaluates every open order.
	TaskCompletionSweep = "reconcile:completion_sweep"
)

// CompletionCheckPayload identifies the order to evaluate.
type CompletionCheckPayload struct {
	OrderID int64 `json:"order_id"`
}

// NewCompletionCheckTask builds a completion-check task.
func NewCompletionCheckTask(orderID int64) (*asynq.Task, error) {
	body, err := json.Marshal(CompletionCheckPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCompletionCheck, body, asynq.Queue(QueueDefault)), nil
}

// NewCompletionSweepTask builds the nightly sweep task.
func NewCompletionSweepTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskCompletionSweep, nil, asynq.Queue(QueueDefault)), nil
}

// CompletionEvaluator is the slice of the reconcile service the jobs need.
type CompletionEvaluator interface {
	EvaluateCompletion(ctx context.Context, orderID int64) (bool, error)
}

// OpenOrderLister supplies the orders the sweep re-checks.
type OpenOrderLister interface {
	ListOpenOrderIDs(ctx context.Context) ([]int64, error)
}

// CompletionJob processes completion-check and sweep tasks. Evaluation
// failures are logged and returned so asynq retries them; they never reach
// the write path that enqueued the check.
type CompletionJob struct {
	evaluator CompletionEvaluator
	orders    OpenOrderLister
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewCompletionJob constructs the job.
func NewCompletionJob(evaluator CompletionEvaluator, orders OpenOrderLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *CompletionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionJob{evaluator: evaluator, orders: orders, logger: logger, metrics: metrics}
}

// HandleCheck processes a single completion check.
func (j *CompletionJob) HandleCheck(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("completion_check")
	var payload CompletionCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	complete, err := j.evaluator.EvaluateCompletion(ctx, payload.OrderID)
	if err != nil {
		j.logger.Error("completion check", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Debug("completion check done", slog.Int64("order_id", payload.OrderID), slog.Bool("complete", complete))
	return tracker.End(nil)
}

// HandleSweep re-checks every open order. Per-order failures are logged
// and do not stop the sweep.
func (j *CompletionJob) HandleSweep(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("completion_sweep")
	if j.orders == nil {
		return tracker.End(nil)
	}
	ids, err := j.orders.ListOpenOrderIDs(ctx)
	if err != nil {
		j.logger.Error("completion sweep list orders", slog.Any("error", err))
		return tracker.End(err)
	}
	for _, id := range ids {
		if _, err := j.evaluator.EvaluateCompletion(ctx, id); err != nil {
			j.logger.Warn("completion sweep order", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}
	return tracker.End(nil)
}

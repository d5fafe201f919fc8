package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	_ "github.com/gantry-erp/gantry/testing"
)

type stubEvaluator struct {
	evaluated []int64
	err       error
}

func (s *stubEvaluator) EvaluateCompletion(ctx context.Context, orderID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.evaluated = append(s.evaluated, orderID)
	return true, nil
}

type stubLister struct {
	ids []int64
	err error
}

func (s *stubLister) ListOpenOrderIDs(ctx context.Context) ([]int64, error) {
	return s.ids, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleCheck(t *testing.T) {
	evaluator := &stubEvaluator{}
	job := NewCompletionJob(evaluator, nil, discardLogger(), nil)

	task, err := NewCompletionCheckTask(42)
	require.NoError(t, err)
	require.NoError(t, job.HandleCheck(context.Background(), task))
	require.Equal(t, []int64{42}, evaluator.evaluated)
}

func TestHandleCheckBadPayloadSkipsRetry(t *testing.T) {
	job := NewCompletionJob(&stubEvaluator{}, nil, discardLogger(), nil)

	task := asynq.NewTask(TaskCompletionCheck, []byte("not json"))
	err := job.HandleCheck(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCheckEvaluationErrorRetries(t *testing.T) {
	evalErr := errors.New("db down")
	job := NewCompletionJob(&stubEvaluator{err: evalErr}, nil, discardLogger(), nil)

	task, err := NewCompletionCheckTask(42)
	require.NoError(t, err)
	require.ErrorIs(t, job.HandleCheck(context.Background(), task), evalErr)
}

func TestHandleSweepContinuesPastFailures(t *testing.T) {
	evaluator := &stubEvaluator{}
	lister := &stubLister{ids: []int64{1, 2, 3}}
	job := NewCompletionJob(evaluator, lister, discardLogger(), nil)

	task, err := NewCompletionSweepTask()
	require.NoError(t, err)
	require.NoError(t, job.HandleSweep(context.Background(), task))
	require.Equal(t, []int64{1, 2, 3}, evaluator.evaluated)
}

func TestHandleSweepListFailure(t *testing.T) {
	listErr := errors.New("db down")
	job := NewCompletionJob(&stubEvaluator{}, &stubLister{err: listErr}, discardLogger(), nil)

	task, err := NewCompletionSweepTask()
	require.NoError(t, err)
	require.ErrorIs(t, job.HandleSweep(context.Background(), task), listErr)
}

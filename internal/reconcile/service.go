package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"golang.org/x/sync/errgroup"

	"github.com/gantry-erp/gantry/internal/observability"
	"github.com/gantry-erp/gantry/internal/shared"
)

// RepositoryPort describes the read operations the engine needs. All reads
// are independent and are issued concurrently by the service.
type RepositoryPort interface {
	GetOrder(ctx context.Context, orderID int64) (OrderMeta, error)
	ListProjectOrders(ctx context.Context, projectID int64) ([]OrderMeta, error)
	ListOrderLines(ctx context.Context, orderIDs []int64) ([]OrderLine, error)
	ListReceiptRows(ctx context.Context, orderIDs []int64) ([]ReceiptRow, error)
	ListReturnRows(ctx context.Context, orderIDs []int64) ([]ReturnRow, error)
	ListVendorNames(ctx context.Context, vendorIDs []int64) (map[int64]string, error)
}

// OrderStatusPort marks an order completed. Implementations must be
// idempotent: marking an already-completed order is a no-op.
type OrderStatusPort interface {
	MarkOrderCompleted(ctx context.Context, orderID int64) error
}

const completionLockTTL = 30 * time.Second

// Service orchestrates reconciliation reports and completion checks.
type Service struct {
	repo        RepositoryPort
	statuses    OrderStatusPort
	locker      *redislock.Client
	cache       *ReportCache
	idempotency *shared.IdempotencyStore
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewService constructs the reconciliation service. Locker, cache,
// idempotency store and metrics are optional.
func NewService(repo RepositoryPort, statuses OrderStatusPort, locker *redislock.Client, cache *ReportCache, idem *shared.IdempotencyStore, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		statuses:    statuses,
		locker:      locker,
		cache:       cache,
		idempotency: idem,
		metrics:     metrics,
		logger:      logger,
	}
}

// GenerateProjectReport reconciles every order under one project.
func (s *Service) GenerateProjectReport(ctx context.Context, projectID int64) (Report, error) {
	if projectID <= 0 {
		return Report{}, fmt.Errorf("%w: project id required", ErrInvalidInput)
	}
	report, err := s.cache.FetchReport(ctx, "project", projectID, func(ctx context.Context) (Report, error) {
		orders, err := s.repo.ListProjectOrders(ctx, projectID)
		if err != nil {
			return Report{}, fmt.Errorf("reconcile: list project orders: %w", err)
		}
		return s.buildReport(ctx, orders)
	})
	if err != nil {
		return Report{}, err
	}
	s.metrics.ReportGenerated("project")
	return report, nil
}

// GenerateOrderReport reconciles a single order.
func (s *Service) GenerateOrderReport(ctx context.Context, orderID int64) (Report, error) {
	if orderID <= 0 {
		return Report{}, fmt.Errorf("%w: order id required", ErrInvalidInput)
	}
	report, err := s.cache.FetchReport(ctx, "order", orderID, func(ctx context.Context) (Report, error) {
		order, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return Report{}, err
		}
		return s.buildReport(ctx, []OrderMeta{order})
	})
	if err != nil {
		return Report{}, err
	}
	s.metrics.ReportGenerated("order")
	return report, nil
}

// buildReport fans the independent reads out, joins, then runs the
// normalize/aggregate/rollup pipeline. A vendor-directory failure degrades
// the vendor labels to blank instead of failing the report.
func (s *Service) buildReport(ctx context.Context, orders []OrderMeta) (Report, error) {
	if len(orders) == 0 {
		return Report{Items: []ItemAggregate{}, Orders: []OrderRollup{}}, nil
	}

	orderIDs := make([]int64, 0, len(orders))
	byOrder := make(map[int64]OrderMeta, len(orders))
	vendorIDs := make([]int64, 0, len(orders))
	seenVendor := make(map[int64]struct{})
	for _, meta := range orders {
		orderIDs = append(orderIDs, meta.OrderID)
		byOrder[meta.OrderID] = meta
		if meta.VendorID != 0 {
			if _, ok := seenVendor[meta.VendorID]; !ok {
				seenVendor[meta.VendorID] = struct{}{}
				vendorIDs = append(vendorIDs, meta.VendorID)
			}
		}
	}

	var (
		lines       []OrderLine
		receiptRows []ReceiptRow
		returnRows  []ReturnRow
		vendors     map[int64]string
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		lines, err = s.repo.ListOrderLines(groupCtx, orderIDs)
		if err != nil {
			return fmt.Errorf("reconcile: list order lines: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		var err error
		receiptRows, err = s.repo.ListReceiptRows(groupCtx, orderIDs)
		if err != nil {
			return fmt.Errorf("reconcile: list receipt rows: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		var err error
		returnRows, err = s.repo.ListReturnRows(groupCtx, orderIDs)
		if err != nil {
			return fmt.Errorf("reconcile: list return rows: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		named, err := s.repo.ListVendorNames(groupCtx, vendorIDs)
		if err != nil {
			s.logger.Warn("vendor directory unavailable, degrading labels", slog.Any("error", err))
			return nil
		}
		vendors = named
		return nil
	})
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	receipts, skippedReceipts := NormalizeReceipts(receiptRows)
	returns, skippedReturns := NormalizeReturns(returnRows)
	s.metrics.RowsSkipped(skippedReceipts + skippedReturns)
	if skipped := skippedReceipts + skippedReturns; skipped > 0 {
		s.logger.Debug("skipped malformed activity rows", slog.Int("count", skipped))
	}
	records := append(receipts, returns...)

	items, dropped := AggregateItems(records, lines, byOrder, vendors)
	s.metrics.RecordsDropped(dropped)
	if dropped > 0 {
		s.logger.Debug("dropped unresolvable activity records", slog.Int("count", dropped))
	}
	rollups := RollupOrders(records, lines, byOrder, vendors)

	return Report{
		Items:  items,
		Orders: rollups,
		Totals: SumTotals(rollups),
	}, nil
}

// EvaluateCompletion reconciles one order's shortfall and, on transition to
// complete, signals the order-status collaborator. Checks for the same
// order are serialized through a redis lock; the status write itself is
// idempotent and best-effort, so a persistence failure is logged and never
// surfaced to the write path that triggered the check.
func (s *Service) EvaluateCompletion(ctx context.Context, orderID int64) (bool, error) {
	if orderID <= 0 {
		return false, fmt.Errorf("%w: order id required", ErrInvalidInput)
	}
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, shared.OrderCompletionLockKey(orderID), completionLockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
		})
		if err != nil {
			return false, fmt.Errorf("reconcile: obtain completion lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				s.logger.Warn("release completion lock", slog.Int64("order_id", orderID), slog.Any("error", err))
			}
		}()
	}

	ids := []int64{orderID}
	var (
		lines       []OrderLine
		receiptRows []ReceiptRow
		returnRows  []ReturnRow
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		lines, err = s.repo.ListOrderLines(groupCtx, ids)
		return err
	})
	group.Go(func() error {
		var err error
		receiptRows, err = s.repo.ListReceiptRows(groupCtx, ids)
		return err
	})
	group.Go(func() error {
		var err error
		returnRows, err = s.repo.ListReturnRows(groupCtx, ids)
		return err
	})
	if err := group.Wait(); err != nil {
		return false, fmt.Errorf("reconcile: fetch completion inputs: %w", err)
	}

	// An order with no lines is vacuously complete but must never be
	// marked completed from here.
	if len(lines) == 0 {
		s.logger.Debug("completion check on order without lines", slog.Int64("order_id", orderID))
		return false, nil
	}

	receipts, skippedReceipts := NormalizeReceipts(receiptRows)
	returns, skippedReturns := NormalizeReturns(returnRows)
	s.metrics.RowsSkipped(skippedReceipts + skippedReturns)
	records := append(receipts, returns...)

	signal := EvaluateOrderCompletion(orderID, lines, records)
	if !signal.Complete {
		s.metrics.CompletionCheck("open")
		return false, nil
	}
	s.metrics.CompletionCheck("complete")
	s.markCompleted(ctx, orderID)
	return true, nil
}

// markCompleted persists the completed status once per order. Failures are
// absorbed here: the triggering receipt or return save must not fail
// because the status write did.
func (s *Service) markCompleted(ctx context.Context, orderID int64) {
	if s.statuses == nil {
		return
	}
	key := fmt.Sprintf("COMPLETE:order:%d", orderID)
	inserted := false
	if s.idempotency != nil {
		err := s.idempotency.CheckAndInsert(ctx, key, "reconcile")
		switch {
		case errors.Is(err, shared.ErrIdempotencyConflict):
			return
		case err != nil:
			s.logger.Warn("completion idempotency check", slog.Int64("order_id", orderID), slog.Any("error", err))
		default:
			inserted = true
		}
	}
	if err := s.statuses.MarkOrderCompleted(ctx, orderID); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		s.logger.Error("mark order completed", slog.Int64("order_id", orderID), slog.Any("error", err))
		return
	}
	s.metrics.CompletionMarked()
	s.logger.Info("order completed", slog.Int64("order_id", orderID))
}

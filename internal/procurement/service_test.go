package procurement

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gantry-erp/gantry/internal/reconcile"
)

type memoryProcRepo struct {
	orders     map[int64]Order
	lines      map[int64][]OrderLine
	receipts   map[int64]ReceiptNote
	returns    map[int64]ReturnNote
	nextID     int64
	nextLineID int64
	nextNoteID int64
}

type memoryProcTx struct {
	repo *memoryProcRepo
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		orders:   make(map[int64]Order),
		lines:    make(map[int64][]OrderLine),
		receipts: make(map[int64]ReceiptNote),
		returns:  make(map[int64]ReturnNote),
	}
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryProcTx{repo: r})
}

func (r *memoryProcRepo) GetOrder(ctx context.Context, id int64) (Order, []OrderLine, error) {
	order, ok := r.orders[id]
	if !ok {
		return Order{}, nil, ErrNotFound
	}
	return order, append([]OrderLine(nil), r.lines[id]...), nil
}

func (r *memoryProcRepo) GetReceiptNote(ctx context.Context, id int64) (ReceiptNote, error) {
	note, ok := r.receipts[id]
	if !ok {
		return ReceiptNote{}, ErrNotFound
	}
	return note, nil
}

func (r *memoryProcRepo) GetReturnNote(ctx context.Context, id int64) (ReturnNote, error) {
	note, ok := r.returns[id]
	if !ok {
		return ReturnNote{}, ErrNotFound
	}
	return note, nil
}

func (r *memoryProcRepo) ListOrders(ctx context.Context, projectID int64, page, perPage int) ([]Order, int, error) {
	var out []Order
	for _, order := range r.orders {
		if projectID != 0 && order.ProjectID != projectID {
			continue
		}
		out = append(out, order)
	}
	return out, len(out), nil
}

func (t *memoryProcTx) CreateOrder(ctx context.Context, order Order) (int64, error) {
	t.repo.nextID++
	order.ID = t.repo.nextID
	t.repo.orders[order.ID] = order
	return order.ID, nil
}

func (t *memoryProcTx) InsertOrderLine(ctx context.Context, line OrderLine) error {
	t.repo.nextLineID++
	line.ID = t.repo.nextLineID
	t.repo.lines[line.OrderID] = append(t.repo.lines[line.OrderID], line)
	return nil
}

func (t *memoryProcTx) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	t.repo.orders[id] = order
	return nil
}

func (t *memoryProcTx) CreateReceiptNote(ctx context.Context, note ReceiptNote) (int64, error) {
	t.repo.nextNoteID++
	note.ID = t.repo.nextNoteID
	t.repo.receipts[note.ID] = note
	return note.ID, nil
}

func (t *memoryProcTx) InsertReceiptItem(ctx context.Context, item ReceiptItem) error {
	return nil
}

func (t *memoryProcTx) UpdateReceiptNoteStatus(ctx context.Context, id int64, status ReceiptStatus) error {
	note, ok := t.repo.receipts[id]
	if !ok {
		return ErrNotFound
	}
	note.Status = status
	t.repo.receipts[id] = note
	return nil
}

func (t *memoryProcTx) DeactivateReceiptNote(ctx context.Context, id int64) error {
	note, ok := t.repo.receipts[id]
	if !ok {
		return ErrNotFound
	}
	note.IsActive = false
	t.repo.receipts[id] = note
	return nil
}

func (t *memoryProcTx) CreateReturnNote(ctx context.Context, note ReturnNote) (int64, error) {
	t.repo.nextNoteID++
	note.ID = t.repo.nextNoteID
	t.repo.returns[note.ID] = note
	return note.ID, nil
}

func (t *memoryProcTx) InsertReturnItem(ctx context.Context, item ReturnItem) error {
	return nil
}

func (t *memoryProcTx) UpdateReturnNoteStatus(ctx context.Context, id int64, status ReturnStatus) error {
	note, ok := t.repo.returns[id]
	if !ok {
		return ErrNotFound
	}
	note.Status = status
	t.repo.returns[id] = note
	return nil
}

func (t *memoryProcTx) DeactivateReturnNote(ctx context.Context, id int64) error {
	note, ok := t.repo.returns[id]
	if !ok {
		return ErrNotFound
	}
	note.IsActive = false
	t.repo.returns[id] = note
	return nil
}

type stubEnqueuer struct {
	orderIDs []int64
}

func (s *stubEnqueuer) EnqueueCompletionCheck(ctx context.Context, orderID int64) error {
	s.orderIDs = append(s.orderIDs, orderID)
	return nil
}

type stubBumper struct {
	bumps int
}

func (s *stubBumper) Bump(ctx context.Context) error {
	s.bumps++
	return nil
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testService(repo RepositoryPort, queue CompletionEnqueuer, reports ReportBumper) *Service {
	return NewService(repo, queue, reports, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedApprovedOrder(t *testing.T, repo *memoryProcRepo) (Order, OrderLine) {
	t.Helper()
	repo.nextID++
	order := Order{ID: repo.nextID, ProjectID: 1, Number: "PO-seed", Kind: reconcile.OrderKindPurchase, Status: OrderStatusApproved}
	repo.orders[order.ID] = order
	repo.nextLineID++
	line := OrderLine{ID: repo.nextLineID, OrderID: order.ID, CatalogItemID: 100, DisplayName: "Rebar", OrderedQty: qty("10"), UnitPrice: qty("12")}
	repo.lines[order.ID] = []OrderLine{line}
	return order, line
}

func TestCreateOrder(t *testing.T) {
	repo := newMemoryProcRepo()
	bumper := &stubBumper{}
	svc := testService(repo, nil, bumper)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProjectID: 1,
		Kind:      reconcile.OrderKindPurchase,
		Lines: []OrderLineInput{
			{CatalogItemID: 100, DisplayName: "Rebar", OrderedQty: qty("10"), UnitPrice: qty("12")},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	require.Equal(t, OrderStatusDraft, order.Status)
	require.Contains(t, order.Number, "PO-")
	require.Len(t, repo.lines[order.ID], 1)
	require.Equal(t, 1, bumper.bumps)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := testService(newMemoryProcRepo(), nil, nil)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{Kind: reconcile.OrderKindPurchase})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		ProjectID: 1,
		Kind:      reconcile.OrderKindPurchase,
		Lines: []OrderLineInput{
			{DisplayName: "Rebar", OrderedQty: qty("0"), UnitPrice: qty("12")},
		},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestApproveOrder(t *testing.T) {
	repo := newMemoryProcRepo()
	svc := testService(repo, nil, nil)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProjectID: 1,
		Kind:      reconcile.OrderKindChange,
		Lines:     []OrderLineInput{{DisplayName: "Extra rebar", OrderedQty: qty("5"), UnitPrice: qty("12")}},
	})
	require.NoError(t, err)
	require.Contains(t, order.Number, "CO-")

	require.NoError(t, svc.ApproveOrder(context.Background(), order.ID))
	require.Equal(t, OrderStatusApproved, repo.orders[order.ID].Status)

	// Re-approval violates the workflow.
	require.ErrorIs(t, svc.ApproveOrder(context.Background(), order.ID), ErrInvalidState)
}

func TestCreateReceiptNoteEnqueuesCompletionCheck(t *testing.T) {
	repo := newMemoryProcRepo()
	order, line := seedApprovedOrder(t, repo)
	queue := &stubEnqueuer{}
	bumper := &stubBumper{}
	svc := testService(repo, queue, bumper)

	note, err := svc.CreateReceiptNote(context.Background(), CreateReceiptNoteInput{
		OrderID: order.ID,
		Status:  ReceiptStatusReceived,
		Items:   []ReceiptItemInput{{OrderLineID: line.ID, Quantity: qty("5"), Amount: qty("60")}},
	})
	require.NoError(t, err)
	require.True(t, note.IsActive)
	require.Equal(t, []int64{order.ID}, queue.orderIDs)
	require.Equal(t, 1, bumper.bumps)
}

func TestCreateReceiptNoteRejectsForeignLine(t *testing.T) {
	repo := newMemoryProcRepo()
	order, _ := seedApprovedOrder(t, repo)
	svc := testService(repo, nil, nil)

	_, err := svc.CreateReceiptNote(context.Background(), CreateReceiptNoteInput{
		OrderID: order.ID,
		Status:  ReceiptStatusReceived,
		Items:   []ReceiptItemInput{{OrderLineID: 999, Quantity: qty("5")}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateReceiptNoteRejectsCancelledOrder(t *testing.T) {
	repo := newMemoryProcRepo()
	order, line := seedApprovedOrder(t, repo)
	order.Status = OrderStatusCancelled
	repo.orders[order.ID] = order
	svc := testService(repo, nil, nil)

	_, err := svc.CreateReceiptNote(context.Background(), CreateReceiptNoteInput{
		OrderID: order.ID,
		Status:  ReceiptStatusShipment,
		Items:   []ReceiptItemInput{{OrderLineID: line.ID, Quantity: qty("5")}},
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateReceiptNoteStatus(t *testing.T) {
	repo := newMemoryProcRepo()
	order, line := seedApprovedOrder(t, repo)
	queue := &stubEnqueuer{}
	svc := testService(repo, queue, nil)

	note, err := svc.CreateReceiptNote(context.Background(), CreateReceiptNoteInput{
		OrderID: order.ID,
		Status:  ReceiptStatusShipment,
		Items:   []ReceiptItemInput{{OrderLineID: line.ID, Quantity: qty("5")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateReceiptNoteStatus(context.Background(), note.ID, ReceiptStatusReceived))
	require.Equal(t, ReceiptStatusReceived, repo.receipts[note.ID].Status)

	// Received never reverts to shipment.
	err = svc.UpdateReceiptNoteStatus(context.Background(), note.ID, ReceiptStatusShipment)
	require.ErrorIs(t, err, ErrInvalidState)

	require.Equal(t, []int64{order.ID, order.ID}, queue.orderIDs)
}

func TestSoftDeleteReceiptNote(t *testing.T) {
	repo := newMemoryProcRepo()
	order, line := seedApprovedOrder(t, repo)
	svc := testService(repo, nil, nil)

	note, err := svc.CreateReceiptNote(context.Background(), CreateReceiptNoteInput{
		OrderID: order.ID,
		Status:  ReceiptStatusReceived,
		Items:   []ReceiptItemInput{{OrderLineID: line.ID, Quantity: qty("5")}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDeleteReceiptNote(context.Background(), note.ID))
	require.False(t, repo.receipts[note.ID].IsActive)

	// Status changes on a deactivated note are refused.
	err = svc.UpdateReceiptNoteStatus(context.Background(), note.ID, ReceiptStatusReceived)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCreateReturnNote(t *testing.T) {
	repo := newMemoryProcRepo()
	order, line := seedApprovedOrder(t, repo)
	queue := &stubEnqueuer{}
	svc := testService(repo, queue, nil)

	note, err := svc.CreateReturnNote(context.Background(), CreateReturnNoteInput{
		OrderID: order.ID,
		Status:  ReturnStatusWaiting,
		Items:   []ReturnItemInput{{OrderLineID: line.ID, Quantity: qty("2")}},
	})
	require.NoError(t, err)
	require.True(t, note.IsActive)
	require.Contains(t, note.Number, "RT-")
	require.Equal(t, []int64{order.ID}, queue.orderIDs)

	require.NoError(t, svc.UpdateReturnNoteStatus(context.Background(), note.ID, ReturnStatusReturned))
	require.Equal(t, ReturnStatusReturned, repo.returns[note.ID].Status)

	require.NoError(t, svc.SoftDeleteReturnNote(context.Background(), note.ID))
	require.False(t, repo.returns[note.ID].IsActive)
}

func TestListOrders(t *testing.T) {
	repo := newMemoryProcRepo()
	seedApprovedOrder(t, repo)
	svc := testService(repo, nil, nil)

	orders, meta, err := svc.ListOrders(context.Background(), 1, 1, 20)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, 1, meta.Total)

	orders, _, err = svc.ListOrders(context.Background(), 999, 1, 20)
	require.NoError(t, err)
	require.Empty(t, orders)
}

package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gantry-erp/gantry/internal/reconcile"
	"github.com/gantry-erp/gantry/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, []OrderLine, error)
	GetReceiptNote(ctx context.Context, id int64) (ReceiptNote, error)
	GetReturnNote(ctx context.Context, id int64) (ReturnNote, error)
	ListOrders(ctx context.Context, projectID int64, page, perPage int) ([]Order, int, error)
}

// CompletionEnqueuer hands a completion check to the background queue.
type CompletionEnqueuer interface {
	EnqueueCompletionCheck(ctx context.Context, orderID int64) error
}

// ReportBumper invalidates cached reconciliation reports.
type ReportBumper interface {
	Bump(ctx context.Context) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates procurement writes. Every receipt or return write
// bumps the report cache and enqueues a completion check; both are
// best-effort and never fail the write itself.
type Service struct {
	repo     RepositoryPort
	queue    CompletionEnqueuer
	reports  ReportBumper
	audit    AuditPort
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, queue CompletionEnqueuer, reports ReportBumper, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		queue:    queue,
		reports:  reports,
		audit:    audit,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// CreateOrderInput describes an order creation payload.
type CreateOrderInput struct {
	ProjectID int64               `validate:"required,gt=0"`
	Kind      reconcile.OrderKind `validate:"required,oneof=PURCHASE_ORDER CHANGE_ORDER"`
	VendorID  int64               `validate:"gte=0"`
	OrderDate time.Time
	Note      string
	Lines     []OrderLineInput `validate:"required,min=1,dive"`
}

// OrderLineInput describes one order line.
type OrderLineInput struct {
	CatalogItemID int64  `validate:"gte=0"`
	DisplayName   string `validate:"required"`
	OrderedQty    decimal.Decimal
	UnitPrice     decimal.Decimal
	CostCodeID    int64 `validate:"gte=0"`
}

// ReceiptItemInput describes one receipt-note line.
type ReceiptItemInput struct {
	OrderLineID int64 `validate:"required,gt=0"`
	Quantity    decimal.Decimal
	Amount      decimal.Decimal
}

// CreateReceiptNoteInput describes a receipt-note payload.
type CreateReceiptNoteInput struct {
	OrderID    int64         `validate:"required,gt=0"`
	Status     ReceiptStatus `validate:"required,oneof=SHIPMENT RECEIVED"`
	ReceivedAt time.Time
	Note       string
	Items      []ReceiptItemInput `validate:"required,min=1,dive"`
}

// ReturnItemInput describes one return-note line.
type ReturnItemInput struct {
	OrderLineID int64 `validate:"required,gt=0"`
	Quantity    decimal.Decimal
}

// CreateReturnNoteInput describes a return-note payload.
type CreateReturnNoteInput struct {
	OrderID    int64        `validate:"required,gt=0"`
	Status     ReturnStatus `validate:"required,oneof=WAITING RETURNED CANCELLED"`
	ReturnedAt time.Time
	Note       string
	Items      []ReturnItemInput `validate:"required,min=1,dive"`
}

// CreateOrder persists an order header and its lines.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if err := s.validate.Struct(input); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, line := range input.Lines {
		if !line.OrderedQty.IsPositive() || line.UnitPrice.IsNegative() {
			return Order{}, ErrValidation
		}
	}
	order := Order{
		ProjectID: input.ProjectID,
		Number:    generateNumber(numberPrefix(input.Kind)),
		Kind:      input.Kind,
		VendorID:  input.VendorID,
		OrderDate: defaultTime(input.OrderDate),
		Status:    OrderStatusDraft,
		Note:      input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, line := range input.Lines {
			if err := tx.InsertOrderLine(ctx, OrderLine{
				OrderID:       orderID,
				CatalogItemID: line.CatalogItemID,
				DisplayName:   line.DisplayName,
				OrderedQty:    line.OrderedQty,
				UnitPrice:     line.UnitPrice,
				CostCodeID:    line.CostCodeID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "ORDER_CREATE", order.ID, map[string]any{"number": order.Number, "kind": order.Kind})
	s.bumpReports(ctx)
	return order, nil
}

// ApproveOrder transitions an order from draft to approved.
func (s *Service) ApproveOrder(ctx context.Context, orderID int64) error {
	order, _, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusDraft {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, orderID, OrderStatusApproved)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "ORDER_APPROVE", orderID, map[string]any{"number": order.Number})
	return nil
}

// CreateReceiptNote inserts a receipt note and its items, then schedules a
// completion check for the order.
func (s *Service) CreateReceiptNote(ctx context.Context, input CreateReceiptNoteInput) (ReceiptNote, error) {
	if err := s.validate.Struct(input); err != nil {
		return ReceiptNote{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	order, lines, err := s.repo.GetOrder(ctx, input.OrderID)
	if err != nil {
		return ReceiptNote{}, err
	}
	if order.Status == OrderStatusCancelled {
		return ReceiptNote{}, ErrInvalidState
	}
	lineIDs := lineIndex(lines)
	for _, item := range input.Items {
		if !item.Quantity.IsPositive() || item.Amount.IsNegative() {
			return ReceiptNote{}, ErrValidation
		}
		if _, ok := lineIDs[item.OrderLineID]; !ok {
			return ReceiptNote{}, fmt.Errorf("%w: line %d does not belong to order %d", ErrValidation, item.OrderLineID, input.OrderID)
		}
	}
	note := ReceiptNote{
		OrderID:    input.OrderID,
		Number:     generateNumber("RN"),
		Status:     input.Status,
		IsActive:   true,
		ReceivedAt: defaultTime(input.ReceivedAt),
		Note:       input.Note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		noteID, err := tx.CreateReceiptNote(ctx, note)
		if err != nil {
			return err
		}
		note.ID = noteID
		for _, item := range input.Items {
			if err := tx.InsertReceiptItem(ctx, ReceiptItem{
				NoteID:      noteID,
				OrderLineID: item.OrderLineID,
				Quantity:    item.Quantity,
				Amount:      item.Amount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReceiptNote{}, err
	}
	s.recordAudit(ctx, "RECEIPT_NOTE_CREATE", note.ID, map[string]any{"number": note.Number, "order_id": note.OrderID})
	s.afterActivityWrite(ctx, note.OrderID)
	return note, nil
}

// UpdateReceiptNoteStatus moves a shipment note to received.
func (s *Service) UpdateReceiptNoteStatus(ctx context.Context, noteID int64, status ReceiptStatus) error {
	note, err := s.repo.GetReceiptNote(ctx, noteID)
	if err != nil {
		return err
	}
	if !note.IsActive {
		return ErrInvalidState
	}
	if note.Status == ReceiptStatusReceived && status == ReceiptStatusShipment {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateReceiptNoteStatus(ctx, noteID, status)
	})
	if err != nil {
		return err
	}
	s.afterActivityWrite(ctx, note.OrderID)
	return nil
}

// SoftDeleteReceiptNote deactivates a note; its items are excluded from
// reconciliation from then on.
func (s *Service) SoftDeleteReceiptNote(ctx context.Context, noteID int64) error {
	note, err := s.repo.GetReceiptNote(ctx, noteID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeactivateReceiptNote(ctx, noteID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RECEIPT_NOTE_DELETE", noteID, map[string]any{"number": note.Number})
	s.afterActivityWrite(ctx, note.OrderID)
	return nil
}

// CreateReturnNote inserts a return note and its items, then schedules a
// completion check for the order.
func (s *Service) CreateReturnNote(ctx context.Context, input CreateReturnNoteInput) (ReturnNote, error) {
	if err := s.validate.Struct(input); err != nil {
		return ReturnNote{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	order, lines, err := s.repo.GetOrder(ctx, input.OrderID)
	if err != nil {
		return ReturnNote{}, err
	}
	if order.Status == OrderStatusCancelled {
		return ReturnNote{}, ErrInvalidState
	}
	lineIDs := lineIndex(lines)
	for _, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return ReturnNote{}, ErrValidation
		}
		if _, ok := lineIDs[item.OrderLineID]; !ok {
			return ReturnNote{}, fmt.Errorf("%w: line %d does not belong to order %d", ErrValidation, item.OrderLineID, input.OrderID)
		}
	}
	note := ReturnNote{
		OrderID:    input.OrderID,
		Number:     generateNumber("RT"),
		Status:     input.Status,
		IsActive:   true,
		ReturnedAt: defaultTime(input.ReturnedAt),
		Note:       input.Note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		noteID, err := tx.CreateReturnNote(ctx, note)
		if err != nil {
			return err
		}
		note.ID = noteID
		for _, item := range input.Items {
			if err := tx.InsertReturnItem(ctx, ReturnItem{
				NoteID:      noteID,
				OrderLineID: item.OrderLineID,
				Quantity:    item.Quantity,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReturnNote{}, err
	}
	s.recordAudit(ctx, "RETURN_NOTE_CREATE", note.ID, map[string]any{"number": note.Number, "order_id": note.OrderID})
	s.afterActivityWrite(ctx, note.OrderID)
	return note, nil
}

// UpdateReturnNoteStatus records the return document's own progress.
func (s *Service) UpdateReturnNoteStatus(ctx context.Context, noteID int64, status ReturnStatus) error {
	note, err := s.repo.GetReturnNote(ctx, noteID)
	if err != nil {
		return err
	}
	if !note.IsActive {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateReturnNoteStatus(ctx, noteID, status)
	})
	if err != nil {
		return err
	}
	s.afterActivityWrite(ctx, note.OrderID)
	return nil
}

// SoftDeleteReturnNote deactivates a return note.
func (s *Service) SoftDeleteReturnNote(ctx context.Context, noteID int64) error {
	note, err := s.repo.GetReturnNote(ctx, noteID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeactivateReturnNote(ctx, noteID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RETURN_NOTE_DELETE", noteID, map[string]any{"number": note.Number})
	s.afterActivityWrite(ctx, note.OrderID)
	return nil
}

// ListOrders returns a page of orders with pagination metadata.
func (s *Service) ListOrders(ctx context.Context, projectID int64, page, perPage int) ([]Order, shared.Pagination, error) {
	meta := shared.NewPagination(page, perPage, 0)
	orders, total, err := s.repo.ListOrders(ctx, projectID, meta.Page, meta.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(meta.Page, meta.PerPage, total), nil
}

// afterActivityWrite invalidates cached reports and hands a completion
// check to the queue. Both are fire-and-forget relative to the write that
// just committed.
func (s *Service) afterActivityWrite(ctx context.Context, orderID int64) {
	s.bumpReports(ctx)
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueCompletionCheck(ctx, orderID); err != nil {
		s.logger.Error("enqueue completion check", slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

func (s *Service) bumpReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.Bump(ctx); err != nil {
		s.logger.Warn("bump report cache", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "procurement", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func lineIndex(lines []OrderLine) map[int64]struct{} {
	index := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		index[line.ID] = struct{}{}
	}
	return index
}

func numberPrefix(kind reconcile.OrderKind) string {
	if kind == reconcile.OrderKindChange {
		return "CO"
	}
	return "PO"
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}

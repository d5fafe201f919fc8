// Package procurement owns the write path surrounding the reconciliation
// engine: purchase and change orders, receipt notes and return notes.
package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gantry-erp/gantry/internal/reconcile"
)

// Order lifecycle statuses.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Receipt-note statuses. A shipment-status note tracks quantities in
// transit; only a received-status note counts toward on-hand stock.
type ReceiptStatus string

const (
	ReceiptStatusShipment ReceiptStatus = reconcile.ReceiptStatusShipment
	ReceiptStatusReceived ReceiptStatus = reconcile.ReceiptStatusReceived
)

// Return-note statuses.
type ReturnStatus string

const (
	ReturnStatusWaiting   ReturnStatus = reconcile.ReturnStatusWaiting
	ReturnStatusReturned  ReturnStatus = reconcile.ReturnStatusReturned
	ReturnStatusCancelled ReturnStatus = reconcile.ReturnStatusCancelled
)

// Order is a purchase or change order header.
type Order struct {
	ID        int64
	ProjectID int64
	Number    string
	Kind      reconcile.OrderKind
	VendorID  int64
	OrderDate time.Time
	Status    OrderStatus
	Note      string
}

// OrderLine is one row on an order. CatalogItemID zero means the line has
// no reusable catalog identity.
type OrderLine struct {
	ID            int64
	OrderID       int64
	CatalogItemID int64
	DisplayName   string
	OrderedQty    decimal.Decimal
	UnitPrice     decimal.Decimal
	CostCodeID    int64
}

// ReceiptNote is a receipt document against one order. Soft deleting a
// note flips IsActive; its items stay in place and are excluded from
// reconciliation, not deleted.
type ReceiptNote struct {
	ID         int64
	OrderID    int64
	Number     string
	Status     ReceiptStatus
	IsActive   bool
	ReceivedAt time.Time
	Note       string
}

// ReceiptItem is one receipt-note line against one order line.
type ReceiptItem struct {
	ID          int64
	NoteID      int64
	OrderLineID int64
	Quantity    decimal.Decimal
	Amount      decimal.Decimal
}

// ReturnNote is a return document against one order.
type ReturnNote struct {
	ID         int64
	OrderID    int64
	Number     string
	Status     ReturnStatus
	IsActive   bool
	ReturnedAt time.Time
	Note       string
}

// ReturnItem is one return-note line. Returns carry no settled amount.
type ReturnItem struct {
	ID          int64
	NoteID      int64
	OrderLineID int64
	Quantity    decimal.Decimal
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("procurement: invalid state transition")
)

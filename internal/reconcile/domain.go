// Package reconcile computes stock reconciliation for purchase and change
// orders: how much was ordered, shipped, received, returned and outstanding,
// a cost-weighted unit price, and a derived completion state.
package reconcile

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind distinguishes purchase orders from change orders.
type OrderKind string

const (
	OrderKindPurchase OrderKind = "PURCHASE_ORDER"
	OrderKindChange   OrderKind = "CHANGE_ORDER"
)

// ActivityKind classifies one ledger entry against an order line.
type ActivityKind string

const (
	ActivityShipment        ActivityKind = "SHIPMENT"
	ActivityReceived        ActivityKind = "RECEIVED"
	ActivityReturnWaiting   ActivityKind = "RETURN_WAITING"
	ActivityReturnReturned  ActivityKind = "RETURN_RETURNED"
	ActivityReturnCancelled ActivityKind = "RETURN_CANCELLED"
)

// IsReturn reports whether the kind is any of the return sub-statuses.
func (k ActivityKind) IsReturn() bool {
	switch k {
	case ActivityReturnWaiting, ActivityReturnReturned, ActivityReturnCancelled:
		return true
	}
	return false
}

// VendorLabelMultiple is rendered when more than one distinct vendor
// contributed to an aggregate.
const VendorLabelMultiple = "Multiple"

// OrderLine is a line item on a purchase or change order.
// CatalogItemID is the identity of the underlying reusable item and may
// repeat across lines and orders; zero means the line has no catalog item
// and is excluded from item aggregation.
type OrderLine struct {
	LineID        int64
	OrderID       int64
	Kind          OrderKind
	CatalogItemID int64
	DisplayName   string
	OrderedQty    decimal.Decimal
	UnitPrice     decimal.Decimal
	CostCodeID    int64
}

// ActivityRecord is one normalized receipt or return transaction against
// exactly one order line. Quantity is always positive; direction is implied
// by Kind. Amount is set for receipts only.
type ActivityRecord struct {
	RecordID  int64
	LineID    int64
	Kind      ActivityKind
	Quantity  decimal.Decimal
	Amount    decimal.Decimal
	Timestamp time.Time
}

// OrderMeta carries identifying metadata of one order within a report scope.
type OrderMeta struct {
	OrderID   int64
	Number    string
	Kind      OrderKind
	OrderDate time.Time
	VendorID  int64
}

// ItemAggregate is the reconciled view of one catalog item within a report
// scope. Derived, never persisted.
type ItemAggregate struct {
	CatalogItemID    int64           `json:"catalog_item_id"`
	DisplayName      string          `json:"display_name"`
	ReceivedQty      decimal.Decimal `json:"received_qty"`
	ShipmentQty      decimal.Decimal `json:"shipment_qty"`
	ReturnedQty      decimal.Decimal `json:"returned_qty"`
	TotalValue       decimal.Decimal `json:"total_value"`
	WeightedUnitCost decimal.Decimal `json:"weighted_unit_cost"`
	VendorLabel      string          `json:"vendor_label,omitempty"`
}

// OrderRollup sums the item aggregates belonging to one order.
type OrderRollup struct {
	OrderID     int64           `json:"order_id"`
	Number      string          `json:"number"`
	Kind        OrderKind       `json:"kind"`
	OrderDate   time.Time       `json:"order_date"`
	VendorLabel string          `json:"vendor_label,omitempty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	ShipmentQty decimal.Decimal `json:"shipment_qty"`
	ReturnedQty decimal.Decimal `json:"returned_qty"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// ReportTotals is the grand total across every order in a report.
type ReportTotals struct {
	ReceivedQty decimal.Decimal `json:"received_qty"`
	ShipmentQty decimal.Decimal `json:"shipment_qty"`
	ReturnedQty decimal.Decimal `json:"returned_qty"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// Report is the read-only reconciliation view for one scope.
type Report struct {
	Items  []ItemAggregate `json:"items"`
	Orders []OrderRollup   `json:"orders"`
	Totals ReportTotals    `json:"totals"`
}

// CompletionSignal is the outcome of evaluating one order's shortfall.
type CompletionSignal struct {
	OrderID  int64
	Complete bool
}

var (
	// ErrNotFound indicates the requested scope does not exist.
	ErrNotFound = errors.New("reconcile: not found")
	// ErrInvalidInput indicates a missing or malformed scope identifier.
	ErrInvalidInput = errors.New("reconcile: invalid input")
)

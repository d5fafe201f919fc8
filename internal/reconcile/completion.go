package reconcile

import "github.com/shopspring/decimal"

// EvaluateOrderCompletion decides whether one order's ordered quantities are
// fully satisfied. Both lines and records must be scoped to that single
// order: an item ordered on two orders is judged independently per order.
//
// For each line the shortfall is ordered minus received minus returned,
// where received and returned are summed per catalog item within the order.
// Lines without a catalog item fall back to their own line-level sums. An
// order with zero lines is vacuously complete; callers that do not want to
// fire completion on empty orders must guard for that themselves.
func EvaluateOrderCompletion(orderID int64, lines []OrderLine, records []ActivityRecord) CompletionSignal {
	byLine := make(map[int64]OrderLine, len(lines))
	for _, line := range lines {
		byLine[line.LineID] = line
	}

	byItem := make(map[int64]decimal.Decimal)
	perLine := make(map[int64]decimal.Decimal)
	for _, rec := range records {
		if rec.Kind != ActivityReceived && !rec.Kind.IsReturn() {
			continue
		}
		line, ok := byLine[rec.LineID]
		if !ok {
			continue
		}
		if line.CatalogItemID != 0 {
			byItem[line.CatalogItemID] = byItem[line.CatalogItemID].Add(rec.Quantity)
		} else {
			perLine[rec.LineID] = perLine[rec.LineID].Add(rec.Quantity)
		}
	}

	for _, line := range lines {
		satisfied := perLine[line.LineID]
		if line.CatalogItemID != 0 {
			satisfied = byItem[line.CatalogItemID]
		}
		if line.OrderedQty.Sub(satisfied).IsPositive() {
			return CompletionSignal{OrderID: orderID, Complete: false}
		}
	}
	return CompletionSignal{OrderID: orderID, Complete: true}
}

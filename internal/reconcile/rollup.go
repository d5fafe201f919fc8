package reconcile

import "sort"

// RollupOrders sums reconciled quantities per parent order. Every order in
// scope gets a row, all-zero when nothing was received or returned against
// it. The same line-resolution rules as item aggregation apply, so order
// totals always match the sum of the order's item aggregates.
func RollupOrders(records []ActivityRecord, lines []OrderLine, orders map[int64]OrderMeta, vendors map[int64]string) []OrderRollup {
	byLine := make(map[int64]OrderLine, len(lines))
	for _, line := range lines {
		byLine[line.LineID] = line
	}

	rollups := make(map[int64]*OrderRollup, len(orders))
	for id, meta := range orders {
		vendorIDs := map[int64]struct{}{}
		if meta.VendorID != 0 {
			vendorIDs[meta.VendorID] = struct{}{}
		}
		rollups[id] = &OrderRollup{
			OrderID:     meta.OrderID,
			Number:      meta.Number,
			Kind:        meta.Kind,
			OrderDate:   meta.OrderDate,
			VendorLabel: ResolveVendorLabel(vendorIDs, vendors),
		}
	}

	for _, rec := range records {
		line, ok := byLine[rec.LineID]
		if !ok || line.CatalogItemID == 0 {
			continue
		}
		rollup, ok := rollups[line.OrderID]
		if !ok {
			continue
		}
		switch {
		case rec.Kind == ActivityReceived:
			rollup.ReceivedQty = rollup.ReceivedQty.Add(rec.Quantity)
			rollup.TotalValue = rollup.TotalValue.Add(rec.Amount)
		case rec.Kind == ActivityShipment:
			rollup.ShipmentQty = rollup.ShipmentQty.Add(rec.Quantity)
		case rec.Kind.IsReturn():
			rollup.ReturnedQty = rollup.ReturnedQty.Add(rec.Quantity)
		}
	}

	out := make([]OrderRollup, 0, len(rollups))
	for _, rollup := range rollups {
		out = append(out, *rollup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

// SumTotals adds order rollups into the report grand total. An empty slice
// yields all-zero totals.
func SumTotals(rollups []OrderRollup) ReportTotals {
	var totals ReportTotals
	for _, rollup := range rollups {
		totals.ReceivedQty = totals.ReceivedQty.Add(rollup.ReceivedQty)
		totals.ShipmentQty = totals.ShipmentQty.Add(rollup.ShipmentQty)
		totals.ReturnedQty = totals.ReturnedQty.Add(rollup.ReturnedQty)
		totals.TotalValue = totals.TotalValue.Add(rollup.TotalValue)
	}
	return totals
}

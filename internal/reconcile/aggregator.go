package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"
)

// itemBucket accumulates one catalog item's totals during aggregation.
type itemBucket struct {
	agg       ItemAggregate
	fallback  decimal.Decimal
	vendorIDs map[int64]struct{}
}

// AggregateItems groups activity records by catalog item and produces the
// reconciled per-item totals. Records whose line cannot be resolved and
// lines without a catalog item are dropped; the second return value counts
// dropped records.
//
// Orders and vendors feed vendor resolution: the distinct vendors of every
// order that contributed at least one record decide the vendor label.
func AggregateItems(records []ActivityRecord, lines []OrderLine, orders map[int64]OrderMeta, vendors map[int64]string) ([]ItemAggregate, int) {
	byLine := make(map[int64]OrderLine, len(lines))
	for _, line := range lines {
		byLine[line.LineID] = line
	}

	buckets := make(map[int64]*itemBucket)
	dropped := 0
	for _, rec := range records {
		line, ok := byLine[rec.LineID]
		if !ok {
			dropped++
			continue
		}
		if line.CatalogItemID == 0 {
			dropped++
			continue
		}
		bucket, ok := buckets[line.CatalogItemID]
		if !ok {
			bucket = &itemBucket{
				agg:       ItemAggregate{CatalogItemID: line.CatalogItemID},
				vendorIDs: make(map[int64]struct{}),
			}
			buckets[line.CatalogItemID] = bucket
		}
		bucket.agg.DisplayName = line.DisplayName
		bucket.fallback = line.UnitPrice

		switch {
		case rec.Kind == ActivityReceived:
			bucket.agg.ReceivedQty = bucket.agg.ReceivedQty.Add(rec.Quantity)
			bucket.agg.TotalValue = bucket.agg.TotalValue.Add(rec.Amount)
		case rec.Kind == ActivityShipment:
			bucket.agg.ShipmentQty = bucket.agg.ShipmentQty.Add(rec.Quantity)
		case rec.Kind.IsReturn():
			bucket.agg.ReturnedQty = bucket.agg.ReturnedQty.Add(rec.Quantity)
		}

		if meta, ok := orders[line.OrderID]; ok && meta.VendorID != 0 {
			bucket.vendorIDs[meta.VendorID] = struct{}{}
		}
	}

	items := make([]ItemAggregate, 0, len(buckets))
	for _, bucket := range buckets {
		agg := bucket.agg
		if agg.ReceivedQty.IsPositive() {
			agg.WeightedUnitCost = agg.TotalValue.Div(agg.ReceivedQty)
		} else {
			agg.WeightedUnitCost = bucket.fallback
		}
		agg.VendorLabel = ResolveVendorLabel(bucket.vendorIDs, vendors)
		items = append(items, agg)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CatalogItemID < items[j].CatalogItemID
	})
	return items, dropped
}

// ResolveVendorLabel dedups the contributing vendors into a display label:
// none resolves to empty, exactly one to that vendor's name, two or more to
// "Multiple". An unknown vendor id still counts as a distinct contributor.
func ResolveVendorLabel(vendorIDs map[int64]struct{}, names map[int64]string) string {
	switch len(vendorIDs) {
	case 0:
		return ""
	case 1:
		for id := range vendorIDs {
			return names[id]
		}
	}
	return VendorLabelMultiple
}

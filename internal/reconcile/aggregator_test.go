package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateItemsWeightedUnitCost(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100, DisplayName: "Rebar", UnitPrice: dec("12")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("5"), Amount: dec("50")},
		{RecordID: 2, LineID: 10, Kind: ActivityReceived, Quantity: dec("3"), Amount: dec("45")},
	}

	items, dropped := AggregateItems(records, lines, nil, nil)
	require.Zero(t, dropped)
	require.Len(t, items, 1)
	require.Equal(t, "8", items[0].ReceivedQty.String())
	require.Equal(t, "95", items[0].TotalValue.String())
	require.True(t, items[0].WeightedUnitCost.Equal(dec("11.875")), "got %s", items[0].WeightedUnitCost)
}

func TestAggregateItemsFallsBackToLineUnitPrice(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100, DisplayName: "Cement", UnitPrice: dec("7.5")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityShipment, Quantity: dec("10")},
	}

	items, dropped := AggregateItems(records, lines, nil, nil)
	require.Zero(t, dropped)
	require.Len(t, items, 1)
	require.True(t, items[0].ReceivedQty.IsZero())
	require.Equal(t, "10", items[0].ShipmentQty.String())
	require.True(t, items[0].WeightedUnitCost.Equal(dec("7.5")))
}

func TestAggregateItemsShipmentDoesNotCountAsReceived(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityShipment, Quantity: dec("10")},
		{RecordID: 2, LineID: 10, Kind: ActivityReceived, Quantity: dec("5"), Amount: dec("20")},
	}

	items, _ := AggregateItems(records, lines, nil, nil)
	require.Len(t, items, 1)
	require.Equal(t, "5", items[0].ReceivedQty.String())
	require.Equal(t, "10", items[0].ShipmentQty.String())
	require.Equal(t, "20", items[0].TotalValue.String())
}

func TestAggregateItemsDropsUnresolvableRecords(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100},
		{LineID: 11, OrderID: 1, CatalogItemID: 0},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 999, Kind: ActivityReceived, Quantity: dec("5")},
		{RecordID: 2, LineID: 11, Kind: ActivityReceived, Quantity: dec("3")},
		{RecordID: 3, LineID: 10, Kind: ActivityReceived, Quantity: dec("2"), Amount: dec("4")},
	}

	items, dropped := AggregateItems(records, lines, nil, nil)
	require.Equal(t, 2, dropped)
	require.Len(t, items, 1)
	require.Equal(t, int64(100), items[0].CatalogItemID)
}

func TestAggregateItemsSortsByCatalogItem(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 200},
		{LineID: 11, OrderID: 1, CatalogItemID: 100},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("1")},
		{RecordID: 2, LineID: 11, Kind: ActivityReceived, Quantity: dec("1")},
	}

	items, _ := AggregateItems(records, lines, nil, nil)
	require.Len(t, items, 2)
	require.Equal(t, int64(100), items[0].CatalogItemID)
	require.Equal(t, int64(200), items[1].CatalogItemID)
}

func TestAggregateItemsVendorLabels(t *testing.T) {
	orders := map[int64]OrderMeta{
		1: {OrderID: 1, VendorID: 7},
		2: {OrderID: 2, VendorID: 8},
	}
	vendors := map[int64]string{7: "Acme Steel", 8: "Bolt Supply"}
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100},
		{LineID: 11, OrderID: 2, CatalogItemID: 100},
		{LineID: 12, OrderID: 1, CatalogItemID: 200},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("1")},
		{RecordID: 2, LineID: 11, Kind: ActivityReceived, Quantity: dec("1")},
		{RecordID: 3, LineID: 12, Kind: ActivityReceived, Quantity: dec("1")},
	}

	items, _ := AggregateItems(records, lines, orders, vendors)
	require.Len(t, items, 2)
	require.Equal(t, VendorLabelMultiple, items[0].VendorLabel)
	require.Equal(t, "Acme Steel", items[1].VendorLabel)
}

func TestResolveVendorLabel(t *testing.T) {
	names := map[int64]string{7: "Acme Steel"}

	require.Equal(t, "", ResolveVendorLabel(nil, names))
	require.Equal(t, "Acme Steel", ResolveVendorLabel(map[int64]struct{}{7: {}}, names))
	require.Equal(t, VendorLabelMultiple, ResolveVendorLabel(map[int64]struct{}{7: {}, 8: {}}, names))
	// Unknown vendor still resolves, just without a name.
	require.Equal(t, "", ResolveVendorLabel(map[int64]struct{}{99: {}}, names))
}

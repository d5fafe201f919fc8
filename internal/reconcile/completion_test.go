package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateOrderCompletionReturnsCountTowardSatisfaction(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100, OrderedQty: dec("100")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("60")},
		{RecordID: 2, LineID: 10, Kind: ActivityReturnReturned, Quantity: dec("40")},
	}

	signal := EvaluateOrderCompletion(1, lines, records)
	require.True(t, signal.Complete)
	require.Equal(t, int64(1), signal.OrderID)
}

func TestEvaluateOrderCompletionShortfallStaysOpen(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100, OrderedQty: dec("100")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("60")},
		{RecordID: 2, LineID: 10, Kind: ActivityReturnWaiting, Quantity: dec("30")},
	}

	signal := EvaluateOrderCompletion(1, lines, records)
	require.False(t, signal.Complete)
}

func TestEvaluateOrderCompletionShipmentsDoNotSatisfy(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100, OrderedQty: dec("10")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityShipment, Quantity: dec("10")},
	}

	signal := EvaluateOrderCompletion(1, lines, records)
	require.False(t, signal.Complete)
}

func TestEvaluateOrderCompletionSumsPerCatalogItem(t *testing.T) {
	// Two lines for the same item: the item-level sum satisfies both.
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 100, OrderedQty: dec("6")},
		{LineID: 11, OrderID: 1, CatalogItemID: 100, OrderedQty: dec("4")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("10")},
	}

	signal := EvaluateOrderCompletion(1, lines, records)
	require.True(t, signal.Complete)
}

func TestEvaluateOrderCompletionLineFallbackWithoutCatalogItem(t *testing.T) {
	lines := []OrderLine{
		{LineID: 10, OrderID: 1, CatalogItemID: 0, OrderedQty: dec("5")},
		{LineID: 11, OrderID: 1, CatalogItemID: 0, OrderedQty: dec("5")},
	}
	records := []ActivityRecord{
		{RecordID: 1, LineID: 10, Kind: ActivityReceived, Quantity: dec("5")},
	}

	signal := EvaluateOrderCompletion(1, lines, records)
	require.False(t, signal.Complete)

	records = append(records, ActivityRecord{RecordID: 2, LineID: 11, Kind: ActivityReceived, Quantity: dec("5")})
	signal = EvaluateOrderCompletion(1, lines, records)
	require.True(t, signal.Complete)
}

func TestEvaluateOrderCompletionZeroLinesVacuouslyComplete(t *testing.T) {
	signal := EvaluateOrderCompletion(1, nil, nil)
	require.True(t, signal.Complete)
}

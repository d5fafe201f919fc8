package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func TestNormalizeReceiptsMissingFlagsCountAsActive(t *testing.T) {
	rows := []ReceiptRow{
		{RecordID: 1, LineID: 10, Quantity: "5", Amount: "50", NoteStatus: ReceiptStatusReceived},
	}

	records, skipped := NormalizeReceipts(rows)
	require.Zero(t, skipped)
	require.Len(t, records, 1)
	require.Equal(t, ActivityReceived, records[0].Kind)
	require.Equal(t, "5", records[0].Quantity.String())
	require.Equal(t, "50", records[0].Amount.String())
}

func TestNormalizeReceiptsStatusSelectsKind(t *testing.T) {
	rows := []ReceiptRow{
		{RecordID: 1, LineID: 10, Quantity: "10", NoteStatus: ReceiptStatusShipment},
		{RecordID: 2, LineID: 10, Quantity: "5", Amount: "25", NoteStatus: ReceiptStatusReceived},
	}

	records, skipped := NormalizeReceipts(rows)
	require.Zero(t, skipped)
	require.Len(t, records, 2)
	require.Equal(t, ActivityShipment, records[0].Kind)
	require.Equal(t, ActivityReceived, records[1].Kind)
}

func TestNormalizeReceiptsInactiveRowsExcludedNotSkipped(t *testing.T) {
	rows := []ReceiptRow{
		{RecordID: 1, LineID: 10, Quantity: "5", RecordActive: boolPtr(false), NoteStatus: ReceiptStatusReceived},
		{RecordID: 2, LineID: 10, Quantity: "3", NoteActive: boolPtr(false), NoteStatus: ReceiptStatusReceived},
	}

	records, skipped := NormalizeReceipts(rows)
	require.Empty(t, records)
	require.Zero(t, skipped)
}

func TestNormalizeReceiptsMalformedRowsSkipped(t *testing.T) {
	rows := []ReceiptRow{
		{RecordID: 1, LineID: 0, Quantity: "5", NoteStatus: ReceiptStatusReceived},
		{RecordID: 2, LineID: 10, Quantity: "not-a-number", NoteStatus: ReceiptStatusReceived},
		{RecordID: 3, LineID: 10, Quantity: "5", Amount: "garbage", NoteStatus: ReceiptStatusReceived},
		{RecordID: 4, LineID: 10, Quantity: "2", Amount: "8", NoteStatus: ReceiptStatusReceived},
	}

	records, skipped := NormalizeReceipts(rows)
	require.Equal(t, 3, skipped)
	require.Len(t, records, 1)
	require.Equal(t, int64(4), records[0].RecordID)
}

func TestNormalizeReceiptsNestedNoteWinsOverFlattened(t *testing.T) {
	rows := []ReceiptRow{
		{
			RecordID:   1,
			LineID:     10,
			Quantity:   "5",
			Note:       &NoteRef{IsActive: boolPtr(true), Status: ReceiptStatusShipment},
			NoteActive: boolPtr(false),
			NoteStatus: ReceiptStatusReceived,
		},
	}

	records, skipped := NormalizeReceipts(rows)
	require.Zero(t, skipped)
	require.Len(t, records, 1)
	require.Equal(t, ActivityShipment, records[0].Kind)
}

func TestNormalizeReturnsEveryActiveReturnCounts(t *testing.T) {
	ts := time.Now()
	rows := []ReturnRow{
		{RecordID: 1, LineID: 10, Quantity: "5", NoteStatus: ReturnStatusWaiting, Timestamp: ts},
		{RecordID: 2, LineID: 10, Quantity: "3", NoteStatus: ReturnStatusReturned, Timestamp: ts},
		{RecordID: 3, LineID: 10, Quantity: "2", NoteStatus: ReturnStatusCancelled, Timestamp: ts},
		{RecordID: 4, LineID: 10, Quantity: "10", RecordActive: boolPtr(false), NoteStatus: ReturnStatusReturned},
	}

	records, skipped := NormalizeReturns(rows)
	require.Zero(t, skipped)
	require.Len(t, records, 3)
	require.Equal(t, ActivityReturnWaiting, records[0].Kind)
	require.Equal(t, ActivityReturnReturned, records[1].Kind)
	require.Equal(t, ActivityReturnCancelled, records[2].Kind)
	for _, rec := range records {
		require.True(t, rec.Kind.IsReturn())
		require.True(t, rec.Amount.IsZero())
	}
}

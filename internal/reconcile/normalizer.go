package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt-note document statuses as stored.
const (
	ReceiptStatusShipment = "SHIPMENT"
	ReceiptStatusReceived = "RECEIVED"
)

// Return-note document statuses as stored.
const (
	ReturnStatusWaiting   = "WAITING"
	ReturnStatusReturned  = "RETURNED"
	ReturnStatusCancelled = "CANCELLED"
)

// NoteRef is the parent-document fields a row may embed as a nested object.
// Some source endpoints flatten the same fields onto the row instead.
type NoteRef struct {
	IsActive *bool
	Status   string
}

// ReceiptRow is one raw receipt-note line. Quantity and Amount arrive as
// strings because the store serves numerics unparsed. Active flags are
// pointers: nil means the flag was absent and the row counts as active.
type ReceiptRow struct {
	RecordID     int64
	LineID       int64
	Quantity     string
	Amount       string
	RecordActive *bool
	Note         *NoteRef
	NoteActive   *bool
	NoteStatus   string
	Timestamp    time.Time
}

// ReturnRow is one raw return-note line. Returns carry no settled amount.
type ReturnRow struct {
	RecordID     int64
	LineID       int64
	Quantity     string
	RecordActive *bool
	Note         *NoteRef
	NoteActive   *bool
	NoteStatus   string
	Timestamp    time.Time
}

// NormalizeReceipts converts raw receipt rows into activity records,
// discarding rows whose document or record is soft-deleted and rows that
// cannot be parsed. The second return value counts dropped rows.
//
// The document status never gates inclusion: it only selects whether the
// quantity lands in shipment or received totals.
func NormalizeReceipts(rows []ReceiptRow) ([]ActivityRecord, int) {
	records := make([]ActivityRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		noteActive, noteStatus := resolveNote(row.Note, row.NoteActive, row.NoteStatus)
		if !activeFlag(noteActive) || !activeFlag(row.RecordActive) {
			continue
		}
		if row.LineID == 0 {
			skipped++
			continue
		}
		qty, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			skipped++
			continue
		}
		amount := decimal.Zero
		if row.Amount != "" {
			parsed, err := decimal.NewFromString(row.Amount)
			if err != nil {
				skipped++
				continue
			}
			amount = parsed
		}
		kind := ActivityReceived
		if noteStatus == ReceiptStatusShipment {
			kind = ActivityShipment
		}
		records = append(records, ActivityRecord{
			RecordID:  row.RecordID,
			LineID:    row.LineID,
			Kind:      kind,
			Quantity:  qty,
			Amount:    amount,
			Timestamp: row.Timestamp,
		})
	}
	return records, skipped
}

// NormalizeReturns converts raw return rows into activity records. Every
// active return counts regardless of the return document's own status;
// the status only picks the return sub-kind.
func NormalizeReturns(rows []ReturnRow) ([]ActivityRecord, int) {
	records := make([]ActivityRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		noteActive, noteStatus := resolveNote(row.Note, row.NoteActive, row.NoteStatus)
		if !activeFlag(noteActive) || !activeFlag(row.RecordActive) {
			continue
		}
		if row.LineID == 0 {
			skipped++
			continue
		}
		qty, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, ActivityRecord{
			RecordID:  row.RecordID,
			LineID:    row.LineID,
			Kind:      returnKind(noteStatus),
			Quantity:  qty,
			Timestamp: row.Timestamp,
		})
	}
	return records, skipped
}

// resolveNote prefers the nested parent-document object when present and
// falls back to the flattened fields otherwise.
func resolveNote(note *NoteRef, flatActive *bool, flatStatus string) (*bool, string) {
	if note != nil {
		return note.IsActive, note.Status
	}
	return flatActive, flatStatus
}

// activeFlag treats a missing flag as active, never as false.
func activeFlag(v *bool) bool {
	return v == nil || *v
}

func returnKind(status string) ActivityKind {
	switch status {
	case ReturnStatusReturned:
		return ActivityReturnReturned
	case ReturnStatusCancelled:
		return ActivityReturnCancelled
	default:
		return ActivityReturnWaiting
	}
}

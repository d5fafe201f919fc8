package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed reads for the engine. Numeric
// columns are selected as text and parsed, keeping quantities decimal all
// the way through.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrder returns one order's report metadata.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (OrderMeta, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, number, kind, order_date, COALESCE(vendor_id, 0)
		FROM orders WHERE id = $1`, orderID)
	var meta OrderMeta
	var kind string
	if err := row.Scan(&meta.OrderID, &meta.Number, &kind, &meta.OrderDate, &meta.VendorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderMeta{}, ErrNotFound
		}
		return OrderMeta{}, err
	}
	meta.Kind = OrderKind(kind)
	return meta, nil
}

// ListProjectOrders returns metadata for every order under a project.
func (r *Repository) ListProjectOrders(ctx context.Context, projectID int64) ([]OrderMeta, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, kind, order_date, COALESCE(vendor_id, 0)
		FROM orders WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []OrderMeta
	for rows.Next() {
		var meta OrderMeta
		var kind string
		if err := rows.Scan(&meta.OrderID, &meta.Number, &kind, &meta.OrderDate, &meta.VendorID); err != nil {
			return nil, err
		}
		meta.Kind = OrderKind(kind)
		orders = append(orders, meta)
	}
	return orders, rows.Err()
}

// ListOrderLines returns the lines of the given orders.
func (r *Repository) ListOrderLines(ctx context.Context, orderIDs []int64) ([]OrderLine, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.order_id, o.kind,
			COALESCE(l.catalog_item_id, 0), COALESCE(l.display_name, ''),
			l.ordered_qty::text, l.unit_price::text, COALESCE(l.cost_code_id, 0)
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		WHERE l.order_id = ANY($1) ORDER BY l.id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		var kind, orderedQty, unitPrice string
		if err := rows.Scan(&line.LineID, &line.OrderID, &kind, &line.CatalogItemID,
			&line.DisplayName, &orderedQty, &unitPrice, &line.CostCodeID); err != nil {
			return nil, err
		}
		line.Kind = OrderKind(kind)
		if line.OrderedQty, err = decimal.NewFromString(orderedQty); err != nil {
			return nil, fmt.Errorf("reconcile: order line %d ordered qty: %w", line.LineID, err)
		}
		if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("reconcile: order line %d unit price: %w", line.LineID, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListReceiptRows returns the raw receipt-note items recorded against the
// given orders, with the parent-note flags flattened onto each row. Soft
// deleted rows are returned as-is; filtering is the normalizer's job.
func (r *Repository) ListReceiptRows(ctx context.Context, orderIDs []int64) ([]ReceiptRow, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT i.id, COALESCE(i.order_line_id, 0),
			i.quantity::text, COALESCE(i.amount::text, ''), i.is_active,
			n.is_active, n.status, i.created_at
		FROM receipt_note_items i
		JOIN receipt_notes n ON n.id = i.receipt_note_id
		WHERE n.order_id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReceiptRow
	for rows.Next() {
		var item ReceiptRow
		if err := rows.Scan(&item.RecordID, &item.LineID, &item.Quantity, &item.Amount,
			&item.RecordActive, &item.NoteActive, &item.NoteStatus, &item.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListReturnRows returns the raw return-note items recorded against the
// given orders, flags flattened like ListReceiptRows.
func (r *Repository) ListReturnRows(ctx context.Context, orderIDs []int64) ([]ReturnRow, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT i.id, COALESCE(i.order_line_id, 0),
			i.quantity::text, i.is_active, n.is_active, n.status, i.created_at
		FROM return_note_items i
		JOIN return_notes n ON n.id = i.return_note_id
		WHERE n.order_id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReturnRow
	for rows.Next() {
		var item ReturnRow
		if err := rows.Scan(&item.RecordID, &item.LineID, &item.Quantity,
			&item.RecordActive, &item.NoteActive, &item.NoteStatus, &item.Timestamp); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListVendorNames resolves vendor display names.
func (r *Repository) ListVendorNames(ctx context.Context, vendorIDs []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return names, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM vendors WHERE id = ANY($1)`, vendorIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

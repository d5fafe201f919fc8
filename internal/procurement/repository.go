package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gantry-erp/gantry/internal/platform/db"
	"github.com/gantry-erp/gantry/internal/reconcile"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateOrder(ctx context.Context, order Order) (int64, error)
	InsertOrderLine(ctx context.Context, line OrderLine) error
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error
	CreateReceiptNote(ctx context.Context, note ReceiptNote) (int64, error)
	InsertReceiptItem(ctx context.Context, item ReceiptItem) error
	UpdateReceiptNoteStatus(ctx context.Context, id int64, status ReceiptStatus) error
	DeactivateReceiptNote(ctx context.Context, id int64) error
	CreateReturnNote(ctx context.Context, note ReturnNote) (int64, error)
	InsertReturnItem(ctx context.Context, item ReturnItem) error
	UpdateReturnNoteStatus(ctx context.Context, id int64, status ReturnStatus) error
	DeactivateReturnNote(ctx context.Context, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetOrder returns an order header and its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, []OrderLine, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, project_id, number, kind, COALESCE(vendor_id, 0),
		order_date, status, COALESCE(note, '') FROM orders WHERE id = $1`, id)
	var order Order
	var kind, status string
	if err := row.Scan(&order.ID, &order.ProjectID, &order.Number, &kind, &order.VendorID,
		&order.OrderDate, &status, &order.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrNotFound
		}
		return Order{}, nil, err
	}
	order.Kind = reconcile.OrderKind(kind)
	order.Status = OrderStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, COALESCE(catalog_item_id, 0),
		COALESCE(display_name, ''), ordered_qty::text, unit_price::text, COALESCE(cost_code_id, 0)
		FROM order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		var orderedQty, unitPrice string
		if err := rows.Scan(&line.ID, &line.OrderID, &line.CatalogItemID, &line.DisplayName,
			&orderedQty, &unitPrice, &line.CostCodeID); err != nil {
			return Order{}, nil, err
		}
		if line.OrderedQty, err = decimal.NewFromString(orderedQty); err != nil {
			return Order{}, nil, err
		}
		if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return Order{}, nil, err
		}
		lines = append(lines, line)
	}
	return order, lines, rows.Err()
}

// GetReceiptNote fetches a receipt note header.
func (r *Repository) GetReceiptNote(ctx context.Context, id int64) (ReceiptNote, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, order_id, number, status, is_active, received_at,
		COALESCE(note, '') FROM receipt_notes WHERE id = $1`, id)
	var note ReceiptNote
	var status string
	if err := row.Scan(&note.ID, &note.OrderID, &note.Number, &status, &note.IsActive,
		&note.ReceivedAt, &note.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReceiptNote{}, ErrNotFound
		}
		return ReceiptNote{}, err
	}
	note.Status = ReceiptStatus(status)
	return note, nil
}

// GetReturnNote fetches a return note header.
func (r *Repository) GetReturnNote(ctx context.Context, id int64) (ReturnNote, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, order_id, number, status, is_active, returned_at,
		COALESCE(note, '') FROM return_notes WHERE id = $1`, id)
	var note ReturnNote
	var status string
	if err := row.Scan(&note.ID, &note.OrderID, &note.Number, &status, &note.IsActive,
		&note.ReturnedAt, &note.Note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReturnNote{}, ErrNotFound
		}
		return ReturnNote{}, err
	}
	note.Status = ReturnStatus(status)
	return note, nil
}

// ListOrders returns a page of orders, optionally filtered to one project.
func (r *Repository) ListOrders(ctx context.Context, projectID int64, page, perPage int) ([]Order, int, error) {
	countSQL := `SELECT COUNT(*) FROM orders WHERE ($1 = 0 OR project_id = $1)`
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, number, kind, COALESCE(vendor_id, 0),
		order_date, status, COALESCE(note, '')
		FROM orders WHERE ($1 = 0 OR project_id = $1)
		ORDER BY id DESC LIMIT $2 OFFSET $3`, projectID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var order Order
		var kind, status string
		if err := rows.Scan(&order.ID, &order.ProjectID, &order.Number, &kind, &order.VendorID,
			&order.OrderDate, &status, &order.Note); err != nil {
			return nil, 0, err
		}
		order.Kind = reconcile.OrderKind(kind)
		order.Status = OrderStatus(status)
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

// ListOpenOrderIDs returns the ids of approved orders awaiting completion.
func (r *Repository) ListOpenOrderIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM orders WHERE status = $1 ORDER BY id`,
		string(OrderStatusApproved))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkOrderCompleted sets the completed status. Idempotent: an already
// completed order is a no-op, satisfying reconcile.OrderStatusPort.
func (r *Repository) MarkOrderCompleted(ctx context.Context, orderID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2 AND status <> $1`,
		string(OrderStatusCompleted), orderID)
	return err
}

func (t *txRepo) CreateOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (project_id, number, kind, vendor_id, order_date, status, note)
		VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7) RETURNING id`,
		order.ProjectID, order.Number, string(order.Kind), order.VendorID, order.OrderDate,
		string(order.Status), order.Note).Scan(&id)
	return id, err
}

func (t *txRepo) InsertOrderLine(ctx context.Context, line OrderLine) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO order_lines (order_id, catalog_item_id, display_name, ordered_qty, unit_price, cost_code_id)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, NULLIF($6, 0))`,
		line.OrderID, line.CatalogItemID, line.DisplayName, line.OrderedQty.String(),
		line.UnitPrice.String(), line.CostCodeID)
	return err
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), id)
	return err
}

func (t *txRepo) CreateReceiptNote(ctx context.Context, note ReceiptNote) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO receipt_notes (order_id, number, status, is_active, received_at, note)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		note.OrderID, note.Number, string(note.Status), note.IsActive, note.ReceivedAt, note.Note).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReceiptItem(ctx context.Context, item ReceiptItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO receipt_note_items (receipt_note_id, order_line_id, quantity, amount, is_active)
		VALUES ($1, $2, $3, $4, TRUE)`,
		item.NoteID, item.OrderLineID, item.Quantity.String(), item.Amount.String())
	return err
}

func (t *txRepo) UpdateReceiptNoteStatus(ctx context.Context, id int64, status ReceiptStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE receipt_notes SET status = $1 WHERE id = $2`, string(status), id)
	return err
}

func (t *txRepo) DeactivateReceiptNote(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE receipt_notes SET is_active = FALSE WHERE id = $1`, id)
	return err
}

func (t *txRepo) CreateReturnNote(ctx context.Context, note ReturnNote) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO return_notes (order_id, number, status, is_active, returned_at, note)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		note.OrderID, note.Number, string(note.Status), note.IsActive, note.ReturnedAt, note.Note).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReturnItem(ctx context.Context, item ReturnItem) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO return_note_items (return_note_id, order_line_id, quantity, is_active)
		VALUES ($1, $2, $3, TRUE)`,
		item.NoteID, item.OrderLineID, item.Quantity.String())
	return err
}

func (t *txRepo) UpdateReturnNoteStatus(ctx context.Context, id int64, status ReturnStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE return_notes SET status = $1 WHERE id = $2`, string(status), id)
	return err
}

func (t *txRepo) DeactivateReturnNote(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE return_notes SET is_active = FALSE WHERE id = $1`, id)
	return err
}

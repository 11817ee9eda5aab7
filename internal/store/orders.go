package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/spajza/internal/model"
)

// ErrEmptyOrder is returned when an order request contains no lines.
var ErrEmptyOrder = errors.New("order has no lines")

// ItemNotFoundError reports an order line referencing a missing item.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

// InsufficientStockError reports an order line exceeding available stock.
type InsufficientStockError struct {
	ItemID int64
	Name   string
	Have   int
	Want   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for item %q (id %d): have %d, want %d", e.Name, e.ItemID, e.Have, e.Want)
}

// OrderLineRequest is one requested (item, quantity) pair of an order.
type OrderLineRequest struct {
	ItemID   int64
	Quantity int
}

// PlaceOrder atomically validates and reserves stock for all requested lines,
// records them under a fresh order ID, and returns that ID. On any failure
// nothing is persisted and stock is unchanged.
//
// Requested quantities for an item repeated across lines accumulate against
// the same stock snapshot, so an order cannot oversell an item by splitting
// it across lines.
func PlaceOrder(ctx context.Context, db *sql.DB, userID int64, lines []OrderLineRequest) (string, error) {
	if len(lines) == 0 {
		return "", ErrEmptyOrder
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return "", fmt.Errorf("quantity must be positive for item %d", line.ItemID)
		}
	}

	orderID := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Snapshot name and quantity for the distinct requested item ids in one read.
	var ids []any
	seen := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if !seen[line.ItemID] {
			seen[line.ItemID] = true
			ids = append(ids, line.ItemID)
		}
	}

	type stock struct {
		name     string
		quantity int
	}
	snapshot := make(map[int64]stock, len(ids))

	params := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := tx.QueryContext(ctx,
		`SELECT id, name, quantity FROM items WHERE id IN (`+params+`)`, ids...,
	)
	if err != nil {
		return "", fmt.Errorf("reading stock: %w", err)
	}
	for rows.Next() {
		var id int64
		var s stock
		if err := rows.Scan(&id, &s.name, &s.quantity); err != nil {
			rows.Close()
			return "", fmt.Errorf("scanning stock: %w", err)
		}
		snapshot[id] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading stock: %w", err)
	}

	// Validate and apply each line in caller order. requested accumulates
	// per item id so sibling lines for the same item share one budget.
	requested := make(map[int64]int, len(ids))
	for _, line := range lines {
		s, ok := snapshot[line.ItemID]
		if !ok {
			return "", &ItemNotFoundError{ItemID: line.ItemID}
		}

		requested[line.ItemID] += line.Quantity
		if requested[line.ItemID] > s.quantity {
			return "", &InsufficientStockError{
				ItemID: line.ItemID,
				Name:   s.name,
				Have:   s.quantity,
				Want:   requested[line.ItemID],
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (order_id, user_id, item_id, quantity) VALUES (?, ?, ?, ?)`,
			orderID, userID, line.ItemID, line.Quantity,
		); err != nil {
			return "", fmt.Errorf("recording order line: %w", err)
		}

		// Guarded decrement: the WHERE clause is a second fence that keeps
		// quantity from ever going negative even if the snapshot were stale.
		result, err := tx.ExecContext(ctx,
			`UPDATE items SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND quantity >= ?`,
			line.Quantity, line.ItemID, line.Quantity,
		)
		if err != nil {
			return "", fmt.Errorf("decrementing stock: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return "", &InsufficientStockError{
				ItemID: line.ItemID,
				Name:   s.name,
				Have:   s.quantity,
				Want:   requested[line.ItemID],
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing order: %w", err)
	}

	return orderID, nil
}

// GetOrder returns all lines of an order in insertion order.
// An empty result means no such order exists.
func GetOrder(ctx context.Context, db *sql.DB, orderID string) ([]model.OrderLine, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, user_id, item_id, quantity, created_at
		 FROM orders WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	defer rows.Close()

	var lines []model.OrderLine
	for rows.Next() {
		var line model.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.UserID, &line.ItemID, &line.Quantity, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

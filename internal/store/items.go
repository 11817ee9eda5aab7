package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/spajza/internal/model"
)

// CreateItem creates a new catalog item.
func CreateItem(ctx context.Context, db *sql.DB, name string, price int64, quantity int) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, price, quantity) VALUES (?, ?, ?)`,
		name, price, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if none exists.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item := &model.Item{}
	var photoMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, price, quantity, photo_mime, created_at, updated_at
		 FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &photoMime, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item.PhotoMime = photoMime.String
	return item, nil
}

// ListItems returns up to limit items with id >= fromID, ordered by id.
// The second return value is the id to pass as fromID for the next page,
// or 0 when there are no further items.
func ListItems(ctx context.Context, db *sql.DB, fromID int64, limit int) ([]model.Item, int64, error) {
	// Fetch one extra row to learn whether another page exists.
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, price, quantity, photo_mime, created_at, updated_at
		 FROM items WHERE id >= ? ORDER BY id LIMIT ?`, fromID, limit+1,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		var photoMime sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &item.Price, &item.Quantity, &photoMime, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning item: %w", err)
		}
		item.PhotoMime = photoMime.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var nextID int64
	if len(items) > limit {
		nextID = items[limit].ID
		items = items[:limit]
	}
	return items, nextID, nil
}

// UpdateItem updates an item's name, price, and quantity.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, name string, price int64, quantity int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, price = ?, quantity = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, price, quantity, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d not found", id)
	}
	return nil
}

// DeleteItem removes an item from the catalog. Order lines referencing it
// are kept; they carry their own copies of the ordered quantity.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d not found", id)
	}
	return nil
}

// SetItemPhoto sets an item's photo data.
func SetItemPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d not found", id)
	}
	return nil
}

// GetItemPhoto returns an item's photo data and MIME type.
func GetItemPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM items WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return photo, mime.String, nil
}

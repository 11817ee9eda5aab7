package model

import "time"

// OrderLine is one (item, quantity) commitment within an order. An order is
// the set of lines sharing one OrderID; there is no separate order header.
// Lines are written exactly once by the order engine and never mutated.
type OrderLine struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

package model

import "time"

// Item represents a grocery item in the catalog. Price is stored in cents.
// Quantity is the current stock level and never goes below zero; only the
// order engine decrements it.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	PhotoMime string    `json:"photo_mime,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

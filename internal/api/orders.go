package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/spajza/internal/model"
	"github.com/erazemk/spajza/internal/store"
)

// OrdersHandler handles order placement and lookup.
type OrdersHandler struct {
	DB *sql.DB
}

type orderLineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type placeOrderRequest struct {
	Items []orderLineRequest `json:"items"`
}

type placeOrderResponse struct {
	OrderID string `json:"order_id"`
}

// Create handles POST /api/orders. The order either commits in full or has
// no effect; the response carries the specific reason on rejection.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Items) == 0 {
		jsonError(w, http.StatusBadRequest, "order must contain at least one item")
		return
	}
	lines := make([]store.OrderLineRequest, 0, len(req.Items))
	for _, line := range req.Items {
		if line.ItemID < 1 || line.Quantity < 1 {
			jsonError(w, http.StatusBadRequest, "item_id and quantity must be positive")
			return
		}
		lines = append(lines, store.OrderLineRequest{ItemID: line.ItemID, Quantity: line.Quantity})
	}

	claims := GetClaims(r.Context())
	orderID, err := store.PlaceOrder(r.Context(), h.DB, claims.UserID, lines)
	if err != nil {
		var notFound *store.ItemNotFoundError
		var stockErr *store.InsufficientStockError
		switch {
		case errors.As(err, &notFound):
			jsonError(w, http.StatusNotFound, notFound.Error())
		case errors.As(err, &stockErr):
			jsonError(w, http.StatusConflict, stockErr.Error())
		case errors.Is(err, store.ErrEmptyOrder):
			jsonError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("failed to place order", "user", claims.Username, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to place order")
		}
		return
	}

	slog.Info("order placed", "user", claims.Username, "order_id", orderID, "lines", len(lines))
	jsonResponse(w, http.StatusCreated, placeOrderResponse{OrderID: orderID})
}

// Get handles GET /api/orders/{orderId}. Only the order's owner or an admin
// may view it; existence is checked before ownership.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	if orderID == "" {
		jsonError(w, http.StatusBadRequest, "order id required")
		return
	}

	lines, err := store.GetOrder(r.Context(), h.DB, orderID)
	if err != nil {
		slog.Error("failed to get order", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	if len(lines) == 0 {
		jsonError(w, http.StatusNotFound, "order not found")
		return
	}

	claims := GetClaims(r.Context())
	if claims.Role != model.RoleAdmin && claims.UserID != lines[0].UserID {
		jsonError(w, http.StatusForbidden, "not your order")
		return
	}

	jsonResponse(w, http.StatusOK, lines)
}

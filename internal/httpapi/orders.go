package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/amalikprincem05/e-bazzari/internal/checkout"
	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/store"
)

// CreateOrder places an order settled outside the gateway (pay on
// delivery), optionally redeeming points against it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx := r.Context()
	lines, err := store.GetCartLines(ctx, h.db, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(lines) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "Your cart is empty")
		return
	}

	balance, err := store.GetPointsBalance(ctx, h.db, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	requested := checkout.ParsePointsParam(r.URL.Query().Get("points_to_use"))
	quote := checkout.Price(lines, balance, requested)

	order, err := store.MaterializeOrder(ctx, h.db, store.MaterializeRequest{
		UserID:     userID,
		Status:     models.OrderStatusPending,
		PointsUsed: quote.PointsApplied,
	})
	if err != nil {
		h.checkoutError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// ListOrders returns the user's orders. When the browser lands back
// from the gateway with ?session_id=, the redirect confirmation runs
// first, so the fresh order is already in the list it returns.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		if !h.confirmRedirect(w, r, userID, sessionID) {
			return
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListOrdersCursor(r.Context(), h.db, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := store.GetOrder(r.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	admin, _ := r.Context().Value(adminKey).(bool)
	if order.UserID != userID && !admin {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus is the admin-side status driver (ship, deliver,
// cancel). Transitions outside the state machine are rejected.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Status {
	case models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled:
	default:
		respondError(w, http.StatusUnprocessableEntity, "Unknown order status")
		return
	}

	order, err := store.UpdateOrderStatus(r.Context(), h.db, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrOrderNotFound):
			respondError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, database.ErrInvalidStatusChange):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, order)
}

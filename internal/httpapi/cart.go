package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amalikprincem05/e-bazzari/internal/checkout"
	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/store"
)

type cartView struct {
	Items []models.CartLine `json:"items"`
	Quote checkout.Quote    `json:"quote"`
}

// GetCart returns the cart with a points-aware quote; ?points_to_use=
// previews redemption.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
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

	balance, err := store.GetPointsBalance(ctx, h.db, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	requested := checkout.ParsePointsParam(r.URL.Query().Get("points_to_use"))
	respondJSON(w, http.StatusOK, cartView{
		Items: lines,
		Quote: checkout.Price(lines, balance, requested),
	})
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusUnprocessableEntity, "Quantity must be positive")
		return
	}

	item, err := store.AddCartItem(r.Context(), h.db, userID, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	itemID, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid cart item ID")
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusUnprocessableEntity, "Quantity must be positive")
		return
	}

	item, err := store.UpdateCartItemQuantity(r.Context(), h.db, userID, itemID, req.Quantity)
	if err != nil {
		if errors.Is(err, database.ErrCartItemNotFound) {
			respondError(w, http.StatusNotFound, "Cart item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	itemID, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid cart item ID")
		return
	}

	if err := store.RemoveCartItem(r.Context(), h.db, userID, itemID); err != nil {
		if errors.Is(err, database.ErrCartItemNotFound) {
			respondError(w, http.StatusNotFound, "Cart item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := store.ClearCart(r.Context(), h.db, userID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

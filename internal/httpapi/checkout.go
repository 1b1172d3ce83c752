package httpapi

import (
	"errors"
	"net/http"

	"github.com/amalikprincem05/e-bazzari/internal/checkout"
	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/payment"
	"github.com/amalikprincem05/e-bazzari/internal/store"
	"go.uber.org/zap"
)

// Checkout prices the cart against the requested points redemption.
// A fully-points-covered cart materializes immediately as a paid order
// and never touches the gateway; anything else opens a hosted checkout
// session and returns its redirect URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
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

	user, err := store.GetUser(ctx, h.db, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	requested := checkout.ParsePointsParam(r.URL.Query().Get("points_to_use"))
	quote := checkout.Price(lines, user.Points, requested)

	if quote.Payable.IsZero() && quote.PointsApplied > 0 {
		order, err := store.MaterializeOrder(ctx, h.db, store.MaterializeRequest{
			UserID:     userID,
			Status:     models.OrderStatusPaid,
			PointsUsed: quote.PointsApplied,
		})
		if err != nil {
			h.checkoutError(w, err)
			return
		}

		h.logger.Info("order placed with points only",
			zap.Int64("order_id", order.ID),
			zap.Int64("user_id", userID),
			zap.Int("points_used", quote.PointsApplied))
		respondJSON(w, http.StatusCreated, order)
		return
	}

	allocated := checkout.AllocateDiscount(lines, quote)
	lineItems := make([]payment.LineItem, 0, len(allocated))
	var amountCents int64
	for _, line := range allocated {
		lineItems = append(lineItems, payment.LineItem{
			Name:            line.Name,
			Quantity:        line.Quantity,
			UnitAmountCents: line.UnitAmountCents,
		})
		amountCents += line.AmountCents
	}

	session, err := h.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		LineItems:     lineItems,
		AmountCents:   amountCents,
		CustomerEmail: user.Email,
		SuccessURL:    h.cfg.Gateway.SuccessURL,
		CancelURL:     h.cfg.Gateway.CancelURL,
		Metadata: payment.Metadata{
			UserID:     userID,
			PointsUsed: quote.PointsApplied,
		},
	})
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Payment gateway unavailable, please try again")
			return
		}
		h.logger.Error("create checkout session", zap.Error(err), zap.Int64("user_id", userID))
		respondError(w, http.StatusBadGateway, "Failed to start checkout")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":   session.ID,
		"checkout_url": session.URL,
		"quote":        quote,
	})
}

func (h *Handler) checkoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "Your cart is empty")
	case errors.Is(err, database.ErrInsufficientPoints):
		respondError(w, http.StatusPaymentRequired, "Insufficient points")
	case errors.Is(err, database.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "Insufficient stock")
	default:
		h.logger.Error("checkout", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create order")
	}
}

// confirmRedirect is the browser-return half of settlement: exchange
// the session ID for the payment status and hand it to the reconciler.
// The webhook may have settled already; that is the expected duplicate.
func (h *Handler) confirmRedirect(w http.ResponseWriter, r *http.Request, userID int64, sessionID string) bool {
	ctx := r.Context()

	status, err := h.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "Payment gateway unavailable, please try again")
			return false
		}
		h.logger.Error("retrieve session", zap.Error(err), zap.String("session_id", sessionID))
		respondError(w, http.StatusBadGateway, "There was an issue confirming your payment")
		return false
	}

	if !status.Paid {
		respondError(w, http.StatusPaymentRequired, "Payment was not completed successfully")
		return false
	}

	if status.Metadata.UserID != userID {
		respondError(w, http.StatusForbidden, "Session does not belong to this user")
		return false
	}

	if _, err := h.reconciler.Settle(ctx, checkout.Confirmation{
		PaymentRef: status.PaymentRef,
		UserID:     userID,
		PointsUsed: status.Metadata.PointsUsed,
	}); err != nil {
		h.logger.Error("settle on redirect", zap.Error(err), zap.String("payment_ref", status.PaymentRef))
		respondError(w, http.StatusInternalServerError, "Payment confirmed but order processing failed")
		return false
	}

	return true
}

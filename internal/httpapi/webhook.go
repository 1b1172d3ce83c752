package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/amalikprincem05/e-bazzari/internal/checkout"
	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/payment"
	"github.com/amalikprincem05/e-bazzari/internal/store"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// GatewayWebhook is the server-to-server half of settlement. Delivery
// is at-least-once: duplicates and events racing the browser redirect
// are the reconciler's problem, not ours. A non-2xx response here makes
// the gateway redeliver, so only signature/parse failures and genuine
// processing failures get one — a business no-op still acks.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := payment.ParseWebhook(payload, r.Header.Get(payment.SignatureHeader), h.cfg.Gateway.WebhookSecret)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureInvalid) {
			h.logger.Warn("webhook signature rejected", zap.String("remote", r.RemoteAddr))
			respondError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		h.logger.Warn("webhook payload rejected", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	ctx := r.Context()

	switch event.Type {
	case payment.EventCheckoutCompleted:
		_, err = h.reconciler.Settle(ctx, checkout.Confirmation{
			PaymentRef: event.PaymentRef,
			UserID:     event.Metadata.UserID,
			PointsUsed: event.Metadata.PointsUsed,
		})

	case payment.EventPaymentSucceeded:
		// May arrive without session metadata; then it can only confirm
		// an order that already exists.
		if event.Metadata.UserID != 0 {
			_, err = h.reconciler.Settle(ctx, checkout.Confirmation{
				PaymentRef: event.PaymentRef,
				UserID:     event.Metadata.UserID,
				PointsUsed: event.Metadata.PointsUsed,
			})
		} else {
			err = h.markPaid(ctx, event.PaymentRef)
		}

	case payment.EventPaymentFailed:
		err = h.reconciler.Fail(ctx, event.PaymentRef)
	}

	if err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("event_type", event.Type),
			zap.String("payment_ref", event.PaymentRef),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) markPaid(ctx context.Context, paymentRef string) error {
	order, err := store.GetOrderByPaymentRef(ctx, h.db, paymentRef)
	if errors.Is(err, database.ErrOrderNotFound) {
		h.logger.Info("payment succeeded for unknown reference",
			zap.String("payment_ref", paymentRef))
		return nil
	}
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusPaid {
		return nil
	}

	_, err = store.UpdateOrderStatus(ctx, h.db, order.ID, models.OrderStatusPaid)
	return err
}

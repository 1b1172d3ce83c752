package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/amalikprincem05/e-bazzari/internal/store"
	"go.uber.org/zap"
)

// Confirmation is a payment-completion signal, whichever path delivered
// it. The browser redirect and the gateway webhook both reduce to this.
type Confirmation struct {
	PaymentRef string
	UserID     int64
	PointsUsed int
}

// Reconciler serializes the two independent completion signals for a
// payment into exactly one materialized order. The orders.payment_ref
// unique index is the durable idempotency record; the reconciler's job
// is to consult it, materialize when it is first, and stand down when
// it is not.
type Reconciler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewReconciler(db *sql.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, logger: logger}
}

// Settle handles a successful payment confirmation. It is safe to call
// any number of times for the same payment reference, from any number
// of concurrent handlers: exactly one call materializes, the rest
// return the already-materialized order.
//
// A nil order with a nil error means the confirmation was benign but
// there was nothing to do (empty cart, reference unknown) — the likely
// shape of losing a race whose winner already cleared the cart.
func (r *Reconciler) Settle(ctx context.Context, conf Confirmation) (*models.Order, error) {
	if conf.PaymentRef == "" {
		return nil, fmt.Errorf("settle: payment reference is required")
	}

	order, err := store.GetOrderByPaymentRef(ctx, r.db, conf.PaymentRef)
	if err == nil {
		r.logger.Info("payment already settled",
			zap.String("payment_ref", conf.PaymentRef),
			zap.Int64("order_id", order.ID))
		return order, nil
	}
	if !errors.Is(err, database.ErrOrderNotFound) {
		return nil, err
	}

	order, err = store.MaterializeOrder(ctx, r.db, store.MaterializeRequest{
		UserID:     conf.UserID,
		Status:     models.OrderStatusPaid,
		PointsUsed: conf.PointsUsed,
		PaymentRef: conf.PaymentRef,
	})
	if err == nil {
		r.logger.Info("payment settled",
			zap.String("payment_ref", conf.PaymentRef),
			zap.Int64("order_id", order.ID),
			zap.Int64("user_id", conf.UserID),
			zap.Int("points_used", conf.PointsUsed))
		return order, nil
	}

	if errors.Is(err, database.ErrEmptyCart) {
		// The other handler consumed the cart moments ago, or the user
		// paid for a cart that no longer exists. Nothing to materialize
		// and nothing to resurrect.
		r.logger.Warn("paid confirmation with empty cart and no order",
			zap.String("payment_ref", conf.PaymentRef),
			zap.Int64("user_id", conf.UserID))
		return nil, nil
	}

	if database.IsUniqueViolation(err, "orders_payment_ref_key") {
		// Lost the race between our lookup and our insert; the winner's
		// order is the settlement.
		existing, lookupErr := store.GetOrderByPaymentRef(ctx, r.db, conf.PaymentRef)
		if lookupErr != nil {
			return nil, lookupErr
		}
		r.logger.Info("payment settled by concurrent handler",
			zap.String("payment_ref", conf.PaymentRef),
			zap.Int64("order_id", existing.ID))
		return existing, nil
	}

	return nil, fmt.Errorf("settle %s: %w", conf.PaymentRef, err)
}

// Fail handles a payment-failure notification: any order holding the
// reference is cancelled. No order is the normal case — nothing was
// ever materialized for a payment that never succeeded.
func (r *Reconciler) Fail(ctx context.Context, paymentRef string) error {
	if paymentRef == "" {
		return fmt.Errorf("fail: payment reference is required")
	}

	order, err := store.CancelOrderByPaymentRef(ctx, r.db, paymentRef)
	if errors.Is(err, database.ErrOrderNotFound) {
		r.logger.Info("payment failed with no materialized order",
			zap.String("payment_ref", paymentRef))
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel order for %s: %w", paymentRef, err)
	}

	r.logger.Info("order cancelled after payment failure",
		zap.String("payment_ref", paymentRef),
		zap.Int64("order_id", order.ID))
	return nil
}

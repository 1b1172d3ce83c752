package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
	"github.com/shopspring/decimal"
)

// MaterializeRequest converts a user's cart into an order.
type MaterializeRequest struct {
	UserID     int64
	Status     string
	PointsUsed int
	PaymentRef string // empty for non-gateway orders
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%d", time.Now().UnixNano())
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// MaterializeOrder turns the user's current cart into an order in one
// transaction: the order row, its items priced at the product's current
// price, the guarded stock decrement, the points deduction and the cart
// deletion all commit together or not at all.
//
// payment_ref carries a partial unique index; a unique violation here
// means another handler settled the same payment first. Callers detect
// that with database.IsUniqueViolation and treat it as already settled.
func MaterializeOrder(ctx context.Context, db *sql.DB, req MaterializeRequest) (*models.Order, error) {
	if req.PointsUsed < 0 {
		return nil, fmt.Errorf("points used must be non-negative, got %d", req.PointsUsed)
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		lines, err := lockCartLines(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		var totalAmount decimal.Decimal
		for _, line := range lines {
			if _, err := reserveStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			totalAmount = totalAmount.Add(line.UnitPrice.Mul(decimalFromInt(line.Quantity)))
		}

		var paymentRef sql.NullString
		if req.PaymentRef != "" {
			paymentRef = sql.NullString{String: req.PaymentRef, Valid: true}
		}

		orderNumber := generateOrderNumber()
		var orderID int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), 1)
			 RETURNING id`,
			req.UserID, orderNumber, req.Status, totalAmount, req.PointsUsed, paymentRef).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			subtotal := line.UnitPrice.Mul(decimalFromInt(line.Quantity))

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())`,
				orderID, line.ProductID, line.Quantity, line.UnitPrice, subtotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			if err := decrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if req.PointsUsed > 0 {
			if err := DeductPointsTx(ctx, tx, req.UserID, req.PointsUsed); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`,
			req.UserID)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order = &models.Order{ID: orderID}
		return scanOrderRow(tx.QueryRowContext(ctx,
			`SELECT id, user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version
			 FROM orders WHERE id = $1`,
			orderID), order)
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// lockCartLines reads the cart with the product rows locked, so prices
// and stock cannot shift under the materialization.
func lockCartLines(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.name, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id
		FOR UPDATE OF p`

	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	return scanCartLines(rows)
}

type orderRow interface {
	Scan(dest ...interface{}) error
}

func scanOrderRow(row orderRow, order *models.Order) error {
	var paymentRef sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
		&order.PointsUsed,
		&paymentRef,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return err
	}
	order.PaymentRef = paymentRef.String
	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrderRow(db.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version
		 FROM orders
		 WHERE id = $1`,
		id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := getOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// GetOrderByPaymentRef is the settlement idempotency lookup.
func GetOrderByPaymentRef(ctx context.Context, db *sql.DB, paymentRef string) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrderRow(db.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version
		 FROM orders
		 WHERE payment_ref = $1`,
		paymentRef), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by payment ref: %w", err)
	}

	return order, nil
}

func getOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// Permitted status transitions. Cancelled and delivered are terminal;
// a shipped order can only complete as delivered.
var statusTransitions = map[string][]string{
	models.OrderStatusPending: {models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusPaid:    {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped: {models.OrderStatusDelivered},
}

func canTransition(from, to string) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus string) (*models.Order, error) {
	order := &models.Order{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if current == newStatus {
			// Idempotent no-op.
			return scanOrderRow(tx.QueryRowContext(ctx,
				`SELECT id, user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version
				 FROM orders WHERE id = $1`,
				orderID), order)
		}

		if !canTransition(current, newStatus) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidStatusChange, current, newStatus)
		}

		return scanOrderRow(tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, version = version + 1, updated_at = NOW()
			 WHERE id = $2
			 RETURNING id, user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version`,
			newStatus, orderID), order)
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// CancelOrderByPaymentRef marks the order holding a payment reference as
// cancelled. Reports ErrOrderNotFound when no order holds the reference.
func CancelOrderByPaymentRef(ctx context.Context, db *sql.DB, paymentRef string) (*models.Order, error) {
	order, err := GetOrderByPaymentRef(ctx, db, paymentRef)
	if err != nil {
		return nil, err
	}

	return UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusCancelled)
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, order_number, status, total_amount, points_used, payment_ref, created_at, updated_at, version
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrderRow(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

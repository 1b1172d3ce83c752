package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/amalikprincem05/e-bazzari/internal/database"
)

func AwardPoints(ctx context.Context, db *sql.DB, userID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("award amount must be positive, got %d", amount)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET points = points + $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("award points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

func awardPointsTx(ctx context.Context, tx *sql.Tx, userID int64, amount int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET points = points + $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("award points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrUserNotFound
	}

	return nil
}

// DeductPoints decrements a user's balance. The balance check and the
// write are a single guarded UPDATE, so two concurrent deductions whose
// sum exceeds the balance cannot both succeed.
func DeductPoints(ctx context.Context, db *sql.DB, userID int64, amount int) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return DeductPointsTx(ctx, tx, userID, amount)
	})
}

func DeductPointsTx(ctx context.Context, tx *sql.Tx, userID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET points = points - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND points >= $1`,
		amount, userID)
	if err != nil {
		return fmt.Errorf("deduct points: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientPoints
	}

	return nil
}

func GetPointsBalance(ctx context.Context, db *sql.DB, userID int64) (int, error) {
	var points int
	err := db.QueryRowContext(ctx,
		`SELECT points FROM users WHERE id = $1`,
		userID).Scan(&points)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, database.ErrUserNotFound
		}
		return 0, fmt.Errorf("get points balance: %w", err)
	}

	return points, nil
}

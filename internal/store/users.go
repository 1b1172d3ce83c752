package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/models"
)

const (
	referralCodeLength      = 8
	referralCodeMaxAttempts = 10
	adminAccountsPerCNIC    = 5
)

const referralCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type CreateUserRequest struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Phone          string
	CNIC           string
	ReferralCode   string // code entered at signup, optional
	Admin          bool
	CreatedByAdmin bool
}

// CreateUser registers a user. Referral resolution, the CNIC policy
// checks, referral code issue and the signup bonuses all commit in one
// transaction, so a signup either fully happens or not at all.
func CreateUser(ctx context.Context, db *sql.DB, req CreateUserRequest) (*models.User, error) {
	user := &models.User{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if req.CNIC != "" {
			if err := checkCNICPolicy(ctx, tx, req.CNIC, req.CreatedByAdmin); err != nil {
				return err
			}
		}

		var referrerID *int64
		if code := normalizeReferralCode(req.ReferralCode); code != "" {
			id, err := resolveReferrer(ctx, tx, code)
			if err != nil {
				return err
			}
			referrerID = &id
		}

		code, err := issueReferralCode(ctx, tx)
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO users (email, password_hash, first_name, last_name, phone, cnic,
			                    referral_code, referred_by_id, admin, created_by_admin,
			                    created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), 1)
			 RETURNING id, email, first_name, last_name, phone, cnic, points, referral_code,
			           referred_by_id, admin, super_admin, created_by_admin,
			           created_at, updated_at, version`,
			req.Email, req.PasswordHash, req.FirstName, req.LastName, req.Phone, req.CNIC,
			code, referrerID, req.Admin, req.CreatedByAdmin).Scan(
			&user.ID,
			&user.Email,
			&user.FirstName,
			&user.LastName,
			&user.Phone,
			&user.CNIC,
			&user.Points,
			&user.ReferralCode,
			&user.ReferredByID,
			&user.Admin,
			&user.SuperAdmin,
			&user.CreatedByAdmin,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Version,
		)
		if err != nil {
			if database.IsUniqueViolation(err, "users_email_key") {
				return database.ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}

		if referrerID != nil {
			if err := applyReferralBonus(ctx, tx, user, *referrerID); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return user, nil
}

// applyReferralBonus credits the referrer and the new user their fixed
// bonuses. Creation-time only; there is no other call site.
func applyReferralBonus(ctx context.Context, tx *sql.Tx, user *models.User, referrerID int64) error {
	if err := awardPointsTx(ctx, tx, referrerID, models.ReferrerBonusPoints); err != nil {
		return fmt.Errorf("credit referrer: %w", err)
	}
	if err := awardPointsTx(ctx, tx, user.ID, models.NewUserBonusPoints); err != nil {
		return fmt.Errorf("credit new user: %w", err)
	}
	user.Points += models.NewUserBonusPoints
	return nil
}

func checkCNICPolicy(ctx context.Context, tx *sql.Tx, cnic string, createdByAdmin bool) error {
	if createdByAdmin {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE cnic = $1 AND created_by_admin = TRUE`,
			cnic).Scan(&count)
		if err != nil {
			return fmt.Errorf("count admin accounts for cnic: %w", err)
		}
		if count >= adminAccountsPerCNIC {
			return database.ErrCNICLimitReached
		}
		return nil
	}

	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE cnic = $1)`,
		cnic).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check cnic exists: %w", err)
	}
	if exists {
		return database.ErrCNICTaken
	}
	return nil
}

func normalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func resolveReferrer(ctx context.Context, tx *sql.Tx, code string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE referral_code = $1`,
		code).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, database.ErrInvalidReferralCode
		}
		return 0, fmt.Errorf("resolve referrer: %w", err)
	}

	return id, nil
}

// issueReferralCode generates a fresh 8-character uppercase alphanumeric
// code. A collision is astronomically unlikely, but the retry is capped
// so a pathological state cannot turn into an infinite loop.
func issueReferralCode(ctx context.Context, tx *sql.Tx) (string, error) {
	for attempt := 0; attempt < referralCodeMaxAttempts; attempt++ {
		code, err := randomReferralCode()
		if err != nil {
			return "", err
		}

		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE referral_code = $1)`,
			code).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check referral code exists: %w", err)
		}

		if !exists {
			return code, nil
		}
	}

	return "", database.ErrReferralCodeExhaust
}

func randomReferralCode() (string, error) {
	var sb strings.Builder
	sb.Grow(referralCodeLength)
	max := big.NewInt(int64(len(referralCodeCharset)))

	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		sb.WriteByte(referralCodeCharset[n.Int64()])
	}

	return sb.String(), nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, password_hash, first_name, last_name, phone, cnic, points,
		       referral_code, referred_by_id, admin, super_admin, created_by_admin,
		       created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.CNIC,
		&user.Points,
		&user.ReferralCode,
		&user.ReferredByID,
		&user.Admin,
		&user.SuperAdmin,
		&user.CreatedByAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, password_hash, first_name, last_name, phone, cnic, points,
		       referral_code, referred_by_id, admin, super_admin, created_by_admin,
		       created_at, updated_at, version
		FROM users
		WHERE LOWER(email) = LOWER($1)`

	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.CNIC,
		&user.Points,
		&user.ReferralCode,
		&user.ReferredByID,
		&user.Admin,
		&user.SuperAdmin,
		&user.CreatedByAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, email, first_name, last_name, phone, cnic, points, referral_code,
		       referred_by_id, admin, super_admin, created_by_admin,
		       created_at, updated_at, version
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.FirstName,
			&user.LastName,
			&user.Phone,
			&user.CNIC,
			&user.Points,
			&user.ReferralCode,
			&user.ReferredByID,
			&user.Admin,
			&user.SuperAdmin,
			&user.CreatedByAdmin,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      users,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

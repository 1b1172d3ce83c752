package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/amalikprincem05/e-bazzari/internal/database"
	"github.com/amalikprincem05/e-bazzari/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)
	cnicPattern  = regexp.MustCompile(`^\d{13}$`)
)

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	CNIC         string `json:"cnic"`
	ReferralCode string `json:"referral_code"`
}

func (req *registerRequest) validate() string {
	switch {
	case req.Email == "" || req.Password == "":
		return "Email and password are required"
	case req.FirstName == "" || req.LastName == "":
		return "First and last name are required"
	case req.Phone == "":
		return "Phone is required"
	case !phonePattern.MatchString(req.Phone):
		return "Phone must be a valid phone number"
	case req.CNIC == "":
		return "CNIC is required"
	case !cnicPattern.MatchString(req.CNIC):
		return "CNIC must be a 13-digit number"
	}
	return ""
}

func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}

	ctx := r.Context()
	user, err := store.CreateUser(ctx, h.db, store.CreateUserRequest{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		CNIC:         req.CNIC,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrEmailTaken):
			respondError(w, http.StatusConflict, "Email already registered")
		case errors.Is(err, database.ErrCNICTaken):
			respondError(w, http.StatusUnprocessableEntity, "CNIC is already registered")
		case errors.Is(err, database.ErrInvalidReferralCode):
			respondError(w, http.StatusUnprocessableEntity, "Referral code is invalid or expired")
		default:
			h.logger.Error("register user", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	token, err := generateToken(user.ID, user.IsAdmin(), h.cfg.Auth)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}

	setAuthCookie(w, token, h.cfg.Auth.TokenTTL)
	w.Header().Set("Authorization", bearerSchema+token)
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx := r.Context()
	user, err := store.GetUserByEmail(ctx, h.db, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := generateToken(user.ID, user.IsAdmin(), h.cfg.Auth)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}

	setAuthCookie(w, token, h.cfg.Auth.TokenTTL)
	w.Header().Set("Authorization", bearerSchema+token)
	respondJSON(w, http.StatusOK, user)
}

// AdminCreateUser provisions an account on a customer's behalf. The
// CNIC policy differs from self-service signup: up to five
// admin-managed accounts may share one CNIC.
func (h *Handler) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Server error")
		return
	}

	ctx := r.Context()
	user, err := store.CreateUser(ctx, h.db, store.CreateUserRequest{
		Email:          req.Email,
		PasswordHash:   string(hashedPassword),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		CNIC:           req.CNIC,
		ReferralCode:   req.ReferralCode,
		CreatedByAdmin: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrEmailTaken):
			respondError(w, http.StatusConflict, "Email already registered")
		case errors.Is(err, database.ErrCNICLimitReached):
			respondError(w, http.StatusUnprocessableEntity, "CNIC already has 5 admin-managed accounts")
		case errors.Is(err, database.ErrInvalidReferralCode):
			respondError(w, http.StatusUnprocessableEntity, "Referral code is invalid or expired")
		default:
			h.logger.Error("admin create user", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

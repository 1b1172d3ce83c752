// Package payment wraps the hosted-checkout payment gateway. The rest
// of the system depends on the Gateway capability only; the concrete
// HTTP client and webhook verification live here and nowhere else.
package payment

import (
	"context"
	"errors"
	"strconv"
)

type LineItem struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitAmountCents int64  `json:"unit_amount"`
}

// Metadata rides along with a checkout session and comes back verbatim
// on confirmation. The points value recorded here at session creation is
// the one the reconciler deducts, not a recomputation.
type Metadata struct {
	UserID     int64
	PointsUsed int
}

type SessionRequest struct {
	LineItems     []LineItem
	AmountCents   int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      Metadata
}

// Session is an open checkout attempt: the user is redirected to URL
// and comes back carrying ID.
type Session struct {
	ID  string
	URL string
}

// SessionStatus is the gateway's answer to a session lookup. PaymentRef
// is only set once the payment completed; it is the stable identifier
// used as the settlement idempotency key, distinct from the session ID.
type SessionStatus struct {
	ID         string
	Paid       bool
	PaymentRef string
	Metadata   Metadata
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
}

var (
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrPayloadMalformed = errors.New("webhook payload malformed")
	// ErrGatewayUnavailable marks transient transport failures; callers
	// may retry, nothing was settled.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Gateway metadata values are strings on the wire.
type wireMetadata struct {
	UserID     string `json:"user_id"`
	PointsUsed string `json:"points_used"`
}

func (m wireMetadata) decode() (Metadata, error) {
	userID, err := strconv.ParseInt(m.UserID, 10, 64)
	if err != nil {
		return Metadata{}, ErrPayloadMalformed
	}
	points := 0
	if m.PointsUsed != "" {
		points, err = strconv.Atoi(m.PointsUsed)
		if err != nil || points < 0 {
			return Metadata{}, ErrPayloadMalformed
		}
	}
	return Metadata{UserID: userID, PointsUsed: points}, nil
}

func encodeMetadata(m Metadata) wireMetadata {
	return wireMetadata{
		UserID:     strconv.FormatInt(m.UserID, 10),
		PointsUsed: strconv.Itoa(m.PointsUsed),
	}
}

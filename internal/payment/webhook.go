package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	EventCheckoutCompleted = "checkout_completed"
	EventPaymentSucceeded  = "payment_succeeded"
	EventPaymentFailed     = "payment_failed"
)

// Event is a verified webhook notification. Delivery is at-least-once;
// consumers must tolerate duplicates.
type Event struct {
	Type       string
	PaymentRef string
	Metadata   Metadata
}

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Gateway-Signature"

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		PaymentRef string       `json:"payment_ref"`
		Metadata   wireMetadata `json:"metadata"`
	} `json:"data"`
}

// Sign computes the signature the gateway attaches to a payload. Used
// by tests and by anything replaying events.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook verifies the payload signature and decodes the event.
// An unverifiable or malformed payload never reaches settlement: the
// caller rejects the request and the gateway redelivers.
func ParseWebhook(payload []byte, signature, secret string) (*Event, error) {
	expected := Sign(payload, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrSignatureInvalid
	}

	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
	}

	switch body.Type {
	case EventCheckoutCompleted, EventPaymentSucceeded, EventPaymentFailed:
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrPayloadMalformed, body.Type)
	}

	if body.Data.PaymentRef == "" {
		return nil, fmt.Errorf("%w: missing payment_ref", ErrPayloadMalformed)
	}

	event := &Event{
		Type:       body.Type,
		PaymentRef: body.Data.PaymentRef,
	}

	// payment_failed events may omit metadata entirely.
	if body.Data.Metadata.UserID != "" {
		meta, err := body.Data.Metadata.decode()
		if err != nil {
			return nil, err
		}
		event.Metadata = meta
	}

	return event, nil
}

package payment

import (
	"errors"
	"testing"
)

func TestParseWebhookValid(t *testing.T) {
	payload := []byte(`{
		"type": "payment_succeeded",
		"data": {
			"payment_ref": "pi_123",
			"metadata": {"user_id": "42", "points_used": "30"}
		}
	}`)
	secret := "whsec_test"

	event, err := ParseWebhook(payload, Sign(payload, secret), secret)
	if err != nil {
		t.Fatalf("Parse webhook: %v", err)
	}

	if event.Type != EventPaymentSucceeded {
		t.Errorf("Expected type %s, got %s", EventPaymentSucceeded, event.Type)
	}
	if event.PaymentRef != "pi_123" {
		t.Errorf("Expected payment ref pi_123, got %s", event.PaymentRef)
	}
	if event.Metadata.UserID != 42 {
		t.Errorf("Expected user ID 42, got %d", event.Metadata.UserID)
	}
	if event.Metadata.PointsUsed != 30 {
		t.Errorf("Expected 30 points, got %d", event.Metadata.PointsUsed)
	}
}

func TestParseWebhookBadSignature(t *testing.T) {
	payload := []byte(`{"type": "payment_succeeded", "data": {"payment_ref": "pi_123"}}`)

	_, err := ParseWebhook(payload, Sign(payload, "other_secret"), "whsec_test")
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Expected signature error, got: %v", err)
	}

	_, err = ParseWebhook(payload, "", "whsec_test")
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Expected signature error for empty signature, got: %v", err)
	}
}

func TestParseWebhookTamperedPayload(t *testing.T) {
	payload := []byte(`{"type": "payment_succeeded", "data": {"payment_ref": "pi_123"}}`)
	signature := Sign(payload, "whsec_test")

	tampered := []byte(`{"type": "payment_succeeded", "data": {"payment_ref": "pi_999"}}`)

	_, err := ParseWebhook(tampered, signature, "whsec_test")
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Errorf("Expected signature error, got: %v", err)
	}
}

func TestParseWebhookMalformedJSON(t *testing.T) {
	payload := []byte(`{"type": `)
	secret := "whsec_test"

	_, err := ParseWebhook(payload, Sign(payload, secret), secret)
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Errorf("Expected malformed payload error, got: %v", err)
	}
}

func TestParseWebhookUnknownType(t *testing.T) {
	payload := []byte(`{"type": "invoice_created", "data": {"payment_ref": "pi_123"}}`)
	secret := "whsec_test"

	_, err := ParseWebhook(payload, Sign(payload, secret), secret)
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Errorf("Expected malformed payload error, got: %v", err)
	}
}

func TestParseWebhookMissingPaymentRef(t *testing.T) {
	payload := []byte(`{"type": "payment_succeeded", "data": {}}`)
	secret := "whsec_test"

	_, err := ParseWebhook(payload, Sign(payload, secret), secret)
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Errorf("Expected malformed payload error, got: %v", err)
	}
}

func TestParseWebhookFailureWithoutMetadata(t *testing.T) {
	payload := []byte(`{"type": "payment_failed", "data": {"payment_ref": "pi_123"}}`)
	secret := "whsec_test"

	event, err := ParseWebhook(payload, Sign(payload, secret), secret)
	if err != nil {
		t.Fatalf("Parse webhook: %v", err)
	}

	if event.Metadata.UserID != 0 {
		t.Errorf("Expected zero metadata, got user ID %d", event.Metadata.UserID)
	}
}

func TestParseWebhookBadMetadata(t *testing.T) {
	payload := []byte(`{
		"type": "payment_succeeded",
		"data": {
			"payment_ref": "pi_123",
			"metadata": {"user_id": "not-a-number"}
		}
	}`)
	secret := "whsec_test"

	_, err := ParseWebhook(payload, Sign(payload, secret), secret)
	if !errors.Is(err, ErrPayloadMalformed) {
		t.Errorf("Expected malformed payload error, got: %v", err)
	}
}

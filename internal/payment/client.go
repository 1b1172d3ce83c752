package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/amalikprincem05/e-bazzari/internal/config"
	"github.com/google/uuid"
)

// Client talks to the gateway's REST API. All credentials arrive via
// config at construction; nothing here reads the environment.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type sessionCreateBody struct {
	LineItems   []LineItem   `json:"line_items"`
	AmountCents int64        `json:"amount"`
	Currency    string       `json:"currency"`
	Email       string       `json:"customer_email,omitempty"`
	SuccessURL  string       `json:"success_url"`
	CancelURL   string       `json:"cancel_url"`
	Metadata    wireMetadata `json:"metadata"`
}

type sessionResponse struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	PaymentStatus string       `json:"payment_status"`
	PaymentRef    string       `json:"payment_ref"`
	Metadata      wireMetadata `json:"metadata"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body := sessionCreateBody{
		LineItems:   req.LineItems,
		AmountCents: req.AmountCents,
		Currency:    "usd",
		Email:       req.CustomerEmail,
		SuccessURL:  req.SuccessURL,
		CancelURL:   req.CancelURL,
		Metadata:    encodeMetadata(req.Metadata),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Idempotency-Key", uuid.New().String())

	var resp sessionResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}

	return &Session{ID: resp.ID, URL: resp.URL}, nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("build session lookup: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	var resp sessionResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}

	meta, err := resp.Metadata.decode()
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	return &SessionStatus{
		ID:         resp.ID,
		Paid:       resp.PaymentStatus == "paid",
		PaymentRef: resp.PaymentRef,
		Metadata:   meta,
	}, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}

	return nil
}

// Package billing integrates the payment provider: checkout-session
// creation for plan purchases and signed webhook verification for the
// fulfillment callback.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reelhaus/listingreel/pkg/httputil"
)

const (
	defaultBaseURL = "https://api.stripe.com"

	// WebhookTolerance is the replay window: events whose signed timestamp
	// is older than this are rejected even with a valid signature.
	WebhookTolerance = 300 * time.Second
)

// Client talks to the payment provider.
type Client struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *httputil.RetryClient
}

func NewClient(secretKey, webhookSecret string) *Client {
	return &Client{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       defaultBaseURL,
		client: httputil.NewRetryClient(
			&http.Client{Timeout: 30 * time.Second},
			httputil.DefaultRetryConfig(),
		),
	}
}

// NewClientWithBaseURL points the client at a non-default API host.
func NewClientWithBaseURL(secretKey, webhookSecret, baseURL string) *Client {
	c := NewClient(secretKey, webhookSecret)
	c.baseURL = baseURL
	return c
}

// CheckoutSession is the provider's hosted payment page handle.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession opens a hosted checkout for the given plan price.
// The provider expects form-encoded bodies, not JSON.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceID, successURL, cancelURL string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	log.Printf("[Billing] Creating checkout session (price=%s)", priceID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	if session.URL == "" {
		return nil, fmt.Errorf("no checkout URL in response: %s", string(body))
	}

	return &session, nil
}

// WebhookEvent is the decoded webhook envelope.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// VerifyWebhookSignature checks the provider's signature header against the
// raw request body. The header carries a timestamp and one or more v1
// signatures: "t=1700000000,v1=abcdef...". The expected signature is
// HMAC-SHA256 over "{timestamp}.{raw body}" keyed with the webhook secret.
// Events signed more than WebhookTolerance ago are rejected as replays.
func (c *Client) VerifyWebhookSignature(payload []byte, sigHeader string, now time.Time) error {
	if sigHeader == "" {
		return fmt.Errorf("missing signature header")
	}

	var timestamp int64
	var signatures [][]byte

	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid signature timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue // malformed entry, another v1 may still match
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 {
		return fmt.Errorf("no timestamp in signature header")
	}
	if len(signatures) == 0 {
		return fmt.Errorf("no v1 signatures in signature header")
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > WebhookTolerance || age < -WebhookTolerance {
		return fmt.Errorf("signature timestamp outside tolerance (age %v)", age.Truncate(time.Second))
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if len(sig) == len(expected) && subtle.ConstantTimeCompare(sig, expected) == 1 {
			return nil
		}
	}

	return fmt.Errorf("no matching signature")
}

// ParseWebhookEvent verifies and decodes a webhook delivery.
func (c *Client) ParseWebhookEvent(payload []byte, sigHeader string, now time.Time) (*WebhookEvent, error) {
	if err := c.VerifyWebhookSignature(payload, sigHeader, now); err != nil {
		return nil, err
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}

	return &event, nil
}

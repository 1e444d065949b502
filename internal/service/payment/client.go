// internal/service/payment/client.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	BaseURL   string
	ClientID  string
	Secret    string
	WebhookID string
	BrandName string
	ReturnURL string
	CancelURL string
}

// Client talks to the payment provider's REST API. Every call fetches the
// access token through the injected TokenCache first.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  TokenCache
	logger *zap.Logger
}

func NewClient(cfg Config, cache TokenCache, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		cache:  cache,
		logger: logger,
	}
}

// tokenTTLSkew is subtracted from expires_in so a cached token never outlives
// its provider-side validity.
const tokenTTLSkew = 60 * time.Second

func (c *Client) fetchAccessToken(ctx context.Context) (string, error) {
	token, err := c.cache.Get(ctx)
	if err != nil {
		// Cache trouble is not fatal; fall through to the provider.
		c.logger.Warn("token cache read failed", zap.Error(err))
	}
	if token != "" {
		return token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	ttl := time.Duration(out.ExpiresIn)*time.Second - tokenTTLSkew
	if ttl > 0 {
		if err := c.cache.Set(ctx, out.AccessToken, ttl); err != nil {
			c.logger.Warn("token cache write failed", zap.Error(err))
		}
	}

	return out.AccessToken, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.fetchAccessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d for %s %s: %s", resp.StatusCode, method, path, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}

// VerifySignature asks the provider to verify a webhook delivery. A negative
// result is not an error; the caller rejects with 403 and no side effects.
func (c *Client) VerifySignature(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	payload := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.cfg.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/notification/verify-webhook-signature", payload, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}

type SubscriptionParams struct {
	ProviderPlanID string
	BusinessID     int64
	GivenName      string
	Surname        string
	Email          string
}

type CreatedSubscription struct {
	ProviderSubscriptionID string
	ApprovalURL            string
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

func approvalLink(links []link) string {
	for _, l := range links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// CreateSubscription starts a provider-side subscription and returns the link
// the subscriber must approve. The business id travels in custom_id and comes
// back on every webhook for that subscription.
func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionParams) (*CreatedSubscription, error) {
	payload := map[string]interface{}{
		"plan_id":   params.ProviderPlanID,
		"custom_id": fmt.Sprintf("%d", params.BusinessID),
		"quantity":  "1",
		"subscriber": map[string]interface{}{
			"name": map[string]string{
				"given_name": params.GivenName,
				"surname":    params.Surname,
			},
			"email_address": params.Email,
		},
		"application_context": map[string]interface{}{
			"brand_name":  c.cfg.BrandName,
			"locale":      "en-US",
			"user_action": "SUBSCRIBE_NOW",
			"payment_method": map[string]string{
				"payer_selected":  "PAYPAL",
				"payee_preferred": "IMMEDIATE_PAYMENT_REQUIRED",
			},
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
	}

	var out struct {
		ID    string `json:"id"`
		Links []link `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &out); err != nil {
		return nil, err
	}

	approve := approvalLink(out.Links)
	if approve == "" {
		return nil, fmt.Errorf("provider subscription %s has no approval link", out.ID)
	}

	return &CreatedSubscription{ProviderSubscriptionID: out.ID, ApprovalURL: approve}, nil
}

// CancelSubscription cancels a provider subscription. The lifecycle transition
// itself arrives later as a webhook.
func (c *Client) CancelSubscription(ctx context.Context, providerSubscriptionID, reason string) error {
	payload := map[string]string{"reason": reason}
	path := fmt.Sprintf("/v1/billing/subscriptions/%s/cancel", providerSubscriptionID)
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

type CheckoutSession struct {
	SessionID string
	URL       string
}

// CreateCheckoutSession creates a provider checkout for an order. The order id
// travels in custom_id so the completed-payment webhook can settle it.
func (c *Client) CreateCheckoutSession(ctx context.Context, amountMinor int64, currency string, orderID int64) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": fmt.Sprintf("%d", orderID),
				"amount": map[string]string{
					"currency_code": currency,
					"value":         MinorToDecimal(amountMinor),
				},
			},
		},
		"application_context": map[string]string{
			"brand_name": c.cfg.BrandName,
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
	}

	var out struct {
		ID    string `json:"id"`
		Links []link `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", payload, &out); err != nil {
		return nil, err
	}

	approve := approvalLink(out.Links)
	if approve == "" {
		return nil, fmt.Errorf("checkout session %s has no approval link", out.ID)
	}

	return &CheckoutSession{SessionID: out.ID, URL: approve}, nil
}

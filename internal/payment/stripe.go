// Package payment verifies checkout sessions before full-length renders are
// scheduled.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"manifest/internal/infra"
)

// Verifier reports whether a checkout session has been paid.
type Verifier interface {
	IsPaid(ctx context.Context, sessionID string) (bool, error)
}

type StripeOptions struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// StripeVerifier looks up Checkout Sessions through the Stripe REST API.
type StripeVerifier struct {
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *infra.Logger
}

const stripeDefaultTimeout = 10 * time.Second

type stripeSession struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewStripeVerifier(opts StripeOptions) (*StripeVerifier, error) {
	if strings.TrimSpace(opts.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: stripeDefaultTimeout}
	}
	return &StripeVerifier{
		secretKey: strings.TrimSpace(opts.SecretKey),
		baseURL:   baseURL,
		client:    client,
		logger:    infra.OrNop(opts.Logger),
	}, nil
}

// IsPaid implements Verifier. Unknown sessions are reported as unpaid.
func (s *StripeVerifier) IsPaid(ctx context.Context, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, nil
	}
	endpoint := s.baseURL + "/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("stripe: build request: %w", err)
	}
	req.SetBasicAuth(s.secretKey, "")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("stripe: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("stripe: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		s.logger.Warn().Str("session_id", sessionID).Msg("stripe: checkout session not found")
		return false, nil
	}
	if resp.StatusCode >= 300 {
		var apiErr stripeErrorResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return false, fmt.Errorf("stripe: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return false, fmt.Errorf("stripe: status %d", resp.StatusCode)
	}
	var session stripeSession
	if err := json.Unmarshal(body, &session); err != nil {
		return false, fmt.Errorf("stripe: decode session: %w", err)
	}
	return session.PaymentStatus == "paid", nil
}

var _ Verifier = (*StripeVerifier)(nil)

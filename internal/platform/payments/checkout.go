package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CheckoutParams describes a checkout session for one appointment payment.
// AmountCents is the consultation fee in the smallest currency unit.
type CheckoutParams struct {
	AppointmentID string
	PaymentID     string
	PatientEmail  string
	Description   string
	AmountCents   int64
}

// CheckoutSession is the created session callers redirect the patient to.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutClient creates payment sessions. Satisfied by StripeClient and by
// test fakes.
type CheckoutClient interface {
	CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

// StripeClient creates Stripe Checkout Sessions over the form-encoded HTTP
// API.
type StripeClient struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     zerolog.Logger
	dryRun     bool
}

func NewStripeClient(secretKey, successURL, cancelURL string, logger zerolog.Logger) *StripeClient {
	return &StripeClient{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun returns fake session URLs without calling Stripe.
func (s *StripeClient) WithDryRun(enabled bool) *StripeClient {
	s.dryRun = enabled
	return s
}

// CreateSession creates a checkout session carrying the appointment and
// payment ids in metadata so the webhook can correlate the capture back.
func (s *StripeClient) CreateSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if s.dryRun {
		fakeID := "cs_dryrun_" + uuid.NewString()[:8]
		s.logger.Info().
			Str("appointment_id", params.AppointmentID).
			Int64("amount_cents", params.AmountCents).
			Msg("stripe dry run: skipping checkout session creation")
		return &CheckoutSession{
			ID:  fakeID,
			URL: "https://checkout.stripe.com/dry-run/" + fakeID,
		}, nil
	}

	description := strings.TrimSpace(params.Description)
	if description == "" {
		description = "Consultation"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", params.AmountCents))
	form.Set("line_items[0][price_data][product_data][name]", description)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", s.successURL)
	form.Set("cancel_url", s.cancelURL)
	if params.PatientEmail != "" {
		form.Set("customer_email", params.PatientEmail)
	}

	// Metadata for webhook correlation
	form.Set("metadata[appointment_id]", params.AppointmentID)
	form.Set("metadata[payment_id]", params.PaymentID)

	apiURL := s.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}

	return &CheckoutSession{ID: parsed.ID, URL: parsed.URL}, nil
}

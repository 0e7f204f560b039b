// Package gateway holds the outbound payment-provider clients.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	"go.uber.org/zap"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeGateway talks to the Stripe REST API. Every mutating call carries an
// Idempotency-Key so our own retries cannot double-charge.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
	log       *zap.Logger
}

func NewStripeGateway(secretKey string, log *zap.Logger) *StripeGateway {
	return &StripeGateway{
		secretKey: secretKey,
		baseURL:   stripeAPIBase,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.Named("payment.gateway.stripe"),
	}
}

// WithBaseURL points the client at a different endpoint, for tests.
func (g *StripeGateway) WithBaseURL(base string) *StripeGateway {
	g.baseURL = strings.TrimRight(base, "/")
	return g
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req paymentdomain.GatewayIntentRequest) (paymentdomain.GatewayIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("metadata[invoice_id]", req.InvoiceID.String())

	var out struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	raw, err := g.post(ctx, "/payment_intents", form, &out)
	if err != nil {
		return paymentdomain.GatewayIntent{}, err
	}
	return paymentdomain.GatewayIntent{
		IntentID:     out.ID,
		ClientSecret: out.ClientSecret,
		Raw:          raw,
	}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req paymentdomain.GatewayChargeRequest) (paymentdomain.GatewayCharge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("source", req.CardToken)
	form.Set("metadata[invoice_id]", req.InvoiceID.String())

	var out struct {
		ID            string `json:"id"`
		Paid          bool   `json:"paid"`
		FailureReason string `json:"failure_message"`
	}
	raw, err := g.post(ctx, "/charges", form, &out)
	if err != nil {
		return paymentdomain.GatewayCharge{}, err
	}
	return paymentdomain.GatewayCharge{
		ChargeID: out.ID,
		Paid:     out.Paid,
		Failure:  out.FailureReason,
		Raw:      raw,
	}, nil
}

// post sends the form and returns the raw response body alongside decoding it
// into out; callers persist the raw body on the transaction.
func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Error("stripe request failed", zap.String("path", path), zap.Error(err))
		return nil, paymentdomain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		g.log.Error("stripe server error",
			zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, paymentdomain.ErrGatewayUnavailable
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe: %s", stripeErrorMessage(body, resp.StatusCode))
	}
	return body, json.Unmarshal(body, out)
}

func stripeErrorMessage(body []byte, status int) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("http status %d", status)
}

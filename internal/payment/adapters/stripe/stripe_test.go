package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	"github.com/stretchr/testify/assert"
)

const testSecret = "whsec_test"

func signedHeader(t *testing.T, payload []byte, secret string, ts string) http.Header {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))
	sig := hex.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, sig))
	return headers
}

func newTestAdapter(t *testing.T) paymentdomain.PaymentAdapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{WebhookSecret: testSecret})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func TestFactory_RequiresSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
	assert.Equal(t, "stripe", NewFactory().Provider())
}

func TestVerify(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)

	assert.NoError(t, adapter.Verify(context.Background(), payload,
		signedHeader(t, payload, testSecret, "1767268800")))

	// Wrong secret.
	err := adapter.Verify(context.Background(), payload,
		signedHeader(t, payload, "whsec_other", "1767268800"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	// Tampered payload.
	err = adapter.Verify(context.Background(), []byte(`{"id":"evt_2"}`),
		signedHeader(t, payload, testSecret, "1767268800"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	// Missing header.
	err = adapter.Verify(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	// Malformed header.
	headers := http.Header{}
	headers.Set("Stripe-Signature", "not-a-signature")
	err = adapter.Verify(context.Background(), payload, headers)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestParse_PaymentIntentSucceeded(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_100",
		"type": "payment_intent.succeeded",
		"created": 1767268800,
		"data": {"object": {
			"id": "pi_100",
			"amount": 4250,
			"amount_received": 4250,
			"currency": "usd",
			"metadata": {"invoice_id": "123456789"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_100", event.ProviderEventID)
	assert.Equal(t, "pi_100", event.ProviderPaymentID)
	assert.Equal(t, paymentdomain.EventTypePaymentSucceeded, event.Type)
	assert.Equal(t, int64(123456789), int64(event.InvoiceID))
	assert.Equal(t, int64(4250), event.Amount)
	assert.Equal(t, "USD", event.Currency)
	assert.Equal(t, int64(1767268800), event.OccurredAt.Unix())
}

func TestParse_PaymentIntentFailed(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_101",
		"type": "payment_intent.payment_failed",
		"data": {"object": {
			"id": "pi_101",
			"amount": 4250,
			"currency": "usd",
			"metadata": {"invoice_id": "42"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, paymentdomain.EventTypePaymentFailed, event.Type)
	assert.Equal(t, int64(42), int64(event.InvoiceID))
}

func TestParse_UnhandledTypeIgnored(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_102","type":"customer.created","data":{"object":{}}}`)

	_, err := adapter.Parse(context.Background(), payload)
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParse_MissingInvoiceMetadata(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_103",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_103", "amount": 100, "currency": "usd", "metadata": {}}}
	}`)

	_, err := adapter.Parse(context.Background(), payload)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}

func TestParse_InvalidJSON(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.Parse(context.Background(), []byte("{"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

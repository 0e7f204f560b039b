package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/adapters"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/adapters/stripe"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testSecret = "whsec_test"

type paymentRecorder struct {
	mu     sync.Mutex
	events []*paymentdomain.PaymentEvent
	err    error
}

func (p *paymentRecorder) CreateIntent(ctx context.Context, req paymentdomain.IntentRequest) (paymentdomain.IntentResponse, error) {
	return paymentdomain.IntentResponse{}, nil
}

func (p *paymentRecorder) SubmitDirect(ctx context.Context, req paymentdomain.DirectChargeRequest) (paymentdomain.PaymentTransaction, error) {
	return paymentdomain.PaymentTransaction{}, nil
}

func (p *paymentRecorder) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *paymentRecorder) ListTransactions(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.PaymentTransaction, error) {
	return nil, nil
}

func (p *paymentRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type auditEntry struct {
	action   string
	targetID string
	metadata map[string]any
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *auditRecorder) AuditLog(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, targetID: targetID, metadata: metadata})
}

func (a *auditRecorder) all() []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auditEntry(nil), a.entries...)
}

type webhookFixture struct {
	payments *paymentRecorder
	audit    *auditRecorder
	svc      paymentdomain.WebhookService
}

func setupWebhookTest(t *testing.T) *webhookFixture {
	t.Helper()

	payments := &paymentRecorder{}
	audit := &auditRecorder{}
	svc := NewService(Params{
		Log:        zap.NewNop(),
		PaymentSvc: payments,
		Adapters:   adapters.NewRegistry(stripe.NewFactory()),
		AuditSvc:   audit,
		Cfg:        config.Config{PaymentGatewayWebhookSecret: testSecret},
	})
	return &webhookFixture{payments: payments, audit: audit, svc: svc}
}

func signedHeader(t *testing.T, payload []byte, secret, ts string) http.Header {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(ts + "." + string(payload)))
	sig := hex.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, sig))
	return headers
}

func intentSucceededPayload(invoiceID int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_ok",
		"type": "payment_intent.succeeded",
		"created": 1767268800,
		"data": {"object": {
			"id": "pi_ok",
			"amount": 4250,
			"currency": "usd",
			"metadata": {"invoice_id": "%d"}
		}}
	}`, invoiceID))
}

func TestIngestWebhook_ValidSignature(t *testing.T) {
	f := setupWebhookTest(t)
	payload := intentSucceededPayload(42)

	err := f.svc.IngestWebhook(context.Background(), "stripe", payload,
		signedHeader(t, payload, testSecret, "1767268800"))
	assert.NoError(t, err)
	assert.Equal(t, 1, f.payments.count())
	assert.Empty(t, f.audit.all())
}

func TestIngestWebhook_BadSignatureIsAudited(t *testing.T) {
	f := setupWebhookTest(t)
	payload := intentSucceededPayload(42)

	err := f.svc.IngestWebhook(context.Background(), "stripe", payload,
		signedHeader(t, payload, "whsec_other", "1767268800"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	// Rejected with no state change, but on the audit record.
	assert.Zero(t, f.payments.count())
	entries := f.audit.all()
	assert.Len(t, entries, 1)
	assert.Equal(t, "payment.webhook_rejected", entries[0].action)
	assert.Equal(t, "stripe", entries[0].targetID)
	assert.Equal(t, "invalid_signature", entries[0].metadata["reason"])
}

func TestIngestWebhook_UnknownProvider(t *testing.T) {
	f := setupWebhookTest(t)

	err := f.svc.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderNotFound)
	assert.Zero(t, f.payments.count())
}

func TestIngestWebhook_ReplayAcknowledged(t *testing.T) {
	f := setupWebhookTest(t)
	f.payments.err = paymentdomain.ErrEventAlreadyProcessed
	payload := intentSucceededPayload(42)

	err := f.svc.IngestWebhook(context.Background(), "stripe", payload,
		signedHeader(t, payload, testSecret, "1767268800"))
	assert.NoError(t, err, "redelivery of a processed event is acknowledged")
}

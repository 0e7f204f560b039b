package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	clientrepo "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/repository"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	linkdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers/pdf"
	usagedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/domain"
	usagerepo "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/repository"
	usageservice "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type allowAllAuthz struct{}

func (allowAllAuthz) Require(ctx context.Context, object, action string) error { return nil }

type noopAudit struct{}

func (noopAudit) AuditLog(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
}

type cfgStub struct {
	cfg configdomain.BillingConfiguration
}

func (s *cfgStub) Get(ctx context.Context) (configdomain.BillingConfiguration, error) {
	return s.cfg, nil
}

func (s *cfgStub) Update(ctx context.Context, req configdomain.UpdateRequest) (configdomain.BillingConfiguration, error) {
	return s.cfg, nil
}

// mailRecorder stands in for the mail service and just records what the
// invoice service asked it to send.
type mailRecorder struct {
	mu        sync.Mutex
	enqueued  []maildomain.EnqueueRequest
	cancelled []snowflake.ID
}

func (m *mailRecorder) Enqueue(ctx context.Context, req maildomain.EnqueueRequest) (maildomain.MailLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, req)
	return maildomain.MailLog{Status: maildomain.StatusSuccess}, nil
}

func (m *mailRecorder) RetrySweep(ctx context.Context, batchSize int) (maildomain.SweepSummary, error) {
	return maildomain.SweepSummary{}, nil
}

func (m *mailRecorder) Retry(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, nil
}

func (m *mailRecorder) CancelPending(ctx context.Context, invoiceID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, invoiceID)
	return nil
}

func (m *mailRecorder) List(ctx context.Context, filter maildomain.ListFilter) ([]maildomain.MailLog, int64, error) {
	return nil, 0, nil
}

func (m *mailRecorder) GetByID(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, maildomain.ErrMailLogNotFound
}

func (m *mailRecorder) byType(emailType string) []maildomain.EnqueueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []maildomain.EnqueueRequest
	for _, req := range m.enqueued {
		if req.EmailType == emailType {
			out = append(out, req)
		}
	}
	return out
}

type linkStub struct{}

func (linkStub) EnsureForInvoice(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (linkdomain.PaymentLink, error) {
	return linkdomain.PaymentLink{
		InvoiceID: invoiceID,
		Token:     fmt.Sprintf("tok-%d", invoiceID),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (linkStub) Resolve(ctx context.Context, token string) (linkdomain.PaymentLink, error) {
	return linkdomain.PaymentLink{}, linkdomain.ErrLinkNotFound
}

func (linkStub) PublicURL(token string) string {
	return "http://localhost:8080/pay/" + token
}

type reminderRecorder struct {
	mu        sync.Mutex
	cancelled []snowflake.ID
}

func (r *reminderRecorder) CancelForInvoice(ctx context.Context, invoiceID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, invoiceID)
	return nil
}

type invoiceFixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	svc       invoicedomain.Service
	mail      *mailRecorder
	reminders *reminderRecorder
	cfg       *cfgStub
}

func defaultTestConfig() configdomain.BillingConfiguration {
	return configdomain.BillingConfiguration{
		ID:                    configdomain.SingletonID,
		MailerName:            "DocBill",
		MailerAddress:         "billing@docbill.test",
		InvoiceDateDay:        1,
		DueDateDays:           14,
		ReminderFrequencyDays: 7,
		MaxReminderCount:      3,
		AutoGenerateEnabled:   true,
		PaymentGateway:        "stripe",
		InvoicePrefix:         "INV",
		Currency:              "USD",
		TaxRateBps:            0,
		MailMaxRetries:        3,
		PaymentLinkTTLDays:    30,
	}
}

func setupInvoiceTest(t *testing.T, dsn string) *invoiceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&clientdomain.Client{},
		&usagedomain.DocumentUsage{},
		&usagedomain.ClientUsage{},
		&invoicedomain.Invoice{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, _ := snowflake.NewNode(1)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	usageSvc := usageservice.NewService(usageservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fakeClock,
		Ledger: usagerepo.NewLedgerReader(usagerepo.Params{DB: db}),
	})

	mail := &mailRecorder{}
	reminders := &reminderRecorder{}
	cfg := &cfgStub{cfg: defaultTestConfig()}

	svc := NewService(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		BillingCfg: cfg,
		Usage:      usageSvc,
		Clients:    clientrepo.New(clientrepo.Params{DB: db}),
		Links:      linkStub{},
		Mail:       mail,
		PDF:        &pdf.NoOpRenderer{},
		AuthzSvc:   allowAllAuthz{},
		AuditSvc:   noopAudit{},
		Reminders:  reminders,
	})

	return &invoiceFixture{
		db:        db,
		node:      node,
		clock:     fakeClock,
		svc:       svc,
		mail:      mail,
		reminders: reminders,
		cfg:       cfg,
	}
}

func (f *invoiceFixture) seedClient(t *testing.T, name string) clientdomain.Client {
	t.Helper()
	client := clientdomain.Client{
		ID:     f.node.Generate(),
		Name:   name,
		Email:  name + "@client.test",
		Active: true,
	}
	if err := f.db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return client
}

func (f *invoiceFixture) seedUsage(t *testing.T, clientID snowflake.ID, day int, pages, costCents int64) {
	t.Helper()
	doc := usagedomain.DocumentUsage{
		ID:           f.node.Generate(),
		ClientID:     clientID,
		DocumentName: fmt.Sprintf("doc-%d.pdf", day),
		PageCount:    pages,
		CostCents:    costCents,
		ProcessedAt:  time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC),
	}
	if err := f.db.Create(&doc).Error; err != nil {
		t.Fatalf("seed usage: %v", err)
	}
}

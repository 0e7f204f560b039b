package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
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
	reminderdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type allowAllAuthz struct{}

func (allowAllAuthz) Require(ctx context.Context, object, action string) error { return nil }

type cfgStub struct {
	cfg configdomain.BillingConfiguration
}

func (s *cfgStub) Get(ctx context.Context) (configdomain.BillingConfiguration, error) {
	return s.cfg, nil
}

func (s *cfgStub) Update(ctx context.Context, req configdomain.UpdateRequest) (configdomain.BillingConfiguration, error) {
	return s.cfg, nil
}

type mailRecorder struct {
	mu       sync.Mutex
	enqueued []maildomain.EnqueueRequest
}

func (m *mailRecorder) Enqueue(ctx context.Context, req maildomain.EnqueueRequest) (maildomain.MailLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, req)
	return maildomain.MailLog{
		ID:     snowflake.ID(1000 + len(m.enqueued)),
		Status: maildomain.StatusSuccess,
	}, nil
}

func (m *mailRecorder) RetrySweep(ctx context.Context, batchSize int) (maildomain.SweepSummary, error) {
	return maildomain.SweepSummary{}, nil
}

func (m *mailRecorder) Retry(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, nil
}

func (m *mailRecorder) CancelPending(ctx context.Context, invoiceID snowflake.ID) error { return nil }

func (m *mailRecorder) List(ctx context.Context, filter maildomain.ListFilter) ([]maildomain.MailLog, int64, error) {
	return nil, 0, nil
}

func (m *mailRecorder) GetByID(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, maildomain.ErrMailLogNotFound
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enqueued)
}

func (m *mailRecorder) last() maildomain.EnqueueRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueued[len(m.enqueued)-1]
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

type reminderFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	mail  *mailRecorder
	svc   reminderdomain.Service
}

func setupReminderTest(t *testing.T, dsn string) *reminderFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&reminderdomain.InvoiceReminderSchedule{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, _ := snowflake.NewNode(1)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC))
	mail := &mailRecorder{}

	cfg := defaultTestConfig()
	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fakeClock,
		BillingCfg: &cfgStub{cfg: cfg},
		Clients:    clientrepo.New(clientrepo.Params{DB: db}),
		Links:      linkStub{},
		Mail:       mail,
		AuthzSvc:   allowAllAuthz{},
	})

	return &reminderFixture{db: db, node: node, clock: fakeClock, mail: mail, svc: svc}
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

func (f *reminderFixture) seedClient(t *testing.T, name string) clientdomain.Client {
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

// seededPeriodOffset makes each seeded invoice's period unique so repeated
// seeds for one client don't trip the UNIQUE(client_id, period_start,
// period_end) index.
var seededPeriodOffset atomic.Int64

func (f *reminderFixture) seedInvoice(t *testing.T, clientID snowflake.ID, status string, dueDate time.Time) invoicedomain.Invoice {
	t.Helper()
	now := f.clock.Now()
	offset := time.Duration(seededPeriodOffset.Add(1)) * time.Second
	inv := invoicedomain.Invoice{
		ID:              f.node.Generate(),
		InvoiceNumber:   int64(f.node.Generate()),
		FormattedNumber: "INV-000007",
		ClientID:        clientID,
		ClientUsageID:   f.node.Generate(),
		PeriodStart:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Add(offset),
		PeriodEnd:       time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC).Add(offset),
		IssueDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:         dueDate,
		Status:          status,
		SubtotalCents:   4250,
		TotalCents:      4250,
		Currency:        "USD",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := f.db.Create(&inv).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return inv
}

func TestSendDueReminders_LadderWalksToCap(t *testing.T) {
	f := setupReminderTest(t, "file:reminder_ladder?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	pastDue := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	inv := f.seedInvoice(t, client.ID, invoicedomain.StatusUnpaid, pastDue)

	// First pass: the invoice flips to overdue and reminder 1 goes out.
	summary, err := f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), summary.MarkedOverdue)
	assert.Equal(t, 1, summary.Scanned)
	assert.Equal(t, 1, summary.Sent)

	var current invoicedomain.Invoice
	assert.NoError(t, f.db.First(&current, "id = ?", inv.ID).Error)
	assert.Equal(t, invoicedomain.StatusOverdue, current.Status)

	sent := f.mail.last()
	assert.Equal(t, maildomain.EmailTypePaymentReminder, sent.EmailType)
	assert.Equal(t, client.Email, sent.Recipient)
	assert.Contains(t, sent.Subject, "INV-000007")
	assert.Contains(t, sent.Body, "tok-"+fmt.Sprint(inv.ID))

	// Re-running before the next rung is due sends nothing.
	summary, err = f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Zero(t, summary.Sent)
	assert.Equal(t, 1, f.mail.count())

	// Reminder 2 after one frequency interval.
	f.clock.Advance(7*24*time.Hour + time.Hour)
	summary, err = f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	// Reminder 3 hits the cap; no further rung is scheduled.
	f.clock.Advance(7*24*time.Hour + time.Hour)
	summary, err = f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Capped)

	var rungs []reminderdomain.InvoiceReminderSchedule
	assert.NoError(t, f.db.
		Where("invoice_id = ?", inv.ID).
		Order("reminder_number ASC").
		Find(&rungs).Error)
	assert.Len(t, rungs, 3)
	for i, rung := range rungs {
		assert.Equal(t, i+1, rung.ReminderNumber)
		assert.Equal(t, reminderdomain.StatusSent, rung.Status)
		assert.NotNil(t, rung.SentAt)
		assert.NotNil(t, rung.MailLogID, "each sent rung links its mail log")
	}

	// An exhausted ladder sends nothing, no matter how much time passes.
	f.clock.Advance(30 * 24 * time.Hour)
	summary, err = f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Zero(t, summary.Sent)
	assert.Equal(t, 3, f.mail.count())
}

func TestSendDueReminders_FutureDueDateIgnored(t *testing.T) {
	f := setupReminderTest(t, "file:reminder_future?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	f.seedInvoice(t, client.ID, invoicedomain.StatusUnpaid, f.clock.Now().Add(10*24*time.Hour))

	summary, err := f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Zero(t, summary.MarkedOverdue)
	assert.Zero(t, summary.Scanned)
	assert.Zero(t, f.mail.count())
}

func TestSendDueReminders_PaidInvoiceIgnored(t *testing.T) {
	f := setupReminderTest(t, "file:reminder_paid?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	pastDue := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	f.seedInvoice(t, client.ID, invoicedomain.StatusPaid, pastDue)
	f.seedInvoice(t, client.ID, invoicedomain.StatusCancelled, pastDue)

	summary, err := f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Zero(t, summary.Scanned)
	assert.Zero(t, f.mail.count())
}

func TestCancelForInvoice_StopsTheLadder(t *testing.T) {
	f := setupReminderTest(t, "file:reminder_cancel?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	pastDue := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	inv := f.seedInvoice(t, client.ID, invoicedomain.StatusUnpaid, pastDue)

	summary, err := f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	// Sending rung 1 scheduled rung 2; settling the invoice cancels it.
	assert.NoError(t, f.svc.CancelForInvoice(ctx, inv.ID))

	var rungs []reminderdomain.InvoiceReminderSchedule
	assert.NoError(t, f.db.
		Where("invoice_id = ?", inv.ID).
		Order("reminder_number ASC").
		Find(&rungs).Error)
	assert.Len(t, rungs, 2)
	assert.Equal(t, reminderdomain.StatusSent, rungs[0].Status)
	assert.Equal(t, 2, rungs[1].ReminderNumber)
	assert.Equal(t, reminderdomain.StatusCancelled, rungs[1].Status)

	f.clock.Advance(14 * 24 * time.Hour)
	summary, err = f.svc.SendDueReminders(ctx, 50)
	assert.NoError(t, err)
	assert.Zero(t, summary.Sent)
	assert.Equal(t, 1, f.mail.count())
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	reminderdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type cfgStub struct {
	cfg configdomain.BillingConfiguration
}

func (s *cfgStub) Get(ctx context.Context) (configdomain.BillingConfiguration, error) {
	return s.cfg, nil
}

func (s *cfgStub) Update(ctx context.Context, req configdomain.UpdateRequest) (configdomain.BillingConfiguration, error) {
	return s.cfg, nil
}

// invoiceStub counts generation runs; the other operations are never reached
// from the scheduler.
type invoiceStub struct {
	mu         sync.Mutex
	generated  int
	lastRun    time.Time
	generateFn func(ctx context.Context) error
}

func (s *invoiceStub) GenerateMonthlyInvoices(ctx context.Context, runDate time.Time) (invoicedomain.GenerationSummary, error) {
	s.mu.Lock()
	s.generated++
	s.lastRun = runDate
	fn := s.generateFn
	s.mu.Unlock()
	if fn != nil {
		return invoicedomain.GenerationSummary{}, fn(ctx)
	}
	return invoicedomain.GenerationSummary{Generated: 1}, nil
}

func (s *invoiceStub) generateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated
}

func (s *invoiceStub) Settle(ctx context.Context, req invoicedomain.SettleRequest) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *invoiceStub) MarkPaid(ctx context.Context, id snowflake.ID, reference string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *invoiceStub) Cancel(ctx context.Context, id snowflake.ID, reason string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *invoiceStub) UpdateNotes(ctx context.Context, id snowflake.ID, notes string) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, nil
}

func (s *invoiceStub) SendInvoiceEmail(ctx context.Context, id snowflake.ID) error { return nil }

func (s *invoiceStub) RefreshOverdue(ctx context.Context) (int64, error) { return 0, nil }

func (s *invoiceStub) List(ctx context.Context, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, int64, error) {
	return nil, 0, nil
}

func (s *invoiceStub) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
}

func (s *invoiceStub) RevenueReport(ctx context.Context, year int) (invoicedomain.RevenueReport, error) {
	return invoicedomain.RevenueReport{}, nil
}

func (s *invoiceStub) SummaryReport(ctx context.Context) (invoicedomain.SummaryReport, error) {
	return invoicedomain.SummaryReport{}, nil
}

type reminderStub struct {
	mu     sync.Mutex
	sweeps int
	err    error
}

func (s *reminderStub) SendDueReminders(ctx context.Context, batchSize int) (reminderdomain.SweepSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return reminderdomain.SweepSummary{}, s.err
}

func (s *reminderStub) CancelForInvoice(ctx context.Context, invoiceID snowflake.ID) error {
	return nil
}

func (s *reminderStub) sweepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

type mailStub struct {
	mu     sync.Mutex
	sweeps int
}

func (s *mailStub) Enqueue(ctx context.Context, req maildomain.EnqueueRequest) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, nil
}

func (s *mailStub) RetrySweep(ctx context.Context, batchSize int) (maildomain.SweepSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return maildomain.SweepSummary{}, nil
}

func (s *mailStub) Retry(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, nil
}

func (s *mailStub) CancelPending(ctx context.Context, invoiceID snowflake.ID) error { return nil }

func (s *mailStub) List(ctx context.Context, filter maildomain.ListFilter) ([]maildomain.MailLog, int64, error) {
	return nil, 0, nil
}

func (s *mailStub) GetByID(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	return maildomain.MailLog{}, maildomain.ErrMailLogNotFound
}

func (s *mailStub) sweepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

type schedFixture struct {
	sched    *Scheduler
	clock    *clock.FakeClock
	invoices *invoiceStub
	reminder *reminderStub
	mail     *mailStub
	cfg      *cfgStub
}

func setupSchedulerTest(t *testing.T, tuning config.SchedulerTuning) *schedFixture {
	t.Helper()

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))
	invoices := &invoiceStub{}
	reminder := &reminderStub{}
	mail := &mailStub{}
	cfg := &cfgStub{cfg: configdomain.BillingConfiguration{
		InvoiceDateDay:      1,
		AutoGenerateEnabled: true,
	}}

	sched, err := New(Params{
		Log:         zap.NewNop(),
		Clock:       fakeClock,
		Tuning:      config.NewStaticSchedulerTuningHolder(tuning),
		BillingCfg:  cfg,
		InvoiceSvc:  invoices,
		ReminderSvc: reminder,
		MailSvc:     mail,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	return &schedFixture{
		sched:    sched,
		clock:    fakeClock,
		invoices: invoices,
		reminder: reminder,
		mail:     mail,
		cfg:      cfg,
	}
}

func TestNew_MissingDeps(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnce_EmptyEnabledJobsRunsEverything(t *testing.T) {
	f := setupSchedulerTest(t, config.DefaultSchedulerTuning())

	assert.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, f.invoices.generateCount())
	assert.Equal(t, 1, f.reminder.sweepCount())
	assert.Equal(t, 1, f.mail.sweepCount())
}

func TestRunOnce_EnabledJobsFilter(t *testing.T) {
	tuning := config.DefaultSchedulerTuning()
	tuning.EnabledJobs = []string{"reminder_sweep"}
	f := setupSchedulerTest(t, tuning)

	assert.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Zero(t, f.invoices.generateCount())
	assert.Equal(t, 1, f.reminder.sweepCount())
	assert.Zero(t, f.mail.sweepCount())
}

func TestRunOnce_JobNamesAreCaseInsensitive(t *testing.T) {
	tuning := config.DefaultSchedulerTuning()
	tuning.EnabledJobs = []string{"MAIL_RETRY_SWEEP"}
	f := setupSchedulerTest(t, tuning)

	assert.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Zero(t, f.reminder.sweepCount())
	assert.Equal(t, 1, f.mail.sweepCount())
}

func TestRunOnce_JobErrorPropagates(t *testing.T) {
	tuning := config.DefaultSchedulerTuning()
	tuning.EnabledJobs = []string{"reminder_sweep"}
	f := setupSchedulerTest(t, tuning)
	f.reminder.err = errors.New("db gone")

	err := f.sched.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reminder_sweep")
}

func TestRunOnce_TimeoutIsSwallowed(t *testing.T) {
	tuning := config.DefaultSchedulerTuning()
	tuning.EnabledJobs = []string{"generate_invoices"}
	tuning.JobTimeoutSeconds = 0
	f := setupSchedulerTest(t, tuning)
	f.invoices.generateFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	// The job hits its deadline; the loop must keep going, not fail the run.
	assert.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, 1, f.invoices.generateCount())
}

func TestGenerateInvoicesJob_DayGate(t *testing.T) {
	f := setupSchedulerTest(t, config.DefaultSchedulerTuning())
	ctx := context.Background()

	// Day 1 matches the configured invoice day.
	assert.NoError(t, f.sched.GenerateInvoicesJob(ctx))
	assert.Equal(t, 1, f.invoices.generateCount())
	assert.True(t, f.invoices.lastRun.Equal(f.clock.Now()))

	// Any other day is a no-op for the scheduled path.
	f.clock.Advance(24 * time.Hour)
	assert.NoError(t, f.sched.GenerateInvoicesJob(ctx))
	assert.Equal(t, 1, f.invoices.generateCount())
}

func TestGenerateInvoicesJob_AutoGenerateDisabled(t *testing.T) {
	f := setupSchedulerTest(t, config.DefaultSchedulerTuning())
	f.cfg.cfg.AutoGenerateEnabled = false

	assert.NoError(t, f.sched.GenerateInvoicesJob(context.Background()))
	assert.Zero(t, f.invoices.generateCount())
}

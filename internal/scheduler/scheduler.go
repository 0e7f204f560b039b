// Package scheduler drives the recurring billing jobs: monthly invoice
// generation, the reminder sweep and the mail retry sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/actor"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	obsmetrics "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/observability/metrics"
	reminderdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	Tuning      *config.SchedulerTuningHolder
	BillingCfg  configdomain.Service
	InvoiceSvc  invoicedomain.Service
	ReminderSvc reminderdomain.Service
	MailSvc     maildomain.Service
}

type Scheduler struct {
	log         *zap.Logger
	clock       clock.Clock
	tuning      *config.SchedulerTuningHolder
	billingCfg  configdomain.Service
	invoiceSvc  invoicedomain.Service
	reminderSvc reminderdomain.Service
	mailSvc     maildomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Tuning == nil ||
		p.BillingCfg == nil || p.InvoiceSvc == nil || p.ReminderSvc == nil || p.MailSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:       p.Clock,
		tuning:      p.Tuning,
		billingCfg:  p.BillingCfg,
		invoiceSvc:  p.InvoiceSvc,
		reminderSvc: p.ReminderSvc,
		mailSvc:     p.MailSvc,
	}, nil
}

// runJob wraps one job with the system actor, a soft timeout and metrics.
// Timeouts are logged and swallowed so one slow job cannot wedge the loop.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = actor.WithActor(ctx, actor.System())
	log := s.log.With(zap.String("job", name))

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	tuning := s.tuning.Get()
	timeout := time.Duration(tuning.JobTimeoutSeconds) * time.Second

	var err error
	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{"generate_invoices", s.isJobEnabled(tuning, "generate_invoices"), func(ctx context.Context) error {
			return s.runJob(ctx, "generate_invoices", timeout, s.GenerateInvoicesJob)
		}},
		{"reminder_sweep", s.isJobEnabled(tuning, "reminder_sweep"), func(ctx context.Context) error {
			return s.runJob(ctx, "reminder_sweep", timeout, func(ctx context.Context) error {
				return s.ReminderSweepJob(ctx, tuning.BatchSize)
			})
		}},
		{"mail_retry_sweep", s.isJobEnabled(tuning, "mail_retry_sweep"), func(ctx context.Context) error {
			return s.runJob(ctx, "mail_retry_sweep", timeout, func(ctx context.Context) error {
				return s.MailRetrySweepJob(ctx, tuning.BatchSize)
			})
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := time.Duration(s.tuning.Get().RunIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(interval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(tuning config.SchedulerTuning, jobName string) bool {
	// An empty EnabledJobs list means every job runs (monolith mode).
	if len(tuning.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range tuning.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// GenerateInvoicesJob runs monthly generation, gated on the configured
// invoice day and the auto-generate switch. Admins can still trigger
// generation directly on other days.
func (s *Scheduler) GenerateInvoicesJob(ctx context.Context) error {
	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.AutoGenerateEnabled {
		return nil
	}
	now := s.clock.Now()
	if now.Day() != cfg.InvoiceDateDay {
		return nil
	}

	summary, err := s.invoiceSvc.GenerateMonthlyInvoices(ctx, now)
	if err != nil {
		return err
	}
	s.log.Info("invoice generation finished",
		zap.Int("generated", summary.Generated),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

func (s *Scheduler) ReminderSweepJob(ctx context.Context, batchSize int) error {
	summary, err := s.reminderSvc.SendDueReminders(ctx, batchSize)
	if err != nil {
		return err
	}
	s.log.Info("reminder sweep finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("sent", summary.Sent),
		zap.Int("capped", summary.Capped),
		zap.Int64("marked_overdue", summary.MarkedOverdue),
	)
	return nil
}

func (s *Scheduler) MailRetrySweepJob(ctx context.Context, batchSize int) error {
	summary, err := s.mailSvc.RetrySweep(ctx, batchSize)
	if err != nil {
		return err
	}
	if summary.Attempted > 0 {
		s.log.Info("mail retry sweep finished",
			zap.Int("attempted", summary.Attempted),
			zap.Int("sent", summary.Sent),
			zap.Int("failed", summary.Failed),
			zap.Int("exhausted", summary.Exhausted),
		)
	}
	return nil
}

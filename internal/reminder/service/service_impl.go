package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	linkdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/domain"
	reminderdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BillingCfg configdomain.Service
	Clients    clientdomain.Repository
	Links      linkdomain.Service
	Mail       maildomain.Service
	AuthzSvc   authorization.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingCfg configdomain.Service
	clients    clientdomain.Repository
	links      linkdomain.Service
	mail       maildomain.Service
	authzSvc   authorization.Service
}

func NewService(p Params) reminderdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reminder.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		clients:    p.Clients,
		links:      p.Links,
		mail:       p.Mail,
		authzSvc:   p.AuthzSvc,
	}
}

func (s *Service) SendDueReminders(ctx context.Context, batchSize int) (reminderdomain.SweepSummary, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectReminder, authorization.ActionRunSweep); err != nil {
		return reminderdomain.SweepSummary{}, err
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return reminderdomain.SweepSummary{}, err
	}
	now := s.clock.Now()
	summary := reminderdomain.SweepSummary{}

	// Persist the overdue flag first so listings and reminder emails agree.
	res := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND due_date < ?`,
		invoicedomain.StatusOverdue, now, invoicedomain.StatusUnpaid, now,
	)
	if res.Error != nil {
		return summary, res.Error
	}
	summary.MarkedOverdue = res.RowsAffected

	var pastDue []invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Where("status IN (?, ?) AND due_date < ?",
			invoicedomain.StatusUnpaid, invoicedomain.StatusOverdue, now).
		Order("due_date ASC").
		Limit(batchSize).
		Find(&pastDue).Error
	if err != nil {
		return summary, err
	}

	frequency := time.Duration(cfg.ReminderFrequencyDays) * 24 * time.Hour
	for i := range pastDue {
		inv := pastDue[i]
		summary.Scanned++

		rung, err := s.dueRung(ctx, cfg, inv, now, frequency)
		if err != nil {
			s.log.Error("reminder schedule load failed",
				zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
			continue
		}
		if rung == nil {
			continue
		}
		if rung.ReminderNumber > cfg.MaxReminderCount {
			// The cap was lowered under an already-scheduled rung.
			if err := s.markRung(ctx, rung, reminderdomain.StatusSkipped, nil, now); err != nil {
				s.log.Error("reminder skip failed",
					zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
			}
			continue
		}

		entry, err := s.sendReminder(ctx, cfg, inv, rung.ReminderNumber)
		if err != nil {
			s.log.Error("reminder send failed",
				zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
			continue
		}

		var mailLogID *snowflake.ID
		if entry.ID != 0 {
			mailLogID = &entry.ID
		}
		if err := s.markRung(ctx, rung, reminderdomain.StatusSent, mailLogID, now); err != nil {
			return summary, err
		}
		summary.Sent++

		if rung.ReminderNumber >= cfg.MaxReminderCount {
			// Ladder exhausted: no next rung, the invoice stays visible in
			// overdue reports for manual follow-up.
			summary.Capped++
			continue
		}
		next := s.newRung(inv, rung.ReminderNumber+1, now.Add(frequency), now)
		if err := s.db.WithContext(ctx).Create(&next).Error; err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (s *Service) CancelForInvoice(ctx context.Context, invoiceID snowflake.ID) error {
	return s.db.WithContext(ctx).Model(&reminderdomain.InvoiceReminderSchedule{}).
		Where("invoice_id = ? AND status = ?", invoiceID, reminderdomain.StatusScheduled).
		Updates(map[string]any{
			"status":     reminderdomain.StatusCancelled,
			"updated_at": s.clock.Now(),
		}).Error
}

// dueRung returns the scheduled rung that has come due for the invoice, or
// nil when there is nothing to fire. The first rung is created on first
// past-due contact, due immediately.
func (s *Service) dueRung(
	ctx context.Context,
	cfg configdomain.BillingConfiguration,
	inv invoicedomain.Invoice,
	now time.Time,
	frequency time.Duration,
) (*reminderdomain.InvoiceReminderSchedule, error) {
	var latest reminderdomain.InvoiceReminderSchedule
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", inv.ID).
		Order("reminder_number DESC").
		First(&latest).Error
	if err == gorm.ErrRecordNotFound {
		rung := s.newRung(inv, 1, now, now)
		if err := s.db.WithContext(ctx).Create(&rung).Error; err != nil {
			return nil, err
		}
		return &rung, nil
	}
	if err != nil {
		return nil, err
	}

	switch latest.Status {
	case reminderdomain.StatusScheduled:
		if latest.ScheduledFor.After(now) {
			return nil, nil
		}
		return &latest, nil

	case reminderdomain.StatusSent:
		if latest.ReminderNumber >= cfg.MaxReminderCount {
			return nil, nil
		}
		// The cap was raised after the ladder stopped: resume one frequency
		// interval after the last send.
		scheduledFor := now
		if latest.SentAt != nil {
			scheduledFor = latest.SentAt.Add(frequency)
		}
		rung := s.newRung(inv, latest.ReminderNumber+1, scheduledFor, now)
		if err := s.db.WithContext(ctx).Create(&rung).Error; err != nil {
			return nil, err
		}
		if rung.ScheduledFor.After(now) {
			return nil, nil
		}
		return &rung, nil

	default:
		// cancelled or skipped: the ladder is stopped.
		return nil, nil
	}
}

func (s *Service) newRung(inv invoicedomain.Invoice, number int, scheduledFor, now time.Time) reminderdomain.InvoiceReminderSchedule {
	return reminderdomain.InvoiceReminderSchedule{
		ID:             s.genID.Generate(),
		InvoiceID:      inv.ID,
		ClientID:       inv.ClientID,
		ReminderNumber: number,
		ScheduledFor:   scheduledFor,
		Status:         reminderdomain.StatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) markRung(
	ctx context.Context,
	rung *reminderdomain.InvoiceReminderSchedule,
	status string,
	mailLogID *snowflake.ID,
	now time.Time,
) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	rung.Status = status
	if status == reminderdomain.StatusSent {
		rung.SentAt = &now
		rung.MailLogID = mailLogID
		updates["sent_at"] = now
		updates["mail_log_id"] = mailLogID
	}
	return s.db.WithContext(ctx).Model(&reminderdomain.InvoiceReminderSchedule{}).
		Where("id = ?", rung.ID).
		Updates(updates).Error
}

func (s *Service) sendReminder(
	ctx context.Context,
	cfg configdomain.BillingConfiguration,
	inv invoicedomain.Invoice,
	reminderNumber int,
) (maildomain.MailLog, error) {
	client, err := s.clients.GetByID(ctx, inv.ClientID)
	if err != nil {
		return maildomain.MailLog{}, err
	}

	ttl := time.Duration(cfg.PaymentLinkTTLDays) * 24 * time.Hour
	link, err := s.links.EnsureForInvoice(ctx, inv.ID, ttl)
	if err != nil {
		return maildomain.MailLog{}, err
	}

	body, err := maildelivery.RenderReminderEmail(maildelivery.ReminderEmailData{
		ClientName:     client.Name,
		InvoiceNumber:  inv.FormattedNumber,
		AmountDue:      invoicedomain.FormatAmount(inv.TotalCents, inv.Currency),
		DueDate:        inv.DueDate.Format("January 2, 2006"),
		ReminderNumber: reminderNumber,
		Overdue:        true,
		PaymentLinkURL: s.links.PublicURL(link.Token),
		MailerName:     cfg.MailerName,
	})
	if err != nil {
		return maildomain.MailLog{}, err
	}

	return s.mail.Enqueue(ctx, maildomain.EnqueueRequest{
		InvoiceID:      inv.ID,
		ClientID:       client.ID,
		EmailType:      maildomain.EmailTypePaymentReminder,
		Recipient:      client.Email,
		Subject:        fmt.Sprintf("Payment reminder: invoice %s is overdue", inv.FormattedNumber),
		Body:           body,
		AttachmentPath: inv.PDFPath,
		MaxRetries:     cfg.MailMaxRetries,
	})
}

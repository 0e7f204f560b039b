package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	linkdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers/pdf"
	usagedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/option"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/pagination"
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
	Usage      usagedomain.Service
	Clients    clientdomain.Repository
	Links      linkdomain.Service
	Mail       maildomain.Service
	PDF        pdf.Renderer
	AuthzSvc   authorization.Service
	AuditSvc   auditdomain.Service
	Reminders  invoicedomain.ReminderCanceller
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingCfg configdomain.Service
	usage      usagedomain.Service
	clients    clientdomain.Repository
	links      linkdomain.Service
	mail       maildomain.Service
	pdf        pdf.Renderer
	authzSvc   authorization.Service
	auditSvc   auditdomain.Service
	reminders  invoicedomain.ReminderCanceller
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		usage:      p.Usage,
		clients:    p.Clients,
		links:      p.Links,
		mail:       p.Mail,
		pdf:        p.PDF,
		authzSvc:   p.AuthzSvc,
		auditSvc:   p.AuditSvc,
		reminders:  p.Reminders,
	}
}

func (s *Service) Settle(ctx context.Context, req invoicedomain.SettleRequest) (invoicedomain.Invoice, error) {
	inv, err := s.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	switch inv.Status {
	case invoicedomain.StatusPaid:
		return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyPaid
	case invoicedomain.StatusCancelled:
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceCancelled
	}
	if !inv.Payable() {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotPayable
	}
	if req.AmountCents != inv.TotalCents {
		return invoicedomain.Invoice{}, invoicedomain.ErrAmountMismatch
	}

	now := s.clock.Now()
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	// Status-guarded update: a concurrent settle loses the race and sees
	// zero rows affected.
	res := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, amount_paid_cents = ?, paid_at = ?, payment_method = ?,
		     payment_reference = ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		invoicedomain.StatusPaid,
		req.AmountCents,
		paidAt,
		req.Method,
		req.Reference,
		now,
		inv.ID,
		invoicedomain.StatusUnpaid,
		invoicedomain.StatusOverdue,
	)
	if res.Error != nil {
		return invoicedomain.Invoice{}, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := s.GetByID(ctx, inv.ID)
		if err != nil {
			return invoicedomain.Invoice{}, err
		}
		if current.Status == invoicedomain.StatusPaid {
			return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyPaid
		}
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceCancelled
	}

	inv.Status = invoicedomain.StatusPaid
	inv.AmountPaidCents = req.AmountCents
	inv.PaidAt = &paidAt
	inv.PaymentMethod = req.Method
	inv.PaymentReference = req.Reference
	inv.UpdatedAt = now

	s.paidCascade(ctx, inv)

	s.auditSvc.AuditLog(ctx, "invoice.paid", "invoice", inv.ID.String(), map[string]any{
		"invoice_number": inv.FormattedNumber,
		"amount_cents":   req.AmountCents,
		"method":         req.Method,
		"reference":      req.Reference,
	})
	return inv, nil
}

// paidCascade runs the post-settlement side effects. All best-effort: the
// payment itself is already durable.
func (s *Service) paidCascade(ctx context.Context, inv invoicedomain.Invoice) {
	if err := s.reminders.CancelForInvoice(ctx, inv.ID); err != nil {
		s.log.Error("reminder cancellation failed",
			zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
	}
	if err := s.mail.CancelPending(ctx, inv.ID); err != nil {
		s.log.Error("pending mail cancellation failed",
			zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
	}
	if err := s.sendReceiptEmail(ctx, inv); err != nil {
		s.log.Error("receipt delivery failed",
			zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
	}
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, reference string) (invoicedomain.Invoice, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectInvoice, authorization.ActionMarkPaid); err != nil {
		return invoicedomain.Invoice{}, err
	}

	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	return s.Settle(ctx, invoicedomain.SettleRequest{
		InvoiceID:   id,
		AmountCents: inv.TotalCents,
		Method:      "manual",
		Reference:   reference,
		PaidAt:      s.clock.Now(),
	})
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, reason string) (invoicedomain.Invoice, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectInvoice, authorization.ActionCancel); err != nil {
		return invoicedomain.Invoice{}, err
	}

	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if inv.Status == invoicedomain.StatusPaid {
		return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyPaid
	}
	if inv.Status == invoicedomain.StatusCancelled {
		return inv, nil
	}

	now := s.clock.Now()
	res := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END, updated_at = ?
		 WHERE id = ? AND status IN (?, ?, ?)`,
		invoicedomain.StatusCancelled,
		reason, reason,
		now,
		inv.ID,
		invoicedomain.StatusNotGenerated,
		invoicedomain.StatusUnpaid,
		invoicedomain.StatusOverdue,
	)
	if res.Error != nil {
		return invoicedomain.Invoice{}, res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrAlreadyPaid
	}

	if err := s.reminders.CancelForInvoice(ctx, inv.ID); err != nil {
		s.log.Error("reminder cancellation failed",
			zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
	}
	if err := s.mail.CancelPending(ctx, inv.ID); err != nil {
		s.log.Error("pending mail cancellation failed",
			zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
	}

	if err := s.sendCancellationEmail(ctx, inv, reason); err != nil {
		s.log.Error("cancellation notice delivery failed",
			zap.Int64("invoice_id", int64(inv.ID)), zap.Error(err))
	}

	s.auditSvc.AuditLog(ctx, "invoice.cancelled", "invoice", inv.ID.String(), map[string]any{
		"invoice_number": inv.FormattedNumber,
		"reason":         reason,
	})

	inv.Status = invoicedomain.StatusCancelled
	if reason != "" {
		inv.Notes = reason
	}
	inv.UpdatedAt = now
	return inv, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id snowflake.ID, notes string) (invoicedomain.Invoice, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectInvoice, authorization.ActionUpdate); err != nil {
		return invoicedomain.Invoice{}, err
	}

	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{"notes": notes, "updated_at": now}).Error; err != nil {
		return invoicedomain.Invoice{}, err
	}

	inv.Notes = notes
	inv.UpdatedAt = now
	return inv, nil
}

func (s *Service) RefreshOverdue(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND due_date < ?`,
		invoicedomain.StatusOverdue,
		s.clock.Now(),
		invoicedomain.StatusUnpaid,
		s.clock.Now(),
	)
	return res.RowsAffected, res.Error
}

func (s *Service) List(ctx context.Context, filter invoicedomain.ListFilter) ([]invoicedomain.Invoice, int64, error) {
	page, pageSize := pagination.Normalize(filter.Page.Page, filter.Page.PageSize)

	var conds []option.QueryOption
	if filter.ClientID != 0 {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "client_id", Operator: option.EQ, Value: filter.ClientID,
		}))
	}
	if filter.Status != "" {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "status", Operator: option.EQ, Value: filter.Status,
		}))
	}
	if !filter.PeriodStart.IsZero() {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "period_start", Operator: option.GTE, Value: filter.PeriodStart,
		}))
	}
	if !filter.PeriodEnd.IsZero() {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "period_end", Operator: option.LTE, Value: filter.PeriodEnd,
		}))
	}

	base := s.db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	for _, cond := range conds {
		base = cond.Apply(base)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Session(&gorm.Session{})
	query = option.WithSortBy(option.QuerySortBy{
		Field: "invoice_number",
		Desc:  true,
		Allow: map[string]bool{"invoice_number": true},
	}).Apply(query)
	query = option.WithLimit(pageSize, pagination.Offset(page, pageSize)).Apply(query)

	var invoices []invoicedomain.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
		}
		return invoicedomain.Invoice{}, err
	}
	return inv, nil
}

package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers/email"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/option"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	retryBackoffBase = 30 * time.Minute
	retryBackoffCap  = 24 * time.Hour
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Mailer   email.Provider
	AuthzSvc authorization.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	mailer   email.Provider
	authzSvc authorization.Service
}

func NewService(p Params) maildomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("maildelivery.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		mailer:   p.Mailer,
		authzSvc: p.AuthzSvc,
	}
}

func (s *Service) Enqueue(ctx context.Context, req maildomain.EnqueueRequest) (maildomain.MailLog, error) {
	if req.ClientID == 0 || req.Recipient == "" || req.EmailType == "" {
		return maildomain.MailLog{}, maildomain.ErrInvalidRequest
	}
	if req.MaxRetries <= 0 {
		req.MaxRetries = 3
	}

	now := s.clock.Now()
	entry := maildomain.MailLog{
		ID:             s.genID.Generate(),
		InvoiceID:      req.InvoiceID,
		ClientID:       req.ClientID,
		EmailType:      req.EmailType,
		Recipient:      req.Recipient,
		Subject:        req.Subject,
		Body:           req.Body,
		AttachmentPath: req.AttachmentPath,
		Status:         maildomain.StatusPending,
		MaxRetries:     req.MaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return maildomain.MailLog{}, err
	}

	s.attempt(ctx, &entry)
	return entry, nil
}

func (s *Service) RetrySweep(ctx context.Context, batchSize int) (maildomain.SweepSummary, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	now := s.clock.Now()

	var due []maildomain.MailLog
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			maildomain.StatusRetryPending, now).
		Order("next_retry_at ASC").
		Limit(batchSize).
		Find(&due).Error
	if err != nil {
		return maildomain.SweepSummary{}, err
	}

	summary := maildomain.SweepSummary{}
	for i := range due {
		entry := &due[i]
		summary.Attempted++
		s.attempt(ctx, entry)
		switch {
		case entry.Status == maildomain.StatusSuccess:
			summary.Sent++
		case entry.Exhausted():
			summary.Exhausted++
		default:
			summary.Failed++
		}
	}
	return summary, nil
}

func (s *Service) Retry(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectMailLog, authorization.ActionRetry); err != nil {
		return maildomain.MailLog{}, err
	}

	entry, err := s.GetByID(ctx, id)
	if err != nil {
		return maildomain.MailLog{}, err
	}
	if entry.Status == maildomain.StatusSuccess {
		return maildomain.MailLog{}, maildomain.ErrAlreadySent
	}
	if entry.Exhausted() {
		// Manual retry opens a fresh attempt chain; the spent budget never
		// carries over, so retry_count stays within max_retries.
		entry.RetryCount = 0
		entry.LastError = ""
	}

	s.attempt(ctx, &entry)
	return entry, nil
}

func (s *Service) CancelPending(ctx context.Context, invoiceID snowflake.ID) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE mail_logs
		 SET status = ?, next_retry_at = NULL, updated_at = ?
		 WHERE invoice_id = ? AND status IN (?, ?)`,
		maildomain.StatusCancelled,
		s.clock.Now(),
		invoiceID,
		maildomain.StatusPending,
		maildomain.StatusRetryPending,
		maildomain.StatusFailed,
	).Error
}

func (s *Service) List(ctx context.Context, filter maildomain.ListFilter) ([]maildomain.MailLog, int64, error) {
	page, pageSize := pagination.Normalize(filter.Page.Page, filter.Page.PageSize)

	var conds []option.QueryOption
	if filter.InvoiceID != 0 {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "invoice_id", Operator: option.EQ, Value: filter.InvoiceID,
		}))
	}
	if filter.Status != "" {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "status", Operator: option.EQ, Value: filter.Status,
		}))
	}
	if filter.EmailType != "" {
		conds = append(conds, option.ApplyOperator(option.Condition{
			Field: "email_type", Operator: option.EQ, Value: filter.EmailType,
		}))
	}

	base := s.db.WithContext(ctx).Model(&maildomain.MailLog{})
	for _, cond := range conds {
		base = cond.Apply(base)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Session(&gorm.Session{})
	query = option.WithSortBy(option.QuerySortBy{
		Field: "created_at",
		Desc:  true,
		Allow: map[string]bool{"created_at": true},
	}).Apply(query)
	query = option.WithLimit(pageSize, pagination.Offset(page, pageSize)).Apply(query)

	var entries []maildomain.MailLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (maildomain.MailLog, error) {
	var entry maildomain.MailLog
	err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return maildomain.MailLog{}, maildomain.ErrMailLogNotFound
		}
		return maildomain.MailLog{}, err
	}
	return entry, nil
}

// attempt sends the stored content and persists the outcome. Send failures
// are recorded on the row, never returned; delivery is best-effort and the
// sweep owns retries.
func (s *Service) attempt(ctx context.Context, entry *maildomain.MailLog) {
	var attachments []email.Attachment
	if entry.AttachmentPath != "" {
		attachments = append(attachments, email.Attachment{
			Filename: attachmentName(entry.AttachmentPath),
			Path:     entry.AttachmentPath,
		})
	}

	now := s.clock.Now()
	sendErr := s.mailer.Send(ctx, []string{entry.Recipient}, entry.Subject, entry.Body, attachments)
	if sendErr == nil {
		entry.Status = maildomain.StatusSuccess
		entry.SentAt = &now
		entry.NextRetryAt = nil
		entry.LastError = ""
	} else {
		entry.RetryCount++
		entry.LastError = sendErr.Error()
		if entry.RetryCount >= entry.MaxRetries {
			// Terminal: out of the sweep for good.
			entry.Status = maildomain.StatusFailed
			entry.NextRetryAt = nil
		} else {
			entry.Status = maildomain.StatusRetryPending
			next := now.Add(retryBackoff(entry.RetryCount))
			entry.NextRetryAt = &next
		}
		s.log.Warn("mail delivery failed",
			zap.Int64("mail_log_id", int64(entry.ID)),
			zap.String("email_type", entry.EmailType),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(sendErr),
		)
	}
	entry.UpdatedAt = now

	if err := s.db.WithContext(ctx).Model(&maildomain.MailLog{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":        entry.Status,
			"retry_count":   entry.RetryCount,
			"next_retry_at": entry.NextRetryAt,
			"last_error":    entry.LastError,
			"sent_at":       entry.SentAt,
			"updated_at":    entry.UpdatedAt,
		}).Error; err != nil {
		s.log.Error("mail log update failed",
			zap.Int64("mail_log_id", int64(entry.ID)),
			zap.Error(err),
		)
	}
}

// retryBackoff doubles per attempt: 30m, 1h, 2h, ... capped at 24h.
func retryBackoff(retryCount int) time.Duration {
	backoff := retryBackoffBase
	for i := 1; i < retryCount; i++ {
		backoff *= 2
		if backoff >= retryBackoffCap {
			return retryBackoffCap
		}
	}
	return backoff
}

func attachmentName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

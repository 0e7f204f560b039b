package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	linkdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	publicURL string
}

func NewService(p Params) linkdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("paymentlink.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		publicURL: p.Cfg.PublicURL,
	}
}

func (s *Service) EnsureForInvoice(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (linkdomain.PaymentLink, error) {
	now := s.clock.Now()

	var existing linkdomain.PaymentLink
	err := s.db.WithContext(ctx).
		Where("invoice_id = ? AND expires_at > ?", invoiceID, now).
		Order("expires_at DESC").
		First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return linkdomain.PaymentLink{}, err
	}

	token, err := newToken()
	if err != nil {
		return linkdomain.PaymentLink{}, err
	}

	link := linkdomain.PaymentLink{
		ID:        s.genID.Generate(),
		InvoiceID: invoiceID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		// Token collision is astronomically unlikely but cheap to retry once.
		if db.IsDuplicateKeyErr(err) {
			link.Token, err = newToken()
			if err != nil {
				return linkdomain.PaymentLink{}, err
			}
			if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
				return linkdomain.PaymentLink{}, err
			}
			return link, nil
		}
		return linkdomain.PaymentLink{}, err
	}
	return link, nil
}

func (s *Service) Resolve(ctx context.Context, token string) (linkdomain.PaymentLink, error) {
	var link linkdomain.PaymentLink
	err := s.db.WithContext(ctx).First(&link, "token = ?", token).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return linkdomain.PaymentLink{}, linkdomain.ErrLinkNotFound
		}
		return linkdomain.PaymentLink{}, err
	}
	if link.Expired(s.clock.Now()) {
		return linkdomain.PaymentLink{}, linkdomain.ErrLinkExpired
	}
	return link, nil
}

func (s *Service) PublicURL(token string) string {
	return fmt.Sprintf("%s/pay/%s", s.publicURL, token)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Gateway    paymentdomain.Gateway
	InvoiceSvc invoicedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	gateway    paymentdomain.Gateway
	invoiceSvc invoicedomain.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		gateway:    p.Gateway,
		invoiceSvc: p.InvoiceSvc,
	}
}

func (s *Service) CreateIntent(ctx context.Context, req paymentdomain.IntentRequest) (paymentdomain.IntentResponse, error) {
	inv, err := s.invoiceSvc.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return paymentdomain.IntentResponse{}, err
	}
	if inv.Status == invoicedomain.StatusPaid {
		return paymentdomain.IntentResponse{}, invoicedomain.ErrAlreadyPaid
	}
	if !inv.Payable() {
		return paymentdomain.IntentResponse{}, invoicedomain.ErrNotPayable
	}

	// The attempt is on record before the gateway is asked anything, so a
	// transport failure still leaves a failed transaction behind.
	tx, err := s.beginTransaction(ctx, inv, "intent", req.ClientIP, req.UserAgent)
	if err != nil {
		return paymentdomain.IntentResponse{}, err
	}

	intent, err := s.gateway.CreateIntent(ctx, paymentdomain.GatewayIntentRequest{
		InvoiceID:   inv.ID,
		AmountCents: inv.TotalCents,
		Currency:    inv.Currency,
	})
	if err != nil {
		s.failTransaction(ctx, &tx, err.Error(), nil)
		return paymentdomain.IntentResponse{}, err
	}

	if err := s.finishTransaction(ctx, &tx,
		paymentdomain.TxStatusPending, intent.IntentID, "", intent.Raw); err != nil {
		return paymentdomain.IntentResponse{}, err
	}

	return paymentdomain.IntentResponse{
		IntentID:     intent.IntentID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  inv.TotalCents,
		Currency:     inv.Currency,
	}, nil
}

func (s *Service) SubmitDirect(ctx context.Context, req paymentdomain.DirectChargeRequest) (paymentdomain.PaymentTransaction, error) {
	inv, err := s.invoiceSvc.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return paymentdomain.PaymentTransaction{}, err
	}
	if inv.Status == invoicedomain.StatusPaid {
		return paymentdomain.PaymentTransaction{}, invoicedomain.ErrAlreadyPaid
	}
	if !inv.Payable() {
		return paymentdomain.PaymentTransaction{}, invoicedomain.ErrNotPayable
	}
	// Exact-amount only: no partial payments, no overpayment.
	if req.AmountCents != inv.TotalCents {
		return paymentdomain.PaymentTransaction{}, invoicedomain.ErrAmountMismatch
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = "card"
	}

	tx, err := s.beginTransaction(ctx, inv, method, req.ClientIP, req.UserAgent)
	if err != nil {
		return paymentdomain.PaymentTransaction{}, err
	}

	charge, err := s.gateway.Charge(ctx, paymentdomain.GatewayChargeRequest{
		InvoiceID:   inv.ID,
		AmountCents: req.AmountCents,
		Currency:    inv.Currency,
		CardToken:   req.CardToken,
	})
	if err != nil {
		// Transport failure: the initiated row flips to failed with the error
		// so the attempt stays auditable; the invoice remains payable.
		s.failTransaction(ctx, &tx, err.Error(), nil)
		return tx, err
	}

	if !charge.Paid {
		if recErr := s.finishTransaction(ctx, &tx,
			paymentdomain.TxStatusFailed, charge.ChargeID, charge.Failure, charge.Raw); recErr != nil {
			return tx, recErr
		}
		return tx, paymentdomain.ErrPaymentDeclined
	}

	if err := s.finishTransaction(ctx, &tx,
		paymentdomain.TxStatusSuccess, charge.ChargeID, "", charge.Raw); err != nil {
		return tx, err
	}

	_, err = s.invoiceSvc.Settle(ctx, invoicedomain.SettleRequest{
		InvoiceID:   inv.ID,
		AmountCents: req.AmountCents,
		Method:      method,
		Reference:   charge.ChargeID,
		PaidAt:      s.clock.Now(),
	})
	if err != nil && err != invoicedomain.ErrAlreadyPaid {
		return tx, err
	}
	return tx, nil
}

func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	now := s.clock.Now()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		InvoiceID:       event.InvoiceID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		// Replayed delivery of a processed event is a no-op.
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.applyEvent(ctx, event); err != nil {
		return err
	}
	return s.repo.MarkProcessed(ctx, s.db, stored.ID, now)
}

func (s *Service) applyEvent(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	inv, err := s.invoiceSvc.GetByID(ctx, event.InvoiceID)
	if err != nil {
		return err
	}

	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		// Late event for an invoice settled by another path is a success
		// no-op; the original transaction is the record.
		if inv.Status == invoicedomain.StatusPaid {
			return nil
		}
		if event.Amount != inv.TotalCents {
			// Keep the evidence, never settle on the wrong amount. The
			// mismatch needs a human, not a provider redelivery.
			s.log.Warn("webhook amount mismatch",
				zap.Int64("invoice_id", int64(inv.ID)),
				zap.Int64("event_amount", event.Amount),
				zap.Int64("invoice_total", inv.TotalCents),
			)
			_, recErr := s.recordEventTransaction(ctx, inv, event,
				paymentdomain.TxStatusFailed, "amount_mismatch")
			return recErr
		}

		if _, err := s.recordEventTransaction(ctx, inv, event,
			paymentdomain.TxStatusSuccess, ""); err != nil {
			return err
		}
		_, err := s.invoiceSvc.Settle(ctx, invoicedomain.SettleRequest{
			InvoiceID:   inv.ID,
			AmountCents: event.Amount,
			Method:      "gateway",
			Reference:   event.ProviderPaymentID,
			PaidAt:      event.OccurredAt,
		})
		if err == invoicedomain.ErrAlreadyPaid {
			return nil
		}
		return err

	case paymentdomain.EventTypePaymentFailed:
		_, err := s.recordEventTransaction(ctx, inv, event,
			paymentdomain.TxStatusFailed, "provider_reported_failure")
		return err

	default:
		return paymentdomain.ErrInvalidEvent
	}
}

func (s *Service) ListTransactions(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.PaymentTransaction, error) {
	var txs []paymentdomain.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Find(&txs).Error
	return txs, err
}

// beginTransaction writes the initiated row for an attempt about to hit the
// gateway.
func (s *Service) beginTransaction(
	ctx context.Context,
	inv invoicedomain.Invoice,
	method, clientIP, userAgent string,
) (paymentdomain.PaymentTransaction, error) {
	now := s.clock.Now()
	tx := paymentdomain.PaymentTransaction{
		ID:          s.genID.Generate(),
		InvoiceID:   inv.ID,
		Provider:    "stripe",
		AmountCents: inv.TotalCents,
		Currency:    inv.Currency,
		Status:      paymentdomain.TxStatusInitiated,
		Method:      method,
		ClientIP:    clientIP,
		UserAgent:   userAgent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return paymentdomain.PaymentTransaction{}, err
	}
	return tx, nil
}

// finishTransaction settles the outcome of an initiated attempt on its row.
func (s *Service) finishTransaction(
	ctx context.Context,
	tx *paymentdomain.PaymentTransaction,
	status, providerPaymentID, errMsg string,
	raw []byte,
) error {
	tx.Status = status
	tx.ProviderPaymentID = providerPaymentID
	tx.ErrorMessage = errMsg
	if len(raw) > 0 {
		tx.GatewayResponse = datatypes.JSON(raw)
	}
	tx.UpdatedAt = s.clock.Now()

	return s.db.WithContext(ctx).Model(&paymentdomain.PaymentTransaction{}).
		Where("id = ?", tx.ID).
		Updates(map[string]any{
			"status":              tx.Status,
			"provider_payment_id": tx.ProviderPaymentID,
			"error_message":       tx.ErrorMessage,
			"gateway_response":    tx.GatewayResponse,
			"updated_at":          tx.UpdatedAt,
		}).Error
}

// failTransaction is finishTransaction for paths already returning an error
// to the caller; a bookkeeping failure is logged, never raised over it.
func (s *Service) failTransaction(ctx context.Context, tx *paymentdomain.PaymentTransaction, errMsg string, raw []byte) {
	if err := s.finishTransaction(ctx, tx, paymentdomain.TxStatusFailed, tx.ProviderPaymentID, errMsg, raw); err != nil {
		s.log.Error("payment transaction update failed",
			zap.Int64("transaction_id", int64(tx.ID)),
			zap.Error(err),
		)
	}
}

// recordEventTransaction writes the single-shot row for a webhook-reported
// outcome; the gateway already did the work, there is no initiated phase.
func (s *Service) recordEventTransaction(
	ctx context.Context,
	inv invoicedomain.Invoice,
	event *paymentdomain.PaymentEvent,
	status, errMsg string,
) (paymentdomain.PaymentTransaction, error) {
	now := s.clock.Now()
	tx := paymentdomain.PaymentTransaction{
		ID:                s.genID.Generate(),
		InvoiceID:         inv.ID,
		Provider:          event.Provider,
		ProviderPaymentID: event.ProviderPaymentID,
		AmountCents:       event.Amount,
		Currency:          inv.Currency,
		Status:            status,
		Method:            "gateway",
		ErrorMessage:      errMsg,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if len(event.RawPayload) > 0 {
		tx.GatewayResponse = datatypes.JSON(event.RawPayload)
	}
	if err := s.db.WithContext(ctx).Create(&tx).Error; err != nil {
		return paymentdomain.PaymentTransaction{}, err
	}
	return tx, nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.InvoiceID == 0 {
		return paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.Currency) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.Amount <= 0 && event.Type == paymentdomain.EventTypePaymentSucceeded {
		return paymentdomain.ErrInvalidEvent
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers/pdf"
)

func (s *Service) SendInvoiceEmail(ctx context.Context, id snowflake.ID) error {
	if err := s.authzSvc.Require(ctx, authorization.ObjectInvoice, authorization.ActionSendEmail); err != nil {
		return err
	}

	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return err
	}
	client, err := s.clients.GetByID(ctx, inv.ClientID)
	if err != nil {
		return err
	}
	return s.deliverInvoice(ctx, cfg, client, &inv, true)
}

// deliverInvoice ensures the payment link and PDF exist, then enqueues the
// invoice email when sendEmail is set.
func (s *Service) deliverInvoice(
	ctx context.Context,
	cfg configdomain.BillingConfiguration,
	client clientdomain.Client,
	inv *invoicedomain.Invoice,
	sendEmail bool,
) error {
	ttl := time.Duration(cfg.PaymentLinkTTLDays) * 24 * time.Hour
	link, err := s.links.EnsureForInvoice(ctx, inv.ID, ttl)
	if err != nil {
		return err
	}
	linkURL := s.links.PublicURL(link.Token)

	if err := s.ensurePDF(ctx, cfg, client, inv, linkURL); err != nil {
		return err
	}
	if !sendEmail {
		return nil
	}

	body, err := maildelivery.RenderInvoiceEmail(maildelivery.InvoiceEmailData{
		ClientName:     client.Name,
		InvoiceNumber:  inv.FormattedNumber,
		PeriodLabel:    periodLabel(inv.PeriodStart, inv.PeriodEnd),
		AmountDue:      invoicedomain.FormatAmount(inv.TotalCents, inv.Currency),
		DueDate:        inv.DueDate.Format("January 2, 2006"),
		PaymentLinkURL: linkURL,
		MailerName:     cfg.MailerName,
	})
	if err != nil {
		return err
	}

	_, err = s.mail.Enqueue(ctx, maildomain.EnqueueRequest{
		InvoiceID:      inv.ID,
		ClientID:       client.ID,
		EmailType:      maildomain.EmailTypeInvoiceGenerated,
		Recipient:      client.Email,
		Subject:        fmt.Sprintf("Invoice %s from %s", inv.FormattedNumber, cfg.MailerName),
		Body:           body,
		AttachmentPath: inv.PDFPath,
		MaxRetries:     cfg.MailMaxRetries,
	})
	return err
}

// ensurePDF renders and caches the invoice PDF, storing the path on the row.
func (s *Service) ensurePDF(
	ctx context.Context,
	cfg configdomain.BillingConfiguration,
	client clientdomain.Client,
	inv *invoicedomain.Invoice,
	linkURL string,
) error {
	if inv.PDFPath != "" {
		return nil
	}

	path, err := s.pdf.RenderInvoice(ctx, pdf.InvoiceData{
		MailerName:    cfg.MailerName,
		MailerAddress: cfg.MailerAddress,
		InvoiceNumber: inv.FormattedNumber,
		IssueDate:     inv.IssueDate.Format("January 2, 2006"),
		DueDate:       inv.DueDate.Format("January 2, 2006"),
		ServicePeriod: periodLabel(inv.PeriodStart, inv.PeriodEnd),
		BillToName:    client.Name,
		BillToEmail:   client.Email,
		Items: []pdf.InvoiceItem{{
			Description: fmt.Sprintf("Document processing (%d documents, %d pages)",
				inv.TotalDocuments, inv.TotalPages),
			Qty:       inv.TotalDocuments,
			UnitPrice: "",
			Amount:    invoicedomain.FormatAmount(inv.SubtotalCents, inv.Currency),
		}},
		Subtotal:       invoicedomain.FormatAmount(inv.SubtotalCents, inv.Currency),
		Tax:            taxLabel(inv.TaxCents, inv.Currency),
		AmountDue:      invoicedomain.FormatAmount(inv.TotalCents, inv.Currency),
		Currency:       inv.Currency,
		PaymentLinkURL: linkURL,
	})
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&invoicedomain.Invoice{}).
		Where("id = ?", inv.ID).
		Update("pdf_path", path).Error; err != nil {
		return err
	}
	inv.PDFPath = path
	return nil
}

func (s *Service) sendReceiptEmail(ctx context.Context, inv invoicedomain.Invoice) error {
	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return err
	}
	client, err := s.clients.GetByID(ctx, inv.ClientID)
	if err != nil {
		return err
	}

	paidAt := s.clock.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}

	receiptPath, err := s.pdf.RenderReceipt(ctx, pdf.ReceiptData{
		MailerName:    cfg.MailerName,
		InvoiceNumber: inv.FormattedNumber,
		PaidDate:      paidAt.Format("January 2, 2006"),
		PaymentMethod: inv.PaymentMethod,
		Reference:     inv.PaymentReference,
		BillToName:    client.Name,
		AmountPaid:    invoicedomain.FormatAmount(inv.AmountPaidCents, inv.Currency),
	})
	if err != nil {
		return err
	}

	body, err := maildelivery.RenderReceiptEmail(maildelivery.ReceiptEmailData{
		ClientName:    client.Name,
		InvoiceNumber: inv.FormattedNumber,
		AmountPaid:    invoicedomain.FormatAmount(inv.AmountPaidCents, inv.Currency),
		PaidDate:      paidAt.Format("January 2, 2006"),
		MailerName:    cfg.MailerName,
	})
	if err != nil {
		return err
	}

	_, err = s.mail.Enqueue(ctx, maildomain.EnqueueRequest{
		InvoiceID:      inv.ID,
		ClientID:       client.ID,
		EmailType:      maildomain.EmailTypePaymentReceived,
		Recipient:      client.Email,
		Subject:        fmt.Sprintf("Payment received for invoice %s", inv.FormattedNumber),
		Body:           body,
		AttachmentPath: receiptPath,
		MaxRetries:     cfg.MailMaxRetries,
	})
	return err
}

func (s *Service) sendCancellationEmail(ctx context.Context, inv invoicedomain.Invoice, reason string) error {
	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return err
	}
	client, err := s.clients.GetByID(ctx, inv.ClientID)
	if err != nil {
		return err
	}

	body, err := maildelivery.RenderCancellationEmail(maildelivery.CancellationEmailData{
		ClientName:    client.Name,
		InvoiceNumber: inv.FormattedNumber,
		Reason:        reason,
		MailerName:    cfg.MailerName,
	})
	if err != nil {
		return err
	}

	_, err = s.mail.Enqueue(ctx, maildomain.EnqueueRequest{
		InvoiceID:  inv.ID,
		ClientID:   client.ID,
		EmailType:  maildomain.EmailTypeInvoiceCancelled,
		Recipient:  client.Email,
		Subject:    fmt.Sprintf("Invoice %s has been cancelled", inv.FormattedNumber),
		Body:       body,
		MaxRetries: cfg.MailMaxRetries,
	})
	return err
}

func periodLabel(start, end time.Time) string {
	if start.Month() == end.Month() && start.Year() == end.Year() {
		return start.Format("January 2006")
	}
	return fmt.Sprintf("%s – %s", start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
}

func taxLabel(taxCents int64, currency string) string {
	if taxCents == 0 {
		return ""
	}
	return invoicedomain.FormatAmount(taxCents, currency)
}

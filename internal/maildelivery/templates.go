// Package maildelivery renders the email bodies sent by billing. Templates
// are kept inline; the content is deliberately plain transactional HTML.
package maildelivery

import (
	"bytes"
	"html/template"
)

type InvoiceEmailData struct {
	ClientName     string
	InvoiceNumber  string
	PeriodLabel    string
	AmountDue      string
	DueDate        string
	PaymentLinkURL string
	MailerName     string
}

type ReminderEmailData struct {
	ClientName     string
	InvoiceNumber  string
	AmountDue      string
	DueDate        string
	ReminderNumber int
	Overdue        bool
	PaymentLinkURL string
	MailerName     string
}

type ReceiptEmailData struct {
	ClientName    string
	InvoiceNumber string
	AmountPaid    string
	PaidDate      string
	MailerName    string
}

type CancellationEmailData struct {
	ClientName    string
	InvoiceNumber string
	Reason        string
	MailerName    string
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<html><body>
<p>Dear {{.ClientName}},</p>
<p>Your invoice <strong>{{.InvoiceNumber}}</strong> for {{.PeriodLabel}} is ready.</p>
<p>Amount due: <strong>{{.AmountDue}}</strong><br>
Due date: {{.DueDate}}</p>
{{if .PaymentLinkURL}}<p><a href="{{.PaymentLinkURL}}">Pay this invoice online</a></p>{{end}}
<p>The invoice is attached as a PDF.</p>
<p>Regards,<br>{{.MailerName}}</p>
</body></html>`))

var reminderTmpl = template.Must(template.New("reminder").Parse(`<html><body>
<p>Dear {{.ClientName}},</p>
{{if .Overdue}}<p>Invoice <strong>{{.InvoiceNumber}}</strong> is overdue. It was due on {{.DueDate}}.</p>
{{else}}<p>This is reminder #{{.ReminderNumber}} that invoice <strong>{{.InvoiceNumber}}</strong> is awaiting payment, due {{.DueDate}}.</p>{{end}}
<p>Amount due: <strong>{{.AmountDue}}</strong></p>
{{if .PaymentLinkURL}}<p><a href="{{.PaymentLinkURL}}">Pay this invoice online</a></p>{{end}}
<p>If you have already paid, please disregard this message.</p>
<p>Regards,<br>{{.MailerName}}</p>
</body></html>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`<html><body>
<p>Dear {{.ClientName}},</p>
<p>We received your payment of <strong>{{.AmountPaid}}</strong> for invoice
<strong>{{.InvoiceNumber}}</strong> on {{.PaidDate}}.</p>
<p>A receipt is attached for your records. Thank you.</p>
<p>Regards,<br>{{.MailerName}}</p>
</body></html>`))

var cancellationTmpl = template.Must(template.New("cancellation").Parse(`<html><body>
<p>Dear {{.ClientName}},</p>
<p>Invoice <strong>{{.InvoiceNumber}}</strong> has been cancelled and no payment is due.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>Regards,<br>{{.MailerName}}</p>
</body></html>`))

func RenderInvoiceEmail(data InvoiceEmailData) (string, error) {
	return render(invoiceTmpl, data)
}

func RenderReminderEmail(data ReminderEmailData) (string, error) {
	return render(reminderTmpl, data)
}

func RenderReceiptEmail(data ReceiptEmailData) (string, error) {
	return render(receiptTmpl, data)
}

func RenderCancellationEmail(data CancellationEmailData) (string, error) {
	return render(cancellationTmpl, data)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

package email

import "context"

// Attachment references a file on local storage to attach to a message.
type Attachment struct {
	Filename string
	Path     string
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string, attachments []Attachment) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string, attachments []Attachment) error {
	return nil
}

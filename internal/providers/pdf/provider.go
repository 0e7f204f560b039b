package pdf

import "context"

// Renderer produces invoice and receipt PDF artifacts on local storage and
// returns the file path so callers can cache it.
type Renderer interface {
	RenderInvoice(ctx context.Context, data InvoiceData) (string, error)
	RenderReceipt(ctx context.Context, data ReceiptData) (string, error)
}

type NoOpRenderer struct{}

func (p *NoOpRenderer) RenderInvoice(ctx context.Context, data InvoiceData) (string, error) {
	return "", nil
}

func (p *NoOpRenderer) RenderReceipt(ctx context.Context, data ReceiptData) (string, error) {
	return "", nil
}

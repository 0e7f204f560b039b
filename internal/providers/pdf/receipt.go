package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	MailerName    string
	InvoiceNumber string
	PaidDate      string
	PaymentMethod string
	Reference     string

	BillToName string
	AmountPaid string
}

func (p *MarotoRenderer) RenderReceipt(ctx context.Context, data ReceiptData) (string, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Payment receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Paid on: "+data.PaidDate, props.Text{Top: 4}),
			text.New("Method: "+data.PaymentMethod, props.Text{Top: 8}),
			text.New("Reference: "+data.Reference, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New(data.MailerName, props.Text{Style: fontstyle.Bold}),
			text.New("Billed to: "+data.BillToName, props.Text{Top: 5}),
		),
	)

	m.AddRow(12,
		col.New(8),
		text.NewCol(4, "Amount paid: "+data.AmountPaid, props.Text{Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return "", err
	}

	return p.save(fmt.Sprintf("receipt_%s.pdf", data.InvoiceNumber), doc.GetBytes())
}

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type InvoiceData struct {
	MailerName    string
	MailerAddress string
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	ServicePeriod string

	BillToName  string
	BillToEmail string

	Items []InvoiceItem

	Subtotal  string
	Tax       string
	AmountDue string
	Currency  string

	PaymentLinkURL string
}

type InvoiceItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

type MarotoRenderer struct {
	outputDir string
}

func NewMaroto(outputDir string) *MarotoRenderer {
	return &MarotoRenderer{outputDir: outputDir}
}

func (p *MarotoRenderer) RenderInvoice(ctx context.Context, data InvoiceData) (string, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
			text.New("Service period: "+data.ServicePeriod, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(30,
		col.New(6).Add(
			text.New(data.MailerName, props.Text{Style: fontstyle.Bold}),
			text.New(data.MailerAddress, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.BillToName, props.Text{Top: 5}),
			text.New(data.BillToEmail, props.Text{Top: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range data.Items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	if data.Tax != "" {
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, "Tax", props.Text{Size: 9}),
			text.NewCol(2, data.Tax, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Amount due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.AmountDue, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if data.PaymentLinkURL != "" {
		m.AddRow(14,
			text.NewCol(12, "Pay online: "+data.PaymentLinkURL, props.Text{Size: 9, Top: 6}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return "", err
	}

	return p.save(fmt.Sprintf("invoice_%s.pdf", data.InvoiceNumber), doc.GetBytes())
}

func (p *MarotoRenderer) save(filename string, content []byte) (string, error) {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.outputDir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

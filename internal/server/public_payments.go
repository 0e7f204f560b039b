package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
)

// publicInvoiceView is the subset of invoice data the anonymous payment page
// may see.
type publicInvoiceView struct {
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
	IssueDate     string `json:"issue_date"`
	DueDate       string `json:"due_date"`
	PeriodStart   string `json:"period_start"`
	PeriodEnd     string `json:"period_end"`
	AmountDue     string `json:"amount_due"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Payable       bool   `json:"payable"`
}

func (s *Server) GetPublicInvoice(c *gin.Context) {
	inv, err := s.resolveInvoiceByToken(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, publicInvoiceView{
		InvoiceNumber: inv.FormattedNumber,
		Status:        inv.Status,
		IssueDate:     inv.IssueDate.Format("2006-01-02"),
		DueDate:       inv.DueDate.Format("2006-01-02"),
		PeriodStart:   inv.PeriodStart.Format("2006-01-02"),
		PeriodEnd:     inv.PeriodEnd.Format("2006-01-02"),
		AmountDue:     invoicedomain.FormatAmount(inv.TotalCents, inv.Currency),
		AmountCents:   inv.TotalCents,
		Currency:      inv.Currency,
		Payable:       inv.Payable(),
	})
}

func (s *Server) CreatePublicPaymentIntent(c *gin.Context) {
	inv, err := s.resolveInvoiceByToken(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	intent, err := s.paymentSvc.CreateIntent(c.Request.Context(), paymentdomain.IntentRequest{
		InvoiceID: inv.ID,
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, intent)
}

type submitPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	CardToken   string `json:"card_token"`
	Method      string `json:"method"`
}

func (s *Server) SubmitPublicPayment(c *gin.Context) {
	inv, err := s.resolveInvoiceByToken(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req submitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.AmountCents <= 0 || strings.TrimSpace(req.CardToken) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tx, err := s.paymentSvc.SubmitDirect(c.Request.Context(), paymentdomain.DirectChargeRequest{
		InvoiceID:   inv.ID,
		AmountCents: req.AmountCents,
		CardToken:   req.CardToken,
		Method:      req.Method,
		ClientIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         tx.Status,
		"transaction_id": tx.ID.String(),
	})
}

func (s *Server) resolveInvoiceByToken(c *gin.Context) (invoicedomain.Invoice, error) {
	token := strings.TrimSpace(c.Param("token"))
	link, err := s.linkSvc.Resolve(c.Request.Context(), token)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return s.invoiceSvc.GetByID(c.Request.Context(), link.InvoiceID)
}

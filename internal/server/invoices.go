package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/pagination"
)

func (s *Server) GenerateInvoices(c *gin.Context) {
	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectInvoice, authorization.ActionGenerate); err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.invoiceSvc.GenerateMonthlyInvoices(c.Request.Context(), time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) ListInvoices(c *gin.Context) {
	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectInvoice, authorization.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	filter := invoicedomain.ListFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Page:   pageInfoFromQuery(c),
	}
	if raw := strings.TrimSpace(c.Query("client_id")); raw != "" {
		clientID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.ClientID = clientID
	}

	invoices, total, err := s.invoiceSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filter.Page.TotalCount = total
	c.JSON(http.StatusOK, gin.H{
		"invoices":  invoices,
		"page_info": filter.Page,
	})
}

func (s *Server) GetInvoice(c *gin.Context) {
	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectInvoice, authorization.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectInvoice, authorization.ActionDownload); err != nil {
		AbortWithError(c, err)
		return
	}

	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if inv.PDFPath == "" {
		AbortWithError(c, invoicedomain.ErrInvoiceNotFound)
		return
	}

	c.FileAttachment(inv.PDFPath, inv.FormattedNumber+".pdf")
}

func (s *Server) ListInvoiceTransactions(c *gin.Context) {
	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectInvoice, authorization.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txs, err := s.paymentSvc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type markPaidRequest struct {
	Reference string `json:"reference"`
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	inv, err := s.invoiceSvc.MarkPaid(c.Request.Context(), id, req.Reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	inv, err := s.invoiceSvc.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) UpdateInvoiceNotes(c *gin.Context) {
	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	inv, err := s.invoiceSvc.UpdateNotes(c.Request.Context(), id, req.Notes)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) SendInvoiceEmail(c *gin.Context) {
	id, err := invoiceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.invoiceSvc.SendInvoiceEmail(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

func invoiceIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return 0, ErrInvalidRequest
	}
	return id, nil
}

func pageInfoFromQuery(c *gin.Context) pagination.PageInfo {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	page, pageSize = pagination.Normalize(page, pageSize)
	return pagination.PageInfo{Page: page, PageSize: pageSize}
}

package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
)

func (s *Server) ListMailLogs(c *gin.Context) {
	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectMailLog, authorization.ActionRead); err != nil {
		AbortWithError(c, err)
		return
	}

	filter := maildomain.ListFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		EmailType: strings.TrimSpace(c.Query("email_type")),
		Page:      pageInfoFromQuery(c),
	}
	if raw := strings.TrimSpace(c.Query("invoice_id")); raw != "" {
		invoiceID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.InvoiceID = invoiceID
	}

	entries, total, err := s.mailSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filter.Page.TotalCount = total
	c.JSON(http.StatusOK, gin.H{
		"mail_logs": entries,
		"page_info": filter.Page,
	})
}

func (s *Server) RetryMailLog(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.authzSvc.Require(c.Request.Context(),
		authorization.ObjectMailLog, authorization.ActionRetry); err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.mailSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Invoice emails are re-rendered so the resend reflects current invoice
	// state. Reminders and receipts re-send the recorded content.
	if entry.EmailType == maildomain.EmailTypeInvoiceGenerated && entry.Status != maildomain.StatusSuccess {
		if err := s.invoiceSvc.SendInvoiceEmail(c.Request.Context(), entry.InvoiceID); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"invoice_id":   entry.InvoiceID,
			"redispatched": true,
		})
		return
	}

	entry, err = s.mailSvc.Retry(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) RunReminderSweep(c *gin.Context) {
	batchSize, _ := strconv.Atoi(c.DefaultQuery("batch_size", "50"))

	summary, err := s.reminderSvc.SendDueReminders(c.Request.Context(), batchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) RevenueReport(c *gin.Context) {
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(currentYear())))
	if err != nil || year < 2000 || year > 2200 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	report, err := s.invoiceSvc.RevenueReport(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func currentYear() int {
	return time.Now().UTC().Year()
}

func (s *Server) SummaryReport(c *gin.Context) {
	report, err := s.invoiceSvc.SummaryReport(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	linkdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/domain"
	usagedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/domain"
	"gorm.io/gorm"
)

var ErrInvalidRequest = errors.New("invalid_request")

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type: "internal_error", Message: "internal server error",
		}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, usagedomain.ErrInvalidPeriod),
		errors.Is(err, configdomain.ErrInvalidConfig),
		errors.Is(err, maildomain.ErrInvalidRequest),
		errors.Is(err, invoicedomain.ErrAmountMismatch),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidProvider):
		return http.StatusBadRequest, errorPayload{
			Type: "invalid_request", Message: err.Error(),
		}

	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type: "invalid_signature", Message: "webhook signature verification failed",
		}

	case errors.Is(err, paymentdomain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, errorPayload{
			Type: "payment_declined", Message: "the payment was declined",
		}

	case errors.Is(err, authorization.ErrPermissionDenied):
		return http.StatusForbidden, errorPayload{
			Type: "forbidden", Message: "permission denied",
		}

	case errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, maildomain.ErrMailLogNotFound),
		errors.Is(err, linkdomain.ErrLinkNotFound),
		errors.Is(err, clientdomain.ErrClientNotFound),
		errors.Is(err, configdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type: "not_found", Message: err.Error(),
		}

	case errors.Is(err, invoicedomain.ErrAlreadyPaid),
		errors.Is(err, invoicedomain.ErrInvoiceCancelled),
		errors.Is(err, invoicedomain.ErrNotPayable),
		errors.Is(err, maildomain.ErrAlreadySent):
		return http.StatusConflict, errorPayload{
			Type: "conflict", Message: err.Error(),
		}

	case errors.Is(err, linkdomain.ErrLinkExpired):
		return http.StatusGone, errorPayload{
			Type: "link_expired", Message: "this payment link has expired",
		}

	case errors.Is(err, paymentdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type: "gateway_unavailable", Message: "payment gateway is unavailable",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type: "internal_error", Message: "internal server error",
		}
	}
}

package returns

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/logger"
	"github.com/dinhdady/Sell-movie-tickets-sub001/internal/reconcile"
)

// Handler is the gateway-facing listener: the payment processor sends the
// browser here after (or instead of) completing a payment.
type Handler struct {
	Reconciler *reconcile.Reconciler
	Logger     *logger.Logger
}

func NewHandler(rec *reconcile.Reconciler, log *logger.Logger) *Handler {
	return &Handler{Reconciler: rec, Logger: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/payment/return", h.Return)
	r.GET("/payment/cancel", h.Cancel)
}

// Return reconciles whatever the redirect brought back. The response bodies
// mirror the reconciler's outcome so the UI can render success, decline, or
// a retry prompt.
func (h *Handler) Return(c *gin.Context) {
	result, err := h.Reconciler.Reconcile(c.Request.Context(), c.Request.URL.Query())

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"state":           result.State,
			"transaction_ref": result.TransactionRef,
			"booking":         result.Detail,
		})

	case errors.Is(err, reconcile.ErrPartialTicketData):
		// Payment went through; only the ticket detail is missing. This is
		// still a success page, with a note to contact support.
		c.JSON(http.StatusOK, gin.H{
			"state":           result.State,
			"transaction_ref": result.TransactionRef,
			"booking_id":      result.Detail.Booking.BookingID,
			"total":           result.Detail.Booking.Total,
			"note":            "payment confirmed; ticket details are delayed, please contact support if they do not arrive",
		})

	case errors.Is(err, reconcile.ErrNoPaymentContext):
		h.Logger.Warn("RETURN", "landing with nothing to reconcile")
		c.JSON(http.StatusNotFound, gin.H{
			"state":   result.State,
			"code":    "NO_PAYMENT_CONTEXT",
			"message": "no payment in progress; start a new booking",
		})

	default:
		var declined *reconcile.DeclinedError
		if errors.As(err, &declined) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"state":           result.State,
				"transaction_ref": declined.TransactionRef,
				"code":            declined.Code,
				"message":         declined.Message,
			})
			return
		}

		// Retryable: the snapshot survived, the user can reconcile again
		// without paying again.
		h.Logger.Error("RETURN", fmt.Sprintf("reconciliation failed, retry possible: %v", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"state":           result.State,
			"transaction_ref": result.TransactionRef,
			"code":            "RECONCILE_RETRY",
			"message":         "could not confirm the payment yet; your booking is safe, please retry",
		})
	}
}

// Cancel is where the gateway sends users who back out. The booking stays
// PENDING and the snapshot stays put, so returning to the flow later still
// works until the server-side sweep expires it.
func (h *Handler) Cancel(c *gin.Context) {
	ref := c.Query("txnRef")
	if ref == "" {
		ref = c.Query("vnp_TxnRef")
	}
	h.Logger.Info("RETURN", fmt.Sprintf("payment cancelled at gateway, ref=%s", ref))

	c.JSON(http.StatusOK, gin.H{
		"state":           "CANCELLED",
		"transaction_ref": ref,
		"message":         "payment cancelled; your seat selection is released unless you resume shortly",
	})
}

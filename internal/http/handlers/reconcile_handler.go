package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/ledger"
	"github.com/tbourn/luvia-backend/internal/services"
)

// MsgConfigurationMissing is the error text pollers look for to stop.
const MsgConfigurationMissing = "Configuration missing"

// CheckBookingResponse reports what the ledger knows about a booking code.
type CheckBookingResponse struct {
	Status string `json:"status,omitempty" example:"Đã thanh toán"`
	IsPaid bool   `json:"isPaid"           example:"true"`
	Error  string `json:"error,omitempty"  example:"Configuration missing"`
}

// CheckBooking godoc
// @ID          checkBooking
// @Summary     Check a booking's payment
// @Description Looks the code up in the payment ledger. When the ledger reports it paid, matching unpaid bookings are marked paid once and operators are notified once. Repeated calls are safe.
// @Tags        Payments
// @Produce     json
// @Param       code  path  string  true  "Booking code"  example(CB7777)
// @Success     200  {object} handlers.CheckBookingResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Ledger temporarily unavailable; retry"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /check-booking/{code} [get]
func (h *Handlers) CheckBooking(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	res, err := h.reconcile.Check(c.Request.Context(), code)
	switch {
	case errors.Is(err, services.ErrEmptyCode):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrLedgerUnavailable):
		c.Header("Retry-After", "3")
		fail(c, http.StatusServiceUnavailable, ErrCodeLedgerUnavailable, "payment ledger unavailable, retry shortly")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCheckFailed, "failed to check booking status")
		return
	}

	c.Header("Cache-Control", "no-store")
	switch res.Outcome {
	case ledger.OutcomeConfigMissing:
		ok(c, http.StatusOK, CheckBookingResponse{IsPaid: false, Error: MsgConfigurationMissing})
	case ledger.OutcomeNotFound:
		ok(c, http.StatusOK, CheckBookingResponse{Status: string(ledger.OutcomeNotFound), IsPaid: false})
	default:
		ok(c, http.StatusOK, CheckBookingResponse{Status: res.Status, IsPaid: res.IsPaid})
	}
}

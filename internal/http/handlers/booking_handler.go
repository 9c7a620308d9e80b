// Booking HTTP handlers.
//
// This file exposes REST endpoints for bookings:
//   - POST   /bookings              (create, Idempotency-Key aware)
//   - GET    /bookings              (list, paginated, ETag support)
//   - GET    /bookings/{id}         (detail)
//   - PATCH  /bookings/{id}/status  (admin status change)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/http/middleware"
	"github.com/tbourn/luvia-backend/internal/repo"
	"github.com/tbourn/luvia-backend/internal/services"
)

// CreateBookingRequest is the JSON payload for creating a booking. Field names
// match the public site's booking form.
type CreateBookingRequest struct {
	Name         string `json:"name"          example:"Nguyễn Văn A"`
	Phone        string `json:"phone"         example:"0901234567"`
	Note         string `json:"note"          example:"2 khách, 1 vali lớn"`
	ServiceID    string `json:"service_id"    example:"airport-pickup"`
	ServiceName  string `json:"service_name"  example:"Đón tiễn sân bay"`
	PackageName  string `json:"package_name"  example:"VIP"`
	PackagePrice string `json:"package_price" example:"300.000đ"`
	// BookingCode is generated by the server when empty.
	BookingCode string `json:"booking_code" example:"CB7777"`
}

// CreateBookingResponse acknowledges a stored booking.
type CreateBookingResponse struct {
	ID          uint   `json:"id"           example:"42"`
	BookingCode string `json:"booking_code" example:"CB7777"`
	Amount      int64  `json:"amount"       example:"300000"`
	Success     bool   `json:"success"      example:"true"`
}

// UpdateStatusRequest is the JSON payload for an admin status change.
type UpdateStatusRequest struct {
	Status string `json:"status" example:"contacted"`
}

// ListBookingsResponse wraps a page of bookings and pagination information.
type ListBookingsResponse struct {
	Bookings   []domain.Booking `json:"bookings"`
	Pagination Pagination       `json:"pagination"`
}

// CreateBooking godoc
// @ID          createBooking
// @Summary     Create a booking
// @Description Stores a booking and upserts its customer by phone. The payable amount is derived from package_price. A replayed Idempotency-Key returns the original booking with Idempotency-Replayed: true.
// @Tags        Bookings
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       body             body    handlers.CreateBookingRequest  true  "Booking"
// @Success     201  {object}  handlers.CreateBookingResponse
// @Success     200  {object}  handlers.CreateBookingResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency key conflict"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /bookings [post]
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	b, replayed, err := h.bookings.Create(c.Request.Context(), services.CreateBookingInput{
		BookingCode:   req.BookingCode,
		CustomerName:  req.Name,
		CustomerPhone: req.Phone,
		Note:          req.Note,
		ServiceID:     req.ServiceID,
		ServiceName:   req.ServiceName,
		PackageName:   req.PackageName,
		PackagePrice:  req.PackagePrice,
	}, key)
	switch {
	case errors.Is(err, services.ErrInvalidBooking):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, repo.ErrDuplicate):
		fail(c, http.StatusConflict, ErrCodeConflict, "idempotency key already used")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to create booking")
		return
	}

	status := http.StatusCreated
	if replayed {
		c.Header("Idempotency-Replayed", "true")
		status = http.StatusOK
	}
	ok(c, status, CreateBookingResponse{ID: b.ID, BookingCode: b.BookingCode, Amount: b.Amount, Success: true})
}

// ListBookings godoc
// @ID          listBookings
// @Summary     List bookings (paginated)
// @Description Returns bookings newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Bookings
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       status         query   string  false "Filter by status"  Enums(new,contacted,completed,cancelled,paid)
// @Param       q              query   string  false "Search name, phone, code or service"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListBookingsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bookings [get]
func (h *Handlers) ListBookings(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	f := repo.BookingFilter{Query: strings.TrimSpace(c.Query("q"))}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, valid := domain.ParseBookingStatus(raw)
		if !valid {
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, "unknown status filter")
			return
		}
		f.Status = st
	}

	// Best effort: a stats failure just skips conditional handling.
	if count, maxTS, err := h.bookings.Stats(ctx, f); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		if notModified(c, weakETag("bookings", f.Status, f.Query, page, pageSize, count, ts)) {
			return
		}
	}

	items, total, err := h.bookings.ListPage(ctx, f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list bookings")
		return
	}
	ok(c, http.StatusOK, ListBookingsResponse{Bookings: items, Pagination: newPagination(page, pageSize, total)})
}

// GetBooking godoc
// @ID          getBooking
// @Summary     Get a booking
// @Tags        Bookings
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  int  true  "Booking ID"
// @Success     200  {object} domain.Booking
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Booking not found"
// @Router      /bookings/{id} [get]
func (h *Handlers) GetBooking(c *gin.Context) {
	id, good := bookingID(c)
	if !good {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrBookingNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "booking not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load booking")
	default:
		ok(c, http.StatusOK, b)
	}
}

// UpdateBookingStatus godoc
// @ID          updateBookingStatus
// @Summary     Change a booking's status
// @Description Admin transition among new, contacted, completed and cancelled. "paid" is set only by payment reconciliation and is rejected here.
// @Tags        Bookings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int  true  "Booking ID"
// @Param       body  body  handlers.UpdateStatusRequest  true  "New status"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid or reserved status"
// @Failure     404  {object} handlers.ErrorResponse "Booking not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bookings/{id}/status [patch]
func (h *Handlers) UpdateBookingStatus(c *gin.Context) {
	id, good := bookingID(c)
	if !good {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	err := h.bookings.UpdateStatus(c.Request.Context(), id, req.Status)
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, err.Error())
	case errors.Is(err, services.ErrStatusReserved):
		fail(c, http.StatusBadRequest, ErrCodeStatusReserved, err.Error())
	case errors.Is(err, services.ErrBookingNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "booking not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, "failed to update status")
	default:
		noContent(c)
	}
}

func bookingID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "booking id must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/repo"
)

// ListCustomersResponse wraps a page of customers with booking aggregates.
type ListCustomersResponse struct {
	Customers  []repo.CustomerSummary `json:"customers"`
	Pagination Pagination             `json:"pagination"`
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	Counts repo.BookingCounts `json:"counts"`
}

// ListCustomers godoc
// @ID          listCustomers
// @Summary     List customers
// @Description Customers ordered by last activity, with booking count and total spent on paid or completed bookings.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListCustomersResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /customers [get]
func (h *Handlers) ListCustomers(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.customers.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list customers")
		return
	}
	ok(c, http.StatusOK, ListCustomersResponse{Customers: items, Pagination: newPagination(page, pageSize, total)})
}

// Stats godoc
// @ID          stats
// @Summary     Dashboard counters
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.StatsResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	counts, err := h.stats.Counts(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to compute stats")
		return
	}
	ok(c, http.StatusOK, StatsResponse{Counts: counts})
}

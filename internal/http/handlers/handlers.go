// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results (and service errors) into HTTP responses.
package handlers

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/luvia-backend/internal/domain"
	"github.com/tbourn/luvia-backend/internal/repo"
	"github.com/tbourn/luvia-backend/internal/services"
	"github.com/tbourn/luvia-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BookingService covers booking intake and admin edits.
type BookingService interface {
	Create(ctx context.Context, in services.CreateBookingInput, idemKey string) (*domain.Booking, bool, error)
	Get(ctx context.Context, id uint) (*domain.Booking, error)
	ListPage(ctx context.Context, f repo.BookingFilter, page, pageSize int) ([]domain.Booking, int64, error)
	Stats(ctx context.Context, f repo.BookingFilter) (int64, *time.Time, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}

// ReconcileService answers payment checks.
type ReconcileService interface {
	Check(ctx context.Context, code string) (services.CheckResult, error)
}

// CatalogService serves the service catalog.
type CatalogService interface {
	List(ctx context.Context) ([]domain.Service, error)
	Get(ctx context.Context, id string) (*domain.Service, error)
	Update(ctx context.Context, id string, in services.UpdateServiceInput) (*domain.Service, error)
	Search(ctx context.Context, q string, k int) ([]domain.Service, error)
}

// CustomerService lists customers.
type CustomerService interface {
	ListPage(ctx context.Context, page, pageSize int) ([]repo.CustomerSummary, int64, error)
}

// SettingsService reads and writes site settings.
type SettingsService interface {
	All(ctx context.Context) (map[string]json.RawMessage, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
}

// StatsService reports dashboard counters.
type StatsService interface {
	Counts(ctx context.Context) (repo.BookingCounts, error)
}

//
// Handler wiring
//

// UploadOptions configures POST /upload.
type UploadOptions struct {
	Dir       string // destination directory
	URLPrefix string // public prefix of stored files, e.g. "/uploads"
	MaxBytes  int64
}

// Deps bundles the services the handlers depend on.
type Deps struct {
	Bookings  BookingService
	Reconcile ReconcileService
	Catalog   CatalogService
	Customers CustomerService
	Settings  SettingsService
	Stats     StatsService
	Upload    UploadOptions
}

// Handlers groups HTTP endpoints.
type Handlers struct {
	bookings  BookingService
	reconcile ReconcileService
	catalog   CatalogService
	customers CustomerService
	settings  SettingsService
	stats     StatsService
	upload    UploadOptions
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	if d.Upload.URLPrefix == "" {
		d.Upload.URLPrefix = "/uploads"
	}
	if d.Upload.MaxBytes <= 0 {
		d.Upload.MaxBytes = 5 << 20
	}
	return &Handlers{
		bookings:  d.Bookings,
		reconcile: d.Reconcile,
		catalog:   d.Catalog,
		customers: d.Customers,
		settings:  d.Settings,
		stats:     d.Stats,
		upload:    d.Upload,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page (>= 1) and page_size (1..100, default 20).
func clampPagination(c *gin.Context) (page, pageSize int) {
	page = utils.IntParam(c.Query("page"), 1, 1, math.MaxInt32)
	pageSize = utils.IntParam(c.Query("page_size"), 20, 1, 100)
	return page, pageSize
}

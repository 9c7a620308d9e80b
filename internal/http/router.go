// Package httpapi builds the booking API: outbound integrations, services,
// the middleware chain and the public and admin route groups.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/internal/config"
	"github.com/tbourn/luvia-backend/internal/http/handlers"
	"github.com/tbourn/luvia-backend/internal/http/middleware"
	"github.com/tbourn/luvia-backend/internal/ledger"
	"github.com/tbourn/luvia-backend/internal/notify"
	"github.com/tbourn/luvia-backend/internal/relay"
	"github.com/tbourn/luvia-backend/internal/repo"
	"github.com/tbourn/luvia-backend/internal/services"
)

// Integrations are the outbound clients the services talk to.
type Integrations struct {
	Ledger   services.Ledger
	Notifier notify.Notifier
	Relay    services.Relay
}

// IntegrationsFromConfig builds the ledger, Telegram and webhook clients.
// Missing credentials yield clients that report themselves unconfigured.
func IntegrationsFromConfig(cfg config.Config) Integrations {
	return Integrations{
		Ledger: ledger.New(ledger.Config{
			BaseURL:       cfg.Ledger.APIURL,
			BaseID:        cfg.Ledger.BaseID,
			Token:         cfg.Ledger.AccessToken,
			DefaultTable:  cfg.Ledger.DefaultTable,
			TableOverride: cfg.Ledger.TableOverride,
			FallbackTable: cfg.Ledger.FallbackTable,
			LegacyTableID: cfg.Ledger.LegacyTableID,
			MaxRecords:    cfg.Ledger.MaxRecords,
			Timeout:       cfg.Ledger.Timeout,
		}),
		Notifier: notify.New(notify.TelegramConfig{
			APIURL:   cfg.Telegram.APIURL,
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Timeout:  cfg.Telegram.Timeout,
		}),
		Relay: relay.New(relay.Config{
			URL:     cfg.Webhook.BookingURL,
			Timeout: cfg.Webhook.Timeout,
		}),
	}
}

// Services is the set of application services behind the routes.
type Services struct {
	Bookings  *services.BookingService
	Reconcile *services.ReconcileService
	Catalog   *services.CatalogService
	Customers *services.CustomerService
	Settings  *services.SettingsService
	Stats     *services.StatsService
}

// NewServices builds the application services over db and the integrations.
func NewServices(db *gorm.DB, cfg config.Config, in Integrations) Services {
	bookings := services.NewBookingService(db, in.Relay)
	bookings.CodePrefix = cfg.Booking.CodePrefix
	bookings.PlaceholderFee = cfg.Booking.PlaceholderFee
	bookings.IdempotencyTTL = cfg.IdempotencyTTL
	bookings.RelayTimeout = cfg.Webhook.Timeout * 3

	reconcile := services.NewReconcileService(db, in.Ledger, in.Notifier)
	reconcile.NotifyTimeout = cfg.Telegram.Timeout + 5*time.Second

	return Services{
		Bookings:  bookings,
		Reconcile: reconcile,
		Catalog:   services.NewCatalogService(db),
		Customers: &services.CustomerService{DB: db},
		Settings:  &services.SettingsService{DB: db},
		Stats:     &services.StatsService{DB: db},
	}
}

// RegisterRoutes installs the middleware chain and mounts the public and admin
// API under cfg.APIBasePath. Chain order: tracing, request id, access log,
// recovery, body cap, metrics, idempotency (so replays can skip the limiter),
// rate limit, CORS, security headers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, svcs Services) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}
	createBooking := apiBase + "/bookings"

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"X-Telegram-Bot-Api-Secret-Token"},
			SkipPaths:   []string{"/health", "/metrics"},
		}),
		middleware.Recovery(),
		limitBody(1<<20, apiBase+"/upload"),
		middleware.Metrics(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{
			Scope: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == createBooking {
					return services.IdempotencyScopeCreateBooking
				}
				return ""
			},
		}, idempotencyLookup(db)),
		middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRoute(middleware.KeyByClientIP())).Handler(),
		cors.New(corsPolicy(cfg.CORS.AllowedOrigins)),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:   cfg.Security.EnableHSTS,
			HSTSMaxAge:   cfg.Security.HSTSMaxAge,
			EnablePolicy: true,
			Expose:       []string{"Idempotency-Replayed", "ETag"},
		}),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	const uploadsPrefix = "/uploads"
	r.Static(uploadsPrefix, cfg.UploadDir)

	h := handlers.New(handlers.Deps{
		Bookings:  svcs.Bookings,
		Reconcile: svcs.Reconcile,
		Catalog:   svcs.Catalog,
		Customers: svcs.Customers,
		Settings:  svcs.Settings,
		Stats:     svcs.Stats,
		Upload: handlers.UploadOptions{
			Dir:       cfg.UploadDir,
			URLPrefix: uploadsPrefix,
			MaxBytes:  cfg.MaxUploadBytes,
		},
	})

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/bookings", h.CreateBooking)
		api.GET("/check-booking/:code", h.CheckBooking)

		api.GET("/services", h.ListServices)
		api.GET("/services/search", h.SearchServices)
		api.GET("/services/:id", h.GetService)
		api.GET("/settings", h.GetSettings)
	}

	// Admin API
	admin := api.Group("", middleware.AdminAuth(cfg.AdminToken))
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/bookings/:id", h.GetBooking)
		admin.PATCH("/bookings/:id/status", h.UpdateBookingStatus)

		admin.GET("/customers", h.ListCustomers)
		admin.GET("/stats", h.Stats)

		admin.PUT("/services/:id", h.UpdateService)
		admin.POST("/settings", h.PutSetting)
		admin.POST("/upload", h.UploadImage)
	}
}

// corsPolicy allows any origin without credentials when origins is empty,
// otherwise only the listed ones.
func corsPolicy(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Routes listed in exempt (by their
// registered path) enforce their own limit. Requests exceeding the cap will
// cause downstream body reads to error.
func limitBody(maxBytes int64, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; !ok {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

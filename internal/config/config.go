// Package config reads the server configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/luvia-backend/internal/sysutil"
)

// CORSConfig lists browser origins; empty allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext gRPC
	ServiceName string
	SampleRatio float64 // share of new traces sampled, 0..1
}

// LedgerConfig describes the external payment ledger (an Airtable base).
//
// AccessToken and BaseID have no defaults: when either is empty the ledger is
// reported as not configured and lookups short-circuit.
type LedgerConfig struct {
	AccessToken   string        // AIRTABLE_ACCESS_TOKEN (trimmed)
	BaseID        string        // AIRTABLE_BASE_ID
	APIURL        string        // AIRTABLE_API_URL
	DefaultTable  string        // AIRTABLE_DEFAULT_TABLE
	TableOverride string        // AIRTABLE_TABLE_NAME
	FallbackTable string        // AIRTABLE_FALLBACK_TABLE
	LegacyTableID string        // AIRTABLE_LEGACY_TABLE_ID
	MaxRecords    int           // LEDGER_MAX_RECORDS
	Timeout       time.Duration // LEDGER_TIMEOUT, per request
}

// Configured reports whether the ledger credential and base are present.
func (l LedgerConfig) Configured() bool {
	return l.AccessToken != "" && l.BaseID != ""
}

// TelegramConfig holds the operator notification channel credentials.
type TelegramConfig struct {
	BotToken string        // TELEGRAM_BOT_TOKEN
	ChatID   string        // TELEGRAM_CHAT_ID
	APIURL   string        // TELEGRAM_API_URL
	Timeout  time.Duration // NOTIFY_TIMEOUT
}

// Enabled reports whether both the bot token and the chat id are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// WebhookConfig configures the booking relay to the automation platform.
type WebhookConfig struct {
	BookingURL string        // MAKE_BOOKING_WEBHOOK_URL (empty disables)
	Timeout    time.Duration // WEBHOOK_TIMEOUT
}

// BookingConfig holds booking creation rules.
type BookingConfig struct {
	CodePrefix     string // BOOKING_CODE_PREFIX
	PlaceholderFee int64  // BOOKING_PLACEHOLDER_FEE, charged for "contact us" prices
}

// SweepConfig configures the scheduled server-side reconciliation sweep.
type SweepConfig struct {
	Schedule string        // RECONCILE_SWEEP_SCHEDULE, cron spec; empty disables
	Window   time.Duration // RECONCILE_SWEEP_WINDOW, how far back to look
	Batch    int           // RECONCILE_SWEEP_BATCH, bookings per run
}

// PollConfig carries the client poller cadence.
type PollConfig struct {
	Interval     time.Duration // POLL_INTERVAL
	SuccessDelay time.Duration // POLL_SUCCESS_DELAY
}

// Config is the process configuration, read from the environment.
type Config struct {
	// Server
	Port              string // PORT
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // GIN_MODE, unknown values fall back to release

	LogLevel       string // zerolog level name
	LogPretty      bool   // console writer instead of JSON lines
	SwaggerEnabled bool   // serve /swagger/*
	APIBasePath    string // prefix of every API route, "/api" by default

	DBPath           string // SQLite path
	ServicesSeedPath string // JSON catalog applied to an empty services table
	UploadDir        string // where uploaded images are written
	MaxUploadBytes   int64  // per-file cap for uploads
	AdminToken       string // bearer token for admin routes; empty leaves them open

	// Per client and route.
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration // retention of booking Idempotency-Keys

	// Integrations
	Ledger   LedgerConfig
	Telegram TelegramConfig
	Webhook  WebhookConfig

	// Booking flow
	Booking BookingConfig
	Sweep   SweepConfig
	Poll    PollConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for main: invalid configuration panics.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, fills defaults and validates the result. The
// returned Config is populated even when the error is non-nil.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		DBPath:           getenv("DB_PATH", "luvia.db"),
		ServicesSeedPath: getenv("SERVICES_SEED_PATH", "data/services.json"),
		UploadDir:        getenv("UPLOAD_DIR", "public/uploads"),
		MaxUploadBytes:   int64(getint("MAX_UPLOAD_BYTES", 5<<20)),
		AdminToken:       strings.TrimSpace(getenv("ADMIN_TOKEN", "")),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Ledger (Airtable). Values are trimmed: tokens are usually pasted.
		Ledger: LedgerConfig{
			AccessToken:   strings.TrimSpace(getenv("AIRTABLE_ACCESS_TOKEN", "")),
			BaseID:        strings.TrimSpace(getenv("AIRTABLE_BASE_ID", "")),
			APIURL:        strings.TrimRight(getenv("AIRTABLE_API_URL", "https://api.airtable.com"), "/"),
			DefaultTable:  strings.TrimSpace(getenv("AIRTABLE_DEFAULT_TABLE", "Bookings")),
			TableOverride: strings.TrimSpace(getenv("AIRTABLE_TABLE_NAME", "")),
			FallbackTable: strings.TrimSpace(getenv("AIRTABLE_FALLBACK_TABLE", "Table 1")),
			LegacyTableID: strings.TrimSpace(getenv("AIRTABLE_LEGACY_TABLE_ID", "")),
			MaxRecords:    getint("LEDGER_MAX_RECORDS", 100),
			Timeout:       getdur("LEDGER_TIMEOUT", 8*time.Second),
		},

		// Notifications (Telegram)
		Telegram: TelegramConfig{
			BotToken: strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			ChatID:   strings.TrimSpace(getenv("TELEGRAM_CHAT_ID", "")),
			APIURL:   strings.TrimRight(getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
			Timeout:  getdur("NOTIFY_TIMEOUT", 10*time.Second),
		},

		// Booking relay (Make.com)
		Webhook: WebhookConfig{
			BookingURL: strings.TrimSpace(getenv("MAKE_BOOKING_WEBHOOK_URL", "")),
			Timeout:    getdur("WEBHOOK_TIMEOUT", 10*time.Second),
		},

		Booking: BookingConfig{
			CodePrefix:     strings.ToUpper(strings.TrimSpace(getenv("BOOKING_CODE_PREFIX", "BK"))),
			PlaceholderFee: int64(getint("BOOKING_PLACEHOLDER_FEE", 50000)),
		},
		Sweep: SweepConfig{
			Schedule: strings.TrimSpace(getenv("RECONCILE_SWEEP_SCHEDULE", "")),
			Window:   getdur("RECONCILE_SWEEP_WINDOW", 24*time.Hour),
			Batch:    getint("RECONCILE_SWEEP_BATCH", 20),
		},
		Poll: PollConfig{
			Interval:     getdur("POLL_INTERVAL", 3*time.Second),
			SuccessDelay: getdur("POLL_SUCCESS_DELAY", 1500*time.Millisecond),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "luvia-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		cfg.GinMode = gin.ReleaseMode
	}
	if cfg.Booking.CodePrefix == "" {
		cfg.Booking.CodePrefix = "BK"
	}
	return cfg, cfg.Validate()
}

// Validate returns every invalid setting, joined, or nil.
func (c Config) Validate() error {
	var errs []error
	bad := func(cond bool, format string, args ...any) {
		if cond {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		bad(true, "LOG_LEVEL %q is not a log level", c.LogLevel)
	}
	port, err := strconv.Atoi(c.Port)
	bad(err != nil || port < 1 || port > 65535, "PORT %q is not a TCP port", c.Port)
	bad(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"READ_TIMEOUT, READ_HEADER_TIMEOUT, WRITE_TIMEOUT and IDLE_TIMEOUT must be positive")
	bad(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be positive")
	bad(c.MaxUploadBytes <= 0, "MAX_UPLOAD_BYTES must be positive")
	bad(c.RateRPS < 0, "RATE_RPS must not be negative")
	bad(c.RateBurst < 1, "RATE_BURST must be at least 1")
	bad(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must not be negative")
	bad(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be positive")

	// Airtable caps maxRecords at 100.
	bad(c.Ledger.MaxRecords < 1 || c.Ledger.MaxRecords > 100, "LEDGER_MAX_RECORDS must be in 1..100, got %d", c.Ledger.MaxRecords)
	bad(c.Ledger.Timeout <= 0, "LEDGER_TIMEOUT must be positive")
	bad(c.Telegram.Timeout <= 0, "NOTIFY_TIMEOUT must be positive")
	bad(c.Webhook.Timeout <= 0, "WEBHOOK_TIMEOUT must be positive")
	if c.Webhook.BookingURL != "" {
		u, err := url.Parse(c.Webhook.BookingURL)
		bad(err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "",
			"MAKE_BOOKING_WEBHOOK_URL must be an absolute http(s) URL")
	}

	bad(c.Booking.PlaceholderFee < 0, "BOOKING_PLACEHOLDER_FEE must not be negative")
	bad(c.Sweep.Window <= 0, "RECONCILE_SWEEP_WINDOW must be positive")
	bad(c.Sweep.Batch < 1, "RECONCILE_SWEEP_BATCH must be at least 1")
	bad(c.Poll.Interval <= 0, "POLL_INTERVAL must be positive")
	bad(c.Poll.SuccessDelay < 0, "POLL_SUCCESS_DELAY must not be negative")
	bad(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1], got %g", c.OTEL.SampleRatio)

	return errors.Join(errs...)
}

// Blank values count as unset.
func lookup(k string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(k))
	return v, v != ""
}

func getenv(k, def string) string {
	if v, ok := lookup(k); ok {
		return v
	}
	return def
}

// parsed falls back to def when k is unset or does not parse.
func parsed[T any](k string, def T, parse func(string) (T, error)) T {
	if v, ok := lookup(k); ok {
		if x, err := parse(v); err == nil {
			return x
		}
	}
	return def
}

func getint(k string, def int) int { return parsed(k, def, strconv.Atoi) }

func getfloat(k string, def float64) float64 {
	return parsed(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getdur(k string, def time.Duration) time.Duration { return parsed(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	if b, known := sysutil.ParseBool(os.Getenv(k)); known {
		return b
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath yields "/" or a path with one leading and no trailing slash.
func normalizeBasePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}

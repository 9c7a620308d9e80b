package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{
		MaskHeaders: []string{"X-Telegram-Bot-Api-Secret-Token"},
		MaskParams:  []string{"secret"},
	}))
	r.GET("/api/check-booking/:code", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet,
		"/api/check-booking/CB7777?email=lan.nguyen%40example.vn&ref=123e4567-e89b-12d3-a456-426614174000&secret=s1&note=g%E1%BB%8Di+0912.345.678", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	req.Header.Set("Cookie", "sid=abc")
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "tg")
	req.Header.Set("X-Contact", "mail a@b.co phone +84 912 345 678")
	req.Header.Set(requestIDHeader, "rid-scrub")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	for _, leak := range []string{"lan.nguyen", "426614174000", "s1&", "0912.345.678", "admin-token", "sid=abc", `"tg"`, "912 345 678"} {
		if strings.Contains(logs, leak) {
			t.Fatalf("%q leaked: %s", leak, logs)
		}
	}
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/api/check-booking/:code"`,
		`"request_id":"rid-scrub"`,
		`email=[REDACTED:email]`,
		`ref=[REDACTED:id]`,
		`secret=[REDACTED]`,
		`note=gọi [REDACTED:phone]`,
		`"Authorization":"[REDACTED]"`,
		`"X-Telegram-Bot-Api-Secret-Token":"[REDACTED]"`,
		`"X-Contact":"mail [REDACTED:email] phone [REDACTED:phone]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("missing %q in %s", want, logs)
		}
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/missing-booking", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/ledger-down", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	r.GET("/bad", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadRequest)
	})

	cases := []struct {
		path, level string
	}{
		{"/missing-booking", "warn"},
		{"/ledger-down", "error"},
		{"/bad", "error"},
	}
	for _, tc := range cases {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set(requestIDHeader, "rid-"+tc.level)
		r.ServeHTTP(httptest.NewRecorder(), req)
		line := buf.String()
		if !strings.Contains(line, `"level":"`+tc.level+`"`) || !strings.Contains(line, `"request_id":"rid-`+tc.level+`"`) {
			t.Fatalf("%s: %s", tc.path, line)
		}
	}
}

func TestRedactingLogger_SkipPathsAndScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLog(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{SkipPaths: []string{"/health"}}))
	healthy := true
	r.GET("/health", func(c *gin.Context) {
		if !healthy {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/bookings", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("listing bookings")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("healthy probe should be quiet: %s", buf.String())
	}
	healthy = false
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if !strings.Contains(buf.String(), `"path":"/health"`) {
		t.Fatalf("failing probe must log: %s", buf.String())
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/bookings?q=0901234567", nil)
	req.Header.Set(requestIDHeader, "rid-scoped")
	r.ServeHTTP(httptest.NewRecorder(), req)
	logs := buf.String()
	if !strings.Contains(logs, `"message":"listing bookings"`) || strings.Count(logs, `"request_id":"rid-scoped"`) != 2 {
		t.Fatalf("scoped logger lines: %s", logs)
	}
	if strings.Contains(logs, "0901234567") {
		t.Fatalf("phone leaked: %s", logs)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if !strings.Contains(buf.String(), `"path":"/nope"`) {
		t.Fatalf("unmatched route should log raw path: %s", buf.String())
	}
}

func TestScrubber_Text(t *testing.T) {
	s := newScrubber(RedactOptions{})
	cases := map[string]string{
		"call 0901234567":         "call [REDACTED:phone]",
		"call 090.123.4567":       "call [REDACTED:phone]",
		"call +84 90 123 4567":    "call [REDACTED:phone]",
		"us 555-123-4567":         "us [REDACTED:phone]",
		"code CB7777 fee 300000":  "code CB7777 fee 300000",
		"x@y.vn":                  "[REDACTED:email]",
		"Chờ thanh toán":          "Chờ thanh toán",
	}
	for in, want := range cases {
		if got := s.text(in); got != want {
			t.Errorf("text(%q) = %q; want %q", in, got, want)
		}
	}
	if got := s.query("%zz"); got != "%zz" {
		t.Errorf("malformed query = %q", got)
	}
}

package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/luvia-backend/internal/http/middleware"
)

func TestFail_EnvelopeAndServerErrorLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/api/check-booking/:code", func(c *gin.Context) {
		_ = c.Error(errors.New("ledger: dial tcp: i/o timeout"))
		fail(c, http.StatusServiceUnavailable, ErrCodeLedgerUnavailable, "payment ledger unavailable")
	})
	r.GET("/api/services/:id", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "service not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/check-booking/CB1", nil)
	req.Header.Set("X-Request-ID", "rid-503")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	got := decodeErr(t, w)
	if got != (ErrorResponse{RequestID: "rid-503", Code: ErrCodeLedgerUnavailable, Message: "payment ledger unavailable"}) {
		t.Fatalf("body = %+v", got)
	}
	logs := buf.String()
	for _, want := range []string{`"level":"error"`, `"route":"/api/check-booking/:code"`, `"cause":"ledger: dial tcp: i/o timeout"`} {
		if !strings.Contains(logs, want) {
			t.Fatalf("missing %s in %s", want, logs)
		}
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/services/unknown", nil))
	if w.Code != http.StatusNotFound || decodeErr(t, w).Code != ErrCodeNotFound {
		t.Fatalf("404 -> %d %s", w.Code, w.Body.String())
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx should not log: %s", buf.String())
	}
}

func TestWeakETag(t *testing.T) {
	a := weakETag("bookings", "new", "Nguyễn \"A\"", 1, 20)
	if !strings.HasPrefix(a, `W/"bookings-`) || strings.ContainsAny(a[3:len(a)-1], "\" ") {
		t.Fatalf("etag not a clean weak validator: %s", a)
	}
	if a != weakETag("bookings", "new", "Nguyễn \"A\"", 1, 20) {
		t.Fatal("etag not stable")
	}
	if a == weakETag("bookings", "new", "Nguyễn \"A\"", 2, 20) {
		t.Fatal("page change must change etag")
	}
}

func TestNotModified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const etag = `W/"bookings-00000000000000aa"`
	cases := []struct {
		inm  string
		want bool
	}{
		{"", false},
		{etag, true},
		{`"bookings-00000000000000aa"`, true},
		{`W/"other", ` + etag, true},
		{"*", true},
		{`W/"other"`, false},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/bookings", nil)
		if tc.inm != "" {
			c.Request.Header.Set("If-None-Match", tc.inm)
		}
		if got := notModified(c, etag); got != tc.want {
			t.Errorf("If-None-Match %q -> %v; want %v", tc.inm, got, tc.want)
		}
		if w.Header().Get("ETag") != etag {
			t.Errorf("ETag header not set for %q", tc.inm)
		}
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"success": true}) })
	r.DELETE("/gone", noContent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusCreated || strings.TrimSpace(w.Body.String()) != `{"success":true}` {
		t.Fatalf("ok -> %d %s", w.Code, w.Body.String())
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/gone", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent -> %d %q", w.Code, w.Body.String())
	}
}

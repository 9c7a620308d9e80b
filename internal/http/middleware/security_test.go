package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedResponse(opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/api/check-booking/:code", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := securedResponse(SecurityOptions{}, nil, httptest.NewRequest(http.MethodGet, "/api/check-booking/CB1", nil))
	want := map[string]string{
		"X-Content-Type-Options":            "nosniff",
		"X-Frame-Options":                   "DENY",
		"Referrer-Policy":                   "no-referrer",
		"Permissions-Policy":                "",
		"Cache-Control":                     "",
		"Strict-Transport-Security":         "",
		"Access-Control-Expose-Headers":     "",
		"X-Permitted-Cross-Domain-Policies": "",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q; want %q", k, got, v)
		}
	}
}

func TestSecurityHeaders_Optional(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/check-booking/CB1", nil)
	req.TLS = &tls.ConnectionState{}
	h := securedResponse(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil, req)

	if h.Get("Strict-Transport-Security") != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("hsts = %q", h.Get("Strict-Transport-Security"))
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers: %v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers: %v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true}

	plain := securedResponse(opt, nil, httptest.NewRequest(http.MethodGet, "/api/check-booking/CB1", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS sent over plain HTTP")
	}

	proxied := httptest.NewRequest(http.MethodGet, "/api/check-booking/CB1", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	h := securedResponse(opt, nil, proxied)
	if h.Get("Strict-Transport-Security") != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default max-age hsts = %q", h.Get("Strict-Transport-Security"))
	}
}

func TestSecurityHeaders_ExposeHeaders(t *testing.T) {
	withRID := func(existing string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Header(requestIDHeader, "rid-1")
			if existing != "" {
				c.Header("Access-Control-Expose-Headers", existing)
			}
			c.Next()
		}
	}
	cases := []struct {
		name     string
		existing string
		expose   []string
		want     string
	}{
		{"request id only", "", nil, "X-Request-ID"},
		{"appended to existing", "Content-Length", nil, "Content-Length, X-Request-ID"},
		{"no duplicates", "x-request-id, ETag", []string{"etag"}, "x-request-id, ETag"},
		{"extra names", "", []string{"Idempotency-Replayed", "ETag"}, "X-Request-ID, Idempotency-Replayed, ETag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := securedResponse(SecurityOptions{Expose: tc.expose}, withRID(tc.existing),
				httptest.NewRequest(http.MethodGet, "/api/check-booking/CB1", nil))
			if got := h.Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q; want %q", got, tc.want)
			}
		})
	}
}

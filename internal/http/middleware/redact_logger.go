package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions tunes RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced wholesale with [REDACTED], on top of
	// Authorization, Cookie and Set-Cookie.
	MaskHeaders []string
	// MaskParams are query parameters whose values are always masked.
	MaskParams []string
	// SkipPaths suppress the access line for successful requests on the
	// given route templates (health probes, scrapes). Failures still log.
	SkipPaths []string
}

type piiRule struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: ids before phones so UUID digit runs are not read as numbers.
var piiRules = []piiRule{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[REDACTED:email]"},
	// Vietnamese mobiles: 0xx / 84xx / +84xx with optional separators.
	{regexp.MustCompile(`(?:\+84|\b84|\b0)[ .\-]?\d{2,3}[ .\-]?\d{3}[ .\-]?\d{3,4}\b`), "[REDACTED:phone]"},
	{regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`), "[REDACTED:phone]"},
}

// scrubber applies the PII rules and the configured masks.
type scrubber struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

func newScrubber(opts RedactOptions) scrubber {
	s := scrubber{
		headers: map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}},
		params:  map[string]struct{}{"token": {}, "access_token": {}, "phone": {}},
	}
	for _, h := range opts.MaskHeaders {
		s.headers[strings.ToLower(h)] = struct{}{}
	}
	for _, p := range opts.MaskParams {
		s.params[strings.ToLower(p)] = struct{}{}
	}
	return s
}

func (s scrubber) text(v string) string {
	for _, r := range piiRules {
		v = r.re.ReplaceAllString(v, r.repl)
	}
	return v
}

// query decodes the raw query so masked parameters are caught regardless of
// encoding, then renders it back unescaped in key order. Unparseable input
// falls back to plain pattern scrubbing.
func (s scrubber) query(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return s.text(raw)
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		_, masked := s.params[strings.ToLower(k)]
		for _, v := range vals[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if masked {
				b.WriteString("[REDACTED]")
			} else {
				b.WriteString(s.text(v))
			}
		}
	}
	return b.String()
}

func (s scrubber) header(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if _, masked := s.headers[strings.ToLower(k)]; masked {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = s.text(strings.Join(vs, ","))
	}
	return out
}

// RedactingLogger installs a request-scoped zerolog logger (see LoggerFrom)
// and emits one "http_request" line per request with emails, phone numbers,
// UUIDs and credential headers scrubbed. 5xx responses and requests that
// recorded gin errors log at error, other 4xx at warn, the rest at info.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	s := newScrubber(opts)
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		rid := RequestIDFrom(c)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}
		scoped := log.With().Str("request_id", rid).Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if _, quiet := skip[route]; quiet && status < http.StatusBadRequest && len(c.Errors) == 0 {
			return
		}
		if route == "" {
			route = c.Request.URL.Path
		}

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			ev = scoped.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", s.text(c.Errors.String()))
			}
		case status >= http.StatusBadRequest:
			ev = scoped.Warn()
		default:
			ev = scoped.Info()
		}

		ev.Str("method", c.Request.Method).
			Str("path", route).
			Str("query", truncate(s.query(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", s.text(c.Request.UserAgent())).
			Interface("headers", s.header(c.Request.Header)).
			Msg("http_request")
	}
}

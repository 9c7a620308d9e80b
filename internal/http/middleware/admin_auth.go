package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const ctxKeyAdmin = "auth.admin"

// IsAdmin reports whether AdminAuth accepted this request.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ctxKeyAdmin)
}

// AdminAuth requires "Authorization: Bearer <token>" to match token, compared
// in constant time. Failures answer 401 with a WWW-Authenticate challenge.
// An empty token leaves the group open.
func AdminAuth(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	if token == "" {
		log.Warn().Msg("admin routes are unauthenticated: ADMIN_TOKEN is empty")
		return func(c *gin.Context) {
			c.Set(ctxKeyAdmin, true)
			c.Next()
		}
	}
	want := []byte(token)

	return func(c *gin.Context) {
		got, found := bearer(c.GetHeader("Authorization"))
		if !found || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}
		c.Set(ctxKeyAdmin, true)
		c.Next()
	}
}

// bearer extracts the credential from an Authorization header value. The
// scheme is matched case-insensitively.
func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

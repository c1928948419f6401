package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rowshare-backend/internal/shared/auth"
	"rowshare-backend/internal/shared/server/respond"
)

const (
	subjectKey = "sub"
	emailKey   = "email"
	nameKey    = "name"
	adminKey   = "admin"
)

// Identity reads an optional bearer JWT and stores the caller in context.
// Requests without a token pass through anonymously; a malformed or invalid
// token is rejected.
func Identity(signer *auth.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || signer == nil {
			c.Next()
			return
		}
		token, ok := bearerToken(authHeader)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		claims, err := signer.Verify(token)
		if err != nil {
			// Cron callers send a shared secret, not a JWT.
			if isCronPath(c.Request.URL.Path) {
				c.Next()
				return
			}
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(subjectKey, claims.Sub)
		if claims.Email != "" {
			c.Set(emailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(nameKey, claims.Name)
		}
		c.Set(adminKey, claims.Admin)
		c.Next()
	}
}

// RequireAdmin rejects callers that are not on the admin allowlist.
func RequireAdmin(adminEmails []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if SubjectFromContext(c) == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		email := strings.ToLower(EmailFromContext(c))
		if _, ok := allowed[email]; !ok || !IsAdmin(c) {
			respond.Error(c, http.StatusForbidden, "forbidden", "admin access required", nil)
			return
		}
		c.Next()
	}
}

// CronSecret gates scheduled endpoints behind "Authorization: Bearer <secret>".
// An empty secret rejects every request.
func CronSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		token, ok := bearerToken(strings.TrimSpace(c.GetHeader("Authorization")))
		if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			respond.Fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	return token, token != ""
}

func isCronPath(path string) bool {
	return strings.HasPrefix(path, "/cron/") || strings.HasPrefix(path, "/api/cron/")
}

// SubjectFromContext fetches the token subject set by Identity.
func SubjectFromContext(c *gin.Context) string {
	return stringFromContext(c, subjectKey)
}

// EmailFromContext fetches the caller email set by Identity.
func EmailFromContext(c *gin.Context) string {
	return stringFromContext(c, emailKey)
}

// NameFromContext fetches the caller display name set by Identity.
func NameFromContext(c *gin.Context) string {
	return stringFromContext(c, nameKey)
}

// IsAdmin reports whether the token carried the admin claim.
func IsAdmin(c *gin.Context) bool {
	if c == nil {
		return false
	}
	return c.GetBool(adminKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

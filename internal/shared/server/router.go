package server

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	googleauth "rowshare-backend/internal/auth"
	"rowshare-backend/internal/catalog"
	"rowshare-backend/internal/rows"
	"rowshare-backend/internal/shared/auth"
	"rowshare-backend/internal/shared/config"
	"rowshare-backend/internal/shared/metrics"
	"rowshare-backend/internal/shared/server/middleware"
	"rowshare-backend/internal/shared/server/respond"
	"rowshare-backend/internal/shared/storage/db"
)

// Route prefixes every API route is mounted under.
var mountPrefixes = []string{"/", "/api"}

// Rate limit groups.
const (
	rateGroupUpload = "UPLOAD"
	rateGroupImage  = "IMAGE"
	rateGroupRead   = "READ"
)

// RouterDeps carries the handlers and shared services the router mounts.
type RouterDeps struct {
	Config      config.Config
	DB          *sql.DB
	Signer      *auth.Signer
	Rows        *rows.Handler
	Catalog     *catalog.Handler
	GoogleAuth  *googleauth.GoogleService
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Identity(deps.Signer),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupRead,
			GroupFor:     rateGroupFor,
			Limiter:      deps.RateLimiter,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupUpload: {Rate: 0.5, Burst: 10},
				rateGroupImage:  {Rate: 1, Burst: 20},
				rateGroupRead:   {Rate: 20, Burst: 60},
			},
		}),
	)
	r.NoMethod(func(c *gin.Context) {
		respond.Fail(c, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NoRoute(func(c *gin.Context) {
		respond.Fail(c, http.StatusNotFound, "Not found")
	})

	for _, prefix := range mountPrefixes {
		g := r.Group(prefix)
		g.GET("/health", healthHandler(deps))
		g.GET("/metrics", metrics.Handler())
		registerMeRoutes(g)
		if deps.GoogleAuth != nil {
			deps.GoogleAuth.RegisterRoutes(g)
		}
		if deps.Rows != nil {
			deps.Rows.RegisterRoutes(g)
		}
		if deps.Catalog != nil {
			deps.Catalog.RegisterRoutes(g)
		}
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return rateGroupRead
	}
	route := strings.TrimPrefix(c.FullPath(), "/api")
	switch route {
	case "/upload":
		return rateGroupUpload
	case "/catalog/images":
		return rateGroupImage
	}
	return rateGroupRead
}

func healthHandler(deps RouterDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"ok": true, "store": deps.Config.Store}
		if deps.DB != nil {
			if err := db.Ping(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
				body["ok"] = false
				body["error"] = "database unreachable"
				respond.JSON(c, http.StatusServiceUnavailable, body)
				return
			}
			body["pool"] = db.Stats(deps.DB)
		}
		respond.JSON(c, http.StatusOK, body)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

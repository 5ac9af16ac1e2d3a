package api

import (
	"context"  // Health check deadline
	"net/http" // HTTP status codes
	"time"     // Health check timeout

	"exchange_api/internal/middleware" // Request id, logging and rate limiting
	"exchange_api/internal/service"    // User service

	"github.com/gin-gonic/gin" // Gin web framework
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds the router's dependencies
type RouterConfig struct {
	Users          *service.UserService
	DB             Pinger
	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []string
}

// NewRouter wires middleware and routes onto a new gin engine
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())

	r.GET("/health", HealthHandler(cfg.DB))

	users := r.Group("/api/users")
	users.GET("", ListUsersHandler(cfg.Users))
	users.GET("/profile", GetProfileHandler(cfg.Users))
	users.GET("/:id", GetUserHandler(cfg.Users))

	// Writes share one per-client budget
	writes := users.Group("")
	if cfg.RateLimitRPS > 0 {
		writes.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
	}
	writes.POST("", CreateUserHandler(cfg.Users))
	writes.PUT("/profile", UpdateProfileHandler(cfg.Users))
	writes.PUT("/:id", UpdateUserHandler(cfg.Users))
	writes.DELETE("/:id", DeleteUserHandler(cfg.Users))

	return r, nil
}

// HealthHandler reports database reachability
func HealthHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

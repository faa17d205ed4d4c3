package api

import (
	"PharmaChat/backend/go/pkg/circuitbreaker"
	"PharmaChat/backend/go/pkg/httpmiddleware"
	"PharmaChat/backend/go/pkg/logger"
	"PharmaChat/backend/go/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// RouterOptions are the optional middlewares; nil fields are skipped.
type RouterOptions struct {
	Limiter ratelimiter.KeyedLimiter
	Breaker circuitbreaker.CircuitBreaker
}

// NewRouter builds the gin engine with recovery and request logging.
func NewRouter(api *API, log *logger.Logger, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), httpmiddleware.RequestLogger(log))
	RegisterRoutes(router, api, opts)
	return router
}

// RegisterRoutes registers all the routes for the pharmacy service.
func RegisterRoutes(router *gin.Engine, api *API, opts RouterOptions) {
	// All routes will be under /api/pharmacy
	pharmacy := router.Group("/api/pharmacy")
	pharmacy.GET("/healthz", api.HealthHandler)

	limited := pharmacy.Group("")
	if opts.Limiter != nil {
		limited.Use(httpmiddleware.RateLimit(opts.Limiter))
	}
	if opts.Breaker != nil {
		limited.Use(httpmiddleware.CircuitBreak(opts.Breaker))
	}
	{
		limited.GET("/search", api.SearchHandler)
		limited.POST("/refresh", api.RefreshHandler)
		limited.GET("/refresh/history", api.RefreshHistoryHandler)
	}
}

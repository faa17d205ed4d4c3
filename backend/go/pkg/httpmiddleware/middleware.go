package httpmiddleware

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/pkg/circuitbreaker"
	"PharmaChat/backend/go/pkg/logger"
	"PharmaChat/backend/go/pkg/ratelimiter"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimit is a middleware that limits requests per client IP.
func RateLimit(limiter ratelimiter.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

// CircuitBreak is a middleware that applies the circuit breaker pattern to the handlers after it.
// It considers HTTP status codes >= 500 as failures.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := breaker.Execute(func() (interface{}, error) {
			c.Next()
			if status := c.Writer.Status(); status >= http.StatusInternalServerError {
				return nil, fmt.Errorf("server error: status code %d", status)
			}
			return nil, nil
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			// When the circuit is open, prevent the request and return Service Unavailable.
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service Unavailable: Circuit Breaker is open"})
		}
	}
}

// RequestLogger logs every request with its status and latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		info := models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Status:     c.Writer.Status(),
			LatencyMs:  time.Since(start).Milliseconds(),
		}
		entry := log.WithRequest(info)
		switch {
		case info.Status >= http.StatusInternalServerError:
			entry.Error(fmt.Sprintf("%s %s -> %d", info.Method, info.Path, info.Status))
		case info.Status >= http.StatusBadRequest:
			entry.Warn(fmt.Sprintf("%s %s -> %d", info.Method, info.Path, info.Status))
		default:
			entry.Info(fmt.Sprintf("%s %s -> %d", info.Method, info.Path, info.Status))
		}
	}
}

package analytics

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/pkg/logger"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// API exposes the aggregated query statistics.
type API struct {
	store  EventStore
	logger *logger.Logger
	now    func() time.Time
}

// NewAPI creates a new API.
func NewAPI(store EventStore, logger *logger.Logger) *API {
	return &API{store: store, logger: logger, now: time.Now}
}

// RegisterRoutes mounts the analytics routes under /api/pharmacy/analytics.
func RegisterRoutes(router *gin.Engine, api *API) {
	group := router.Group("/api/pharmacy/analytics")
	group.GET("/unanswered", api.UnansweredHandler)
}

// UnansweredHandler lists the most frequent questions the catalog could not answer.
// Query params: limit (default 20, max 200), days (default 7).
func (a *API) UnansweredHandler(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	since := a.now().AddDate(0, 0, -days)
	queries, err := a.store.Unanswered(c.Request.Context(), since, limit)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to aggregate unanswered queries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}
	if queries == nil {
		queries = []QueryCount{}
	}
	c.JSON(http.StatusOK, gin.H{"since": since.UTC(), "queries": queries})
}

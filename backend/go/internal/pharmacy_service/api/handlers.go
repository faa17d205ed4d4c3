package api

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/service"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	healthCheckTimeout  = 2 * time.Second
)

// HealthCheck 检查一个外部依赖是否可用。
type HealthCheck func(ctx context.Context) error

// DocumentCounter reports the size of the retrieval index.
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// API provides handlers for the pharmacy service.
type API struct {
	search    *service.PharmacyService
	ingestion *service.IngestionService
	index     DocumentCounter
	logger    *logger.Logger
	checks    map[string]HealthCheck
}

// NewAPI creates a new API handler.
func NewAPI(search *service.PharmacyService, ingestion *service.IngestionService, index DocumentCounter, logger *logger.Logger) *API {
	return &API{search: search, ingestion: ingestion, index: index, logger: logger, checks: map[string]HealthCheck{}}
}

// AddHealthCheck registers a dependency probe reported by /healthz.
func (a *API) AddHealthCheck(name string, check HealthCheck) {
	a.checks[name] = check
}

// SearchHandler answers a catalog question. chatId is optional.
func (a *API) SearchHandler(c *gin.Context) {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}
	chatID := c.Query("chatId")
	a.logger.Info(fmt.Sprintf("Received API request. Query: [%s] | ChatID: [%s]", query, chatID))

	resp, err := a.search.Search(c.Request.Context(), query, chatID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": resp.Answer, "chatId": resp.ConversationID})
}

// RefreshHandler re-ingests the catalog. The refresh completes even if the client disconnects.
func (a *API) RefreshHandler(c *gin.Context) {
	a.logger.Info("Received manual data refresh request.")
	status := a.ingestion.Refresh(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RefreshHistoryHandler lists recent refresh runs, newest first.
func (a *API) RefreshHistoryHandler(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := a.ingestion.History(c.Request.Context(), limit)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to load refresh history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve refresh history"})
		return
	}
	if runs == nil {
		runs = []models.RefreshRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// HealthHandler reports liveness and the number of indexed documents.
func (a *API) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	n, err := a.index.Count(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}

	failed := gin.H{}
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		a.logger.WithPayload(failed).Warn("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "documents": n, "checks": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "documents": n})
}

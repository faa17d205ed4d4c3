package service

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/loaders"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/pipeline"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 刷新结果对应的固定状态文案。
const (
	StatusUnreachable = "Error: Google Sheet URL kaam nahi kar raha."
	StatusEmpty       = "Warning: Sheet khali hai."
	statusSuccess     = "Success: Live Data Refreshed! (%d items)"
	statusFailed      = "Update Failed: %s"
)

// ErrRefreshInProgress is reported when a refresh is requested while another is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

const maxCauseLen = 200

// IngestionService refreshes the retrieval index from the configured catalog source.
type IngestionService struct {
	pipeline *pipeline.IngestionPipeline
	history  interfaces.RefreshLog
	source   string
	log      *logger.Logger

	mu sync.Mutex
}

// NewIngestionService creates a new IngestionService.
func NewIngestionService(p *pipeline.IngestionPipeline, history interfaces.RefreshLog, source string, log *logger.Logger) *IngestionService {
	return &IngestionService{pipeline: p, history: history, source: source, log: log}
}

// Source returns the configured catalog location.
func (s *IngestionService) Source() string {
	return s.source
}

// Refresh re-ingests the catalog and returns the user-facing status line.
// Only one refresh runs at a time; searches are never blocked.
func (s *IngestionService) Refresh(ctx context.Context) string {
	if !s.mu.TryLock() {
		s.log.Warn("Refresh requested while another refresh is running")
		return fmt.Sprintf(statusFailed, ErrRefreshInProgress.Error())
	}
	defer s.mu.Unlock()

	s.log.Info("Syncing with live catalog source...")
	run := &models.RefreshRun{
		ID:        uuid.NewString(),
		Source:    s.source,
		StartedAt: time.Now().UTC(),
	}

	report, err := s.pipeline.Run(ctx, s.source)
	run.FinishedAt = time.Now().UTC()
	run.Items = report.Indexed
	run.Skipped = report.Skipped
	run.Pruned = report.Pruned

	switch {
	case err == nil:
		run.Status = models.RefreshSucceeded
		run.Message = fmt.Sprintf(statusSuccess, report.Indexed)
		s.log.Info(fmt.Sprintf("Data Refresh Successful! %d items loaded.", report.Indexed))
	case errors.Is(err, loaders.ErrSourceUnavailable):
		run.Status = models.RefreshUnreachable
		run.Message = StatusUnreachable
	case errors.Is(err, pipeline.ErrEmptyCatalog):
		run.Status = models.RefreshEmpty
		run.Message = StatusEmpty
	default:
		run.Status = models.RefreshFailed
		run.Message = fmt.Sprintf(statusFailed, shortCause(err))
	}
	if err != nil {
		run.Error = err.Error()
		s.log.WithError(models.ErrorInfo{Message: err.Error(), Type: string(run.Status)}).Error("Refresh Failed")
	}

	if s.history != nil {
		if herr := s.history.Record(context.WithoutCancel(ctx), run); herr != nil {
			s.log.WithError(models.ErrorInfo{Message: herr.Error()}).Warn("Failed to record refresh run")
		}
	}
	return run.Message
}

// History returns the most recent refresh runs, newest first.
func (s *IngestionService) History(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

func shortCause(err error) string {
	msg := err.Error()
	if len(msg) > maxCauseLen {
		msg = msg[:maxCauseLen] + "..."
	}
	return msg
}

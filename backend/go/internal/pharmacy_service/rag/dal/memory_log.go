package dal

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"sync"
)

// MemoryRefreshLog keeps the most recent refresh runs in memory.
type MemoryRefreshLog struct {
	mu   sync.Mutex
	runs []models.RefreshRun
	max  int
}

// NewMemoryRefreshLog keeps at most max runs; max <= 0 means 100.
func NewMemoryRefreshLog(max int) *MemoryRefreshLog {
	if max <= 0 {
		max = 100
	}
	return &MemoryRefreshLog{max: max}
}

func (l *MemoryRefreshLog) Record(ctx context.Context, run *models.RefreshRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.runs {
		if l.runs[i].ID == run.ID {
			l.runs[i] = *run
			return nil
		}
	}
	l.runs = append(l.runs, *run)
	if len(l.runs) > l.max {
		l.runs = append([]models.RefreshRun(nil), l.runs[len(l.runs)-l.max:]...)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *MemoryRefreshLog) Recent(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.runs) {
		limit = len(l.runs)
	}
	out := make([]models.RefreshRun, 0, limit)
	for i := len(l.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.runs[i])
	}
	return out, nil
}

// compile-time check to ensure MemoryRefreshLog implements the RefreshLog interface
var _ interfaces.RefreshLog = (*MemoryRefreshLog)(nil)

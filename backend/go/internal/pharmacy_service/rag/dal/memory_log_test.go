package dal

import (
	"PharmaChat/backend/go/internal/models"
	"context"
	"fmt"
	"testing"
)

func TestMemoryRefreshLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRefreshLog(3)
	for i := 1; i <= 4; i++ {
		l.Record(ctx, &models.RefreshRun{ID: fmt.Sprint(i), Status: models.RefreshSucceeded})
	}
	l.Record(ctx, &models.RefreshRun{ID: "4", Status: models.RefreshFailed})

	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs kept, got %d", len(runs))
	}
	if runs[0].ID != "4" || runs[0].Status != models.RefreshFailed || runs[2].ID != "2" {
		t.Errorf("unexpected order %+v", runs)
	}
	if runs, _ := l.Recent(ctx, 1); len(runs) != 1 {
		t.Errorf("expected limit 1, got %d", len(runs))
	}
}

package chatmemory

import (
	"PharmaChat/backend/go/internal/database/sqlite"
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
)

// externalStores 由需要外部服务的测试文件注册（见 integration_test.go）。
var externalStores []func(t *testing.T) (string, interfaces.ChatMemory, bool)

func stores(t *testing.T) map[string]interfaces.ChatMemory {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sq, err := NewSQLiteStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	out := map[string]interfaces.ChatMemory{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
	for _, open := range externalStores {
		if name, store, ok := open(t); ok {
			out[name] = store
		}
	}
	return out
}

func TestRecentTurnsOldestFirst(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				role := models.SpeakerUser
				if i%2 == 0 {
					role = models.SpeakerAssistant
				}
				turn, err := store.Append(ctx, "c1", role, fmt.Sprintf("msg %d", i))
				if err != nil {
					t.Fatal(err)
				}
				if turn.Sequence != int64(i) {
					t.Errorf("expected sequence %d, got %d", i, turn.Sequence)
				}
			}
			store.Append(ctx, "c2", models.SpeakerUser, "other")

			turns, err := store.RecentTurns(ctx, "c1", 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(turns) != 3 {
				t.Fatalf("expected 3 turns, got %d", len(turns))
			}
			for i, want := range []string{"msg 3", "msg 4", "msg 5"} {
				if turns[i].Text != want {
					t.Errorf("turn %d = %q, want %q", i, turns[i].Text, want)
				}
			}
			if turns[1].Role != models.SpeakerAssistant {
				t.Errorf("expected assistant role, got %s", turns[1].Role)
			}
		})
	}
}

func TestRecentTurnsEmpty(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			turns, err := store.RecentTurns(context.Background(), "unknown", 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(turns) != 0 {
				t.Errorf("expected no turns, got %d", len(turns))
			}
			store.Append(context.Background(), "c", models.SpeakerUser, "hi")
			if turns, _ := store.RecentTurns(context.Background(), "c", 0); len(turns) != 0 {
				t.Errorf("limit 0 should return nothing, got %d", len(turns))
			}
		})
	}
}

func TestConcurrentAppendsAreContiguous(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 40
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seqs []int64
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					turn, err := store.Append(ctx, "shared", models.SpeakerUser, fmt.Sprint(i))
					if err != nil {
						t.Error(err)
						return
					}
					mu.Lock()
					seqs = append(seqs, turn.Sequence)
					mu.Unlock()
				}(i)
			}
			wg.Wait()

			sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
			for i, s := range seqs {
				if s != int64(i+1) {
					t.Fatalf("sequences are not contiguous: %v", seqs)
				}
			}
			turns, _ := store.RecentTurns(ctx, "shared", n)
			for i := 1; i < len(turns); i++ {
				if turns[i].Sequence <= turns[i-1].Sequence {
					t.Fatalf("turns out of order at %d", i)
				}
			}
		})
	}
}

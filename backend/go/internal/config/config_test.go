package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
pharmacy:
  sheetURL: "https://example.com/sheet.csv"
storage:
  chatMemory: sqlite
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Pharmacy.TopK != 15 || cfg.Pharmacy.HistoryDepth != 10 {
		t.Errorf("unexpected topK/historyDepth: %d/%d", cfg.Pharmacy.TopK, cfg.Pharmacy.HistoryDepth)
	}
	if cfg.Pharmacy.Markers.Final != "Final Answer:" || len(cfg.Pharmacy.Markers.Answer) != 2 {
		t.Errorf("unexpected markers: %+v", cfg.Pharmacy.Markers)
	}
	if !cfg.Pharmacy.RefreshOnStart || !cfg.Pharmacy.PruneStale {
		t.Error("expected refreshOnStart and pruneStale to default to true")
	}
	if cfg.Storage.VectorStore != "memory" || cfg.Storage.ChatMemory != "sqlite" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Databases.Kafka.QueryTopic != "pharmacy.queries" {
		t.Errorf("unexpected kafka topic %q", cfg.Databases.Kafka.QueryTopic)
	}
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("PHARMA_TEST_KEY", "secret-key")
	cfg, err := Parse([]byte("llm:\n  provider: gemini\n  gemini:\n    apiKey: ${PHARMA_TEST_KEY}\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.LLM.Gemini.APIKey != "secret-key" {
		t.Errorf("expected expanded api key, got %q", cfg.LLM.Gemini.APIKey)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad duration":     "llm:\n  timeout: soon\n",
		"bad vector store": "storage:\n  vectorStore: faiss\n",
		"bad chat memory":  "storage:\n  chatMemory: etcd\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("Duration(\"\") = %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("Duration(250ms) = %v", got)
	}
}

func TestLoadSampleConfig(t *testing.T) {
	t.Setenv("PHARMACY_SHEET_URL", "file:///tmp/catalog.csv")
	cfg, err := LoadConfig(filepath.Join("..", "..", "..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Pharmacy.SheetURL != "file:///tmp/catalog.csv" {
		t.Errorf("SheetURL = %q", cfg.Pharmacy.SheetURL)
	}
	if cfg.Storage.VectorStore != "memory" || cfg.Storage.ChatMemory != "memory" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if Duration(cfg.Databases.Redis.TurnTTL, 0) != 720*time.Hour {
		t.Errorf("TurnTTL = %q", cfg.Databases.Redis.TurnTTL)
	}
	if len(cfg.Pharmacy.Markers.Answer) != 2 {
		t.Errorf("answer markers = %v", cfg.Pharmacy.Markers.Answer)
	}
	if cfg.Middleware.RateLimit.Enabled {
		t.Error("rate limiting must be off in the sample config")
	}
}

func TestRateLimitOffByDefault(t *testing.T) {
	if Default().Middleware.RateLimit.Enabled {
		t.Error("rate limiting must be off by default")
	}
}

package llm

import (
	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/models"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func historyRequest() *models.GenerateContentRequest {
	return &models.GenerateContentRequest{
		Content: []models.Content{
			models.NewTextContent(models.SpeakerUser, "Dolo hai?"),
			models.NewTextContent(models.SpeakerAssistant, "Haan, rack A1."),
			models.NewTextContent(models.SpeakerUser, "Price?"),
		},
	}
}

func TestOllamaSendsHistoryAsChatMessages(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.1","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"Dolo Price?"},"done":true}`))
	}))
	defer srv.Close()

	client, err := NewOllama("llama3.1", srv.URL)
	if err != nil {
		t.Fatalf("NewOllama() error = %v", err)
	}
	resp, err := client.GenerateContent(context.Background(), historyRequest())
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if resp.Text() != "Dolo Price?" {
		t.Errorf("unexpected text %q", resp.Text())
	}
	if len(got.Messages) != 3 || got.Messages[1].Role != "assistant" || got.Messages[2].Content != "Price?" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIMapsRoles(t *testing.T) {
	var got struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Rs 30"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client, _ := NewOpenAI("gpt-4o-mini", "test-key", srv.URL+"/v1")
	resp, err := client.GenerateContent(context.Background(), historyRequest())
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if resp.Text() != "Rs 30" || resp.ResponseID != "cmpl-1" {
		t.Errorf("unexpected response %+v", resp)
	}
	roles := []string{"user", "assistant", "user"}
	for i, m := range got.Messages {
		if m.Role != roles[i] {
			t.Errorf("message %d role = %s, want %s", i, m.Role, roles[i])
		}
	}
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	if _, err := NewClient(context.Background(), config.LLMConfig{Provider: "bard"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

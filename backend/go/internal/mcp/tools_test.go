package mcp

import (
	"PharmaChat/backend/go/internal/pharmacy_service/service"
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

type fakeSearcher struct {
	query, chatID string
}

func (f *fakeSearcher) Search(ctx context.Context, query, conversationID string) (service.SearchResponse, error) {
	f.query, f.chatID = query, conversationID
	if query == "   " {
		return service.SearchResponse{}, service.ErrEmptyQuery
	}
	id := conversationID
	if id == "" {
		id = "user-abcd1234"
	}
	return service.SearchResponse{Answer: "Rack A-3", ConversationID: id}, nil
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) Refresh(ctx context.Context) string {
	f.calls++
	return "Success: Live Data Refreshed! (3 items)"
}

func callRequest(args map[string]any) mcplib.CallToolRequest {
	var req mcplib.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestHandleSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	tools := NewTools(searcher, &fakeRefresher{})

	res, err := tools.HandleSearch(context.Background(), callRequest(map[string]any{"query": "paracetamol kahan hai", "chat_id": "user-1"}))
	if err != nil {
		t.Fatalf("HandleSearch() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if body["answer"] != "Rack A-3" || body["chatId"] != "user-1" {
		t.Errorf("unexpected body %v", body)
	}
	if searcher.query != "paracetamol kahan hai" || searcher.chatID != "user-1" {
		t.Errorf("searcher got (%q, %q)", searcher.query, searcher.chatID)
	}
}

func TestHandleSearchWithoutChatID(t *testing.T) {
	searcher := &fakeSearcher{}
	tools := NewTools(searcher, &fakeRefresher{})

	res, err := tools.HandleSearch(context.Background(), callRequest(map[string]any{"query": "dolo"}))
	if err != nil {
		t.Fatalf("HandleSearch() error = %v", err)
	}
	if searcher.chatID != "" {
		t.Errorf("expected empty chat id to be passed through, got %q", searcher.chatID)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if body["chatId"] != "user-abcd1234" {
		t.Errorf("chatId = %q", body["chatId"])
	}
}

func TestHandleSearchErrors(t *testing.T) {
	tools := NewTools(&fakeSearcher{}, &fakeRefresher{})

	res, err := tools.HandleSearch(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("HandleSearch() error = %v", err)
	}
	if !res.IsError {
		t.Error("missing query should be a tool error")
	}

	res, err = tools.HandleSearch(context.Background(), callRequest(map[string]any{"query": "   "}))
	if err != nil {
		t.Fatalf("HandleSearch() error = %v", err)
	}
	if !res.IsError {
		t.Error("blank query should be a tool error")
	}
}

func TestHandleRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	tools := NewTools(&fakeSearcher{}, refresher)

	res, err := tools.HandleRefresh(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("HandleRefresh() error = %v", err)
	}
	if got := resultText(t, res); got != "Success: Live Data Refreshed! (3 items)" {
		t.Errorf("status = %q", got)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh calls = %d", refresher.calls)
	}
}

func TestToolSchemas(t *testing.T) {
	search := SearchTool()
	if search.Name != SearchToolName {
		t.Errorf("name = %q", search.Name)
	}
	if len(search.InputSchema.Required) != 1 || search.InputSchema.Required[0] != "query" {
		t.Errorf("required = %v", search.InputSchema.Required)
	}
	if _, ok := search.InputSchema.Properties["chat_id"]; !ok {
		t.Error("chat_id property missing")
	}
	if RefreshTool().Name != RefreshToolName {
		t.Error("refresh tool name mismatch")
	}
}

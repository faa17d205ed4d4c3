// Package mcp 把药房检索与目录刷新暴露为 MCP 工具。
package mcp

import (
	"PharmaChat/backend/go/internal/pharmacy_service/service"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// 工具名称。
const (
	SearchToolName  = "search_medicine"
	RefreshToolName = "refresh_catalog"
)

// Searcher 是 search_medicine 需要的能力。
type Searcher interface {
	Search(ctx context.Context, query, conversationID string) (service.SearchResponse, error)
}

// Refresher 是 refresh_catalog 需要的能力。
type Refresher interface {
	Refresh(ctx context.Context) string
}

// Tools 持有工具处理函数的依赖。
type Tools struct {
	search  Searcher
	refresh Refresher
}

// NewTools creates the tool handlers.
func NewTools(search Searcher, refresh Refresher) *Tools {
	return &Tools{search: search, refresh: refresh}
}

// SearchTool 返回 search_medicine 的元数据。
func SearchTool() mcplib.Tool {
	return mcplib.NewTool(SearchToolName,
		mcplib.WithDescription("Answer a question about the pharmacy inventory: availability, rack location, stock, price, expiry. Pass chat_id from a previous answer to continue the conversation."),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("The customer's question, in Hindi, Hinglish or English."),
		),
		mcplib.WithString("chat_id",
			mcplib.Description("Conversation id returned by an earlier call. Omit to start a new conversation."),
		),
	)
}

// RefreshTool 返回 refresh_catalog 的元数据。
func RefreshTool() mcplib.Tool {
	return mcplib.NewTool(RefreshToolName,
		mcplib.WithDescription("Reload the pharmacy catalog from its configured source and report the outcome."),
	)
}

// Register 把全部工具挂到 MCP server 上。
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(SearchTool(), t.HandleSearch)
	s.AddTool(RefreshTool(), t.HandleRefresh)
}

// HandleSearch 处理 search_medicine 调用，结果是 {"answer":..., "chatId":...} 形式的 JSON 文本。
func (t *Tools) HandleSearch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	chatID := request.GetString("chat_id", "")

	resp, err := t.search.Search(ctx, query, chatID)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			return mcplib.NewToolResultError(err.Error()), nil
		}
		return mcplib.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return mcplib.NewToolResultText(string(body)), nil
}

// HandleRefresh 处理 refresh_catalog 调用，返回刷新状态文本。
func (t *Tools) HandleRefresh(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return mcplib.NewToolResultText(t.refresh.Refresh(context.WithoutCancel(ctx))), nil
}

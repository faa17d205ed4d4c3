package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchResult is the body of GET /api/pharmacy/search.
type SearchResult struct {
	Answer string `json:"answer"`
	ChatID string `json:"chatId"`
}

// RefreshRun is one entry of GET /api/pharmacy/refresh/history.
type RefreshRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Items      int       `json:"items"`
	Skipped    int       `json:"skipped"`
	Pruned     int       `json:"pruned"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Client talks to the pharmacy service over HTTP.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the service at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Search asks a question; chatID may be empty to start a new conversation.
func (c *Client) Search(ctx context.Context, query, chatID string) (*SearchResult, error) {
	params := url.Values{"query": {query}}
	if chatID != "" {
		params.Set("chatId", chatID)
	}
	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/pharmacy/search?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh triggers a catalog reload and returns its status line.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/pharmacy/refresh", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// History lists recent refresh runs, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]RefreshRun, error) {
	var out struct {
		Runs []RefreshRun `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/pharmacy/refresh/history?limit="+strconv.Itoa(limit), &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

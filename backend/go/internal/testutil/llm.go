// Package testutil provides fakes shared by package tests.
package testutil

import (
	"PharmaChat/backend/go/internal/models"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrScriptExhausted is returned when a ScriptedLLM has no replies left.
var ErrScriptExhausted = errors.New("scripted llm: no replies left")

// Reply is one scripted model answer.
type Reply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// ScriptedLLM replays Replies in order and records every request.
// When Fn is set it is used instead of the script.
type ScriptedLLM struct {
	Replies []Reply
	Fn      func(req *models.GenerateContentRequest) (string, error)

	mu       sync.Mutex
	next     int
	requests []*models.GenerateContentRequest
}

// NewScriptedLLM returns a fake answering with texts in order.
func NewScriptedLLM(texts ...string) *ScriptedLLM {
	s := &ScriptedLLM{}
	for _, t := range texts {
		s.Replies = append(s.Replies, Reply{Text: t})
	}
	return s
}

func (s *ScriptedLLM) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, copyRequest(req))
	var (
		reply Reply
		err   error
	)
	switch {
	case s.Fn != nil:
	case s.next < len(s.Replies):
		reply = s.Replies[s.next]
		s.next++
	default:
		err = ErrScriptExhausted
	}
	fn := s.Fn
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		reply.Text, reply.Err = fn(req)
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &models.GenerateContentResponse{
		Content:    []models.Content{models.NewTextContent(models.SpeakerAssistant, reply.Text)},
		CreateTime: time.Now(),
	}, nil
}

// Calls returns how many requests were received.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Request returns the i-th recorded request.
func (s *ScriptedLLM) Request(i int) *models.GenerateContentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

// LastPrompt returns the text of the final message of the last request.
func (s *ScriptedLLM) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	c := s.requests[len(s.requests)-1].Content
	if len(c) == 0 || len(c[len(c)-1].Parts) == 0 {
		return ""
	}
	return c[len(c)-1].Parts[0].Text
}

func copyRequest(req *models.GenerateContentRequest) *models.GenerateContentRequest {
	out := &models.GenerateContentRequest{ConversationID: req.ConversationID}
	for _, c := range req.Content {
		cc := models.Content{Role: c.Role}
		for _, p := range c.Parts {
			if p != nil {
				cp := *p
				cc.Parts = append(cc.Parts, &cp)
			}
		}
		out.Content = append(out.Content, cc)
	}
	return out
}

// Package chat is a thin client over an llm.LLM with a chain of advisors.
// Advisors decorate every call, the way interceptors wrap a gRPC handler:
// history injection, timeouts, circuit breaking and logging.
package chat

import (
	"PharmaChat/backend/go/internal/llm"
	"PharmaChat/backend/go/internal/models"
	"context"
	"errors"
	"fmt"
)

// ErrModelFailure wraps every error returned by Call.
var ErrModelFailure = errors.New("language model call failed")

// Request is one prompt to the model. History is filled by advisors.
type Request struct {
	ConversationID string
	HistoryDepth   int
	System         string
	Prompt         string
	History        []models.Content
}

// Response is the model output.
type Response struct {
	Text string
	Raw  *models.GenerateContentResponse
}

// Handler performs a call.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Advisor wraps a call; it must call next to continue the chain.
type Advisor func(ctx context.Context, req *Request, next Handler) (*Response, error)

// Client sends requests through its advisors to the model.
type Client struct {
	model    llm.LLM
	advisors []Advisor
}

// NewClient creates a Client. Advisors run in the given order, outermost first.
func NewClient(model llm.LLM, advisors ...Advisor) *Client {
	return &Client{model: model, advisors: advisors}
}

// Call runs the advisor chain and the model. Errors wrap ErrModelFailure and the cause.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	h := c.invoke
	for i := len(c.advisors) - 1; i >= 0; i-- {
		advisor, next := c.advisors[i], h
		h = func(ctx context.Context, r *Request) (*Response, error) {
			return advisor(ctx, r, next)
		}
	}

	resp, err := h(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}
	return resp, nil
}

func (c *Client) invoke(ctx context.Context, req *Request) (*Response, error) {
	contents := make([]models.Content, 0, len(req.History)+2)
	if req.System != "" {
		contents = append(contents, models.NewTextContent(models.SpeakerSystem, req.System))
	}
	contents = append(contents, req.History...)
	contents = append(contents, models.NewTextContent(models.SpeakerUser, req.Prompt))

	raw, err := c.model.GenerateContent(ctx, &models.GenerateContentRequest{
		Content:        contents,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("model returned no response")
	}
	return &Response{Text: raw.Text(), Raw: raw}, nil
}

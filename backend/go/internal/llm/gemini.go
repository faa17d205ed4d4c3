package llm

import (
	"PharmaChat/backend/go/internal/models"
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次调用都会新建聊天会话并注入请求携带的历史，因此同一实例可以被多个会话并发使用。
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, modelName: model}, nil
}

// GenerateContent 向 Gemini API 发送请求并返回响应。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	if req == nil || len(req.Content) == 0 {
		return nil, fmt.Errorf("empty request")
	}

	model := g.client.GenerativeModel(g.modelName)
	var history []*genai.Content
	for _, c := range req.Content[:len(req.Content)-1] {
		if c.Role == models.SpeakerSystem {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(joinText(c))}}
			continue
		}
		history = append(history, toGenaiContent(c))
	}

	session := model.StartChat()
	session.History = history

	last := req.Content[len(req.Content)-1]
	resp, err := session.SendMessage(ctx, toGenaiContent(last).Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini send message: %w", err)
	}
	return fromGenaiResponse(resp), nil
}

// Close 释放底层 gRPC 连接。
func (g *Gemini) Close() error {
	return g.client.Close()
}

// toGenaiContent 将内部 Content 转换为 GenAI Content，assistant 角色映射为 "model"。
func toGenaiContent(c models.Content) *genai.Content {
	role := "user"
	if c.Role == models.SpeakerAssistant || c.Role == models.SpeakerModel {
		role = "model"
	}
	var parts []genai.Part
	for _, p := range c.Parts {
		if p != nil && p.Text != "" {
			parts = append(parts, genai.Text(p.Text))
		}
	}
	return &genai.Content{Role: role, Parts: parts}
}

// fromGenaiResponse 将 GenAI GenerateContentResponse 转换为内部 GenerateContentResponse 结构体。
func fromGenaiResponse(resp *genai.GenerateContentResponse) *models.GenerateContentResponse {
	if resp == nil {
		return nil
	}
	var content []models.Content
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var parts []*models.Part
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				parts = append(parts, &models.Part{Text: string(t)})
			}
		}
		content = append(content, models.Content{Parts: parts, Role: models.SpeakerModel})
	}
	return &models.GenerateContentResponse{Content: content}
}

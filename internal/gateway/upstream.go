package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"worklog/api/internal/config"
)

const (
	temperature   = 0.2
	maxSnippetLen = 300
)

// Completer sends one chat-completion request and returns the model's text content.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []ChatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatClient calls an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewChatClient(cfg config.LLMConfig) *ChatClient {
	return &ChatClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout.Duration()},
	}
}

func (c *ChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &UpstreamError{Message: "无法构造模型请求。", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Message: "调用模型服务失败。", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{Message: "读取模型响应失败。", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{
			Message: fmt.Sprintf("模型服务返回错误状态 %d。", resp.StatusCode),
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, snippet(respBody)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &UpstreamError{Message: msgNoContent, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{Message: msgNoContent, Err: fmt.Errorf("no choices")}
	}
	var content string
	if err := json.Unmarshal(parsed.Choices[0].Message.Content, &content); err != nil {
		return "", &UpstreamError{Message: msgNoContent, Err: fmt.Errorf("content is not a string")}
	}
	return content, nil
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxSnippetLen {
		return text[:maxSnippetLen] + "..."
	}
	return text
}

// Package openai adapts OpenAI-compatible chat and transcription endpoints
// to the interfaces the application uses.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config for an OpenAI-compatible endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatModel adapts chat completions to the ADK model.LLM interface.
type ChatModel struct {
	config Config
	client *http.Client
}

var _ model.LLM = (*ChatModel)(nil)

// NewModel builds a ChatModel, filling in the public endpoint and gpt-4o.
func NewModel(cfg Config) *ChatModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &ChatModel{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *ChatModel) Name() string {
	return m.config.Model
}

// GenerateContent sends one non-streaming completion request per call.
func (m *ChatModel) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (m *ChatModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	body := chatRequest{Model: m.config.Model}

	if req.Config != nil {
		if si := contentText(req.Config.SystemInstruction); si != "" {
			body.Messages = append(body.Messages, chatMessage{Role: "system", Content: si})
		}
		if req.Config.Temperature != nil {
			t := float64(*req.Config.Temperature)
			body.Temperature = &t
		}
		if req.Config.ResponseMIMEType == "application/json" {
			body.ResponseFormat = map[string]string{"type": "json_object"}
		}
	}
	for _, content := range req.Contents {
		if text := contentText(content); text != "" {
			body.Messages = append(body.Messages, chatMessage{Role: roleForContent(content.Role), Content: text})
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var result chatResponse
	if err := m.post(ctx, "/chat/completions", "application/json", bytes.NewReader(payload), &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &model.LLMResponse{
		Content: genai.NewContentFromText(result.Choices[0].Message.Content, genai.RoleModel),
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     result.Usage.PromptTokens,
			CandidatesTokenCount: result.Usage.CompletionTokens,
			TotalTokenCount:      result.Usage.TotalTokens,
		},
	}, nil
}

func (m *ChatModel) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	return post(ctx, m.client, m.config, path, contentType, body, out)
}

func post(ctx context.Context, client *http.Client, cfg Config, path, contentType string, body io.Reader, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var wrapped struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(raw, &wrapped) == nil && wrapped.Error != nil {
			return fmt.Errorf("llm api %s (status %d): %s", path, resp.StatusCode, wrapped.Error.Message)
		}
		return fmt.Errorf("llm api %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode llm response: %w", err)
	}
	return nil
}

func roleForContent(role string) string {
	if role == string(genai.RoleModel) {
		return "assistant"
	}
	return "user"
}

func contentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

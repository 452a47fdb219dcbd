package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
)

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type groqResponse struct {
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GroqResponder calls Groq's OpenAI-compatible chat completions endpoint.
type GroqResponder struct {
	httpClient *resty.Client
	apiKey     string
	model      string
	logger     *zap.Logger
}

func NewGroqResponder(baseURL, apiKey, model string, logger *zap.Logger) *GroqResponder {
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	if model == "" {
		model = DefaultGroqModel
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &GroqResponder{httpClient: client, apiKey: apiKey, model: model, logger: logger}
}

func (r *GroqResponder) Complete(ctx context.Context, history []Turn) (string, error) {
	messages := make([]groqMessage, 0, len(history)+1)
	messages = append(messages, groqMessage{Role: "system", Content: careSystemInstruction})
	for _, t := range history {
		messages = append(messages, groqMessage{Role: string(t.Role), Content: t.Content})
	}
	return r.chat(ctx, groqRequest{Model: r.model, Messages: messages})
}

func (r *GroqResponder) TitleFor(ctx context.Context, userMessage, aiMessage string, priorTitles []string) (string, error) {
	temp := 0.3
	return r.chat(ctx, groqRequest{
		Model: r.model,
		Messages: []groqMessage{
			{Role: "system", Content: titleSystemInstruction},
			{Role: "user", Content: titlePrompt(userMessage, aiMessage, priorTitles)},
		},
		Temperature: &temp,
		MaxTokens:   20,
	})
}

func (r *GroqResponder) chat(ctx context.Context, req groqRequest) (string, error) {
	if r.apiKey == "" {
		return "", ErrMissingCredential
	}

	var out groqResponse
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to call Groq API: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		r.logger.Warn("Groq API returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", msg),
		)
		return "", fmt.Errorf("groq API error: %s (status: %d)", msg, resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

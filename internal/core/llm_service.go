package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

const (
	DefaultGeminiModel = "gemini-1.5-flash-latest"

	careSystemInstruction = "You are a compassionate elder-care assistant focused on health and wellness. " +
		"Keep answers concise, ask clarifying questions when needed, and avoid topics unrelated to health and care. " +
		"Always remind users to consult professionals for medical decisions."

	titleSystemInstruction = "You are a title maker agent. You will receive part of a conversation with a question " +
		"from a user and a response from an AI. Produce a short 3-word title. You will also receive a list of previous " +
		"conversation titles; produce a title that is different from all of them. Return only the title."
)

// ErrMissingCredential is returned when a responder has no API key configured.
var ErrMissingCredential = errors.New("AI provider API key is not configured")

// Turn is one entry of the ordered history sent to a Responder.
type Turn struct {
	Role    store.MessageRole `json:"role"`
	Content string            `json:"content"`
}

// Responder produces assistant replies and chat titles. Implementations are
// stateless: every call receives the full context it needs.
type Responder interface {
	Complete(ctx context.Context, history []Turn) (string, error)
	TitleFor(ctx context.Context, userMessage, aiMessage string, priorTitles []string) (string, error)
}

func titlePrompt(userMessage, aiMessage string, priorTitles []string) string {
	return fmt.Sprintf("User Message: %s\nAI Message: %s\nPrevious Titles: %s",
		userMessage, aiMessage, strings.Join(priorTitles, ", "))
}

// GeminiResponder talks to Google's Gemini models.
type GeminiResponder struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiResponder never fails on a missing key; calls fail instead.
func NewGeminiResponder(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiResponder, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	r := &GeminiResponder{model: model, logger: logger}
	if apiKey == "" {
		return r, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	r.client = client
	return r, nil
}

func (r *GeminiResponder) Close() {
	if r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		r.logger.Warn("error closing GenAI client", zap.Error(err))
	}
}

func (r *GeminiResponder) Complete(ctx context.Context, history []Turn) (string, error) {
	if r.client == nil {
		return "", ErrMissingCredential
	}

	instruction := careSystemInstruction
	var contents []*genai.Content
	for _, t := range history {
		switch t.Role {
		case store.MessageSystem:
			instruction += "\n" + t.Content
		case store.MessageAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(t.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(t.Content)}})
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("prompt history is empty for chat completion")
	}
	last := contents[len(contents)-1]
	if last.Role != "user" {
		return "", fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}

	model := r.client.GenerativeModel(r.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}

	session := model.StartChat()
	session.History = contents[:len(contents)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	return r.responseText(resp), nil
}

func (r *GeminiResponder) TitleFor(ctx context.Context, userMessage, aiMessage string, priorTitles []string) (string, error) {
	if r.client == nil {
		return "", ErrMissingCredential
	}
	model := r.client.GenerativeModel(r.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(titleSystemInstruction)}}

	temp := float32(0.3)
	maxTokens := int32(20)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(titlePrompt(userMessage, aiMessage, priorTitles)))
	if err != nil {
		return "", fmt.Errorf("gemini title generation request failed: %w", err)
	}
	return r.responseText(resp), nil
}

// responseText joins the text parts of the first candidate. Non-text parts are skipped.
func (r *GeminiResponder) responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		} else {
			r.logger.Debug("gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	return b.String()
}

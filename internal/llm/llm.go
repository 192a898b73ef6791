// Package llm runs the AI review assistant against an OpenAI-compatible API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/techcert/internal/llm/prompts"
	"github.com/pavelanni/techcert/internal/model"
)

var (
	// ErrConfig means the API key is missing, a placeholder, or rejected.
	ErrConfig = errors.New("AI assistant is not configured")
	// ErrNoSession means the chat session is not active.
	ErrNoSession = errors.New("the AI chat session is not active, please start a review session first")
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api    *openai.Client
	model  string
	apiKey string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:    openai.NewClientWithConfig(config),
		model:  modelName,
		apiKey: apiKey,
	}
}

// CheckKey rejects missing, placeholder and implausibly short API keys.
func CheckKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: API key missing", ErrConfig)
	case strings.Contains(key, "REPLACE"):
		return fmt.Errorf("%w: API key is a placeholder", ErrConfig)
	case len(key) < 10:
		return fmt.Errorf("%w: API key too short", ErrConfig)
	}
	return nil
}

// ChatSession is a review conversation grounded on one module.
type ChatSession struct {
	client   *Client
	moduleID string

	mu       sync.Mutex
	messages []openai.ChatCompletionMessage
	closed   bool
}

// StartSession opens a review chat for m.
func (c *Client) StartSession(ctx context.Context, m model.Module) (*ChatSession, error) {
	if err := CheckKey(c.apiKey); err != nil {
		slog.Error("AI assistant key check failed", "error", err)
		return nil, err
	}
	system, err := prompts.BuildTutorPrompt(m)
	if err != nil {
		return nil, fmt.Errorf("build tutor prompt: %w", err)
	}
	slog.Info("review chat started", "module", m.ID, "model", c.model)
	return &ChatSession{
		client:   c,
		moduleID: m.ID,
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
		},
	}, nil
}

// Send posts a trainee message and returns the assistant's reply. The
// message is dropped from the transcript when the call fails.
func (s *ChatSession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrNoSession
	}

	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompts.WrapMessage(text),
	})
	reply, err := s.client.complete(ctx, s.messages, 0.7)
	if err != nil {
		s.messages = s.messages[:len(s.messages)-1]
		if errors.Is(err, ErrConfig) {
			s.closed = true
			return "", errors.New("the API key is invalid, please check your configuration")
		}
		slog.Error("review chat call failed", "module", s.moduleID, "error", err)
		return "", errors.New("failed to get a response from the AI model, please try again")
	}
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
	return reply, nil
}

// Turns returns how many trainee messages were answered.
func (s *ChatSession) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (len(s.messages) - 1) / 2
}

// StudyGuide generates a Markdown study guide for m.
func (c *Client) StudyGuide(ctx context.Context, m model.Module) (string, error) {
	if err := CheckKey(c.apiKey); err != nil {
		return "", err
	}
	prompt, err := prompts.BuildGuidePrompt(m)
	if err != nil {
		return "", fmt.Errorf("build guide prompt: %w", err)
	}
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}, 0.3)
}

// StudyGuideOrFallback returns the AI guide, or the plain question and
// answer review when generation fails. fallback reports which one.
func (c *Client) StudyGuideOrFallback(ctx context.Context, m model.Module) (guide string, fallback bool) {
	guide, err := c.StudyGuide(ctx, m)
	if err != nil {
		slog.Warn("study guide generation failed, using fallback", "module", m.ID, "error", err)
		return prompts.FallbackGuide(m), true
	}
	return guide, false
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %s", ErrConfig, apiErr.Message)
		}
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}

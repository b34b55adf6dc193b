// Package genai wraps the OpenAI chat completion API behind the small
// surface the chat relay needs: one system prompt, a short conversation
// history, one user message, one reply.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zenoccaz/chatlead/internal/models"
)

// Defaults applied when the corresponding option is not set.
const (
	DefaultModel       = openai.GPT4oMini
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
)

// chatService is the minimal completion surface, satisfied by
// *openai.Client and by test fakes.
type chatService interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Opts holds configuration for the completion client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Option configures the completion client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *Opts) { o.Temperature = t }
}

// Client generates chat completions for the relay endpoint.
type Client struct {
	chat        chatService
	model       string
	maxTokens   int
	temperature float32
}

// NewClient creates a completion client. The API key is required.
func NewClient(options ...Option) (*Client, error) {
	opts := Opts{
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	client := &Client{
		chat:        openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
	slog.Debug("genai.NewClient created client", "model", opts.Model, "maxTokens", opts.MaxTokens)
	return client, nil
}

// Complete sends the system prompt, conversation history, and the new user
// message to the completion API and returns the assistant's reply. An empty
// message is skipped, for callers whose history already ends with the
// latest user turn.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []models.ConversationEntry, message string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, entry := range history {
		role := openai.ChatMessageRoleUser
		if entry.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: entry.Content})
	}
	if message != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: message,
		})
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		slog.Error("genai.Complete completion failed", "error", err)
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	reply := resp.Choices[0].Message.Content
	slog.Debug("genai.Complete generated reply", "historyLen", len(history), "replyLen", len(reply))
	return reply, nil
}

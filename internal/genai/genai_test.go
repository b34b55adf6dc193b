package genai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zenoccaz/chatlead/internal/models"
)

// fakeChat implements chatService, capturing the request and returning a
// canned response.
type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func newFakeClient(chat *fakeChat) *Client {
	return &Client{
		chat:        chat,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key is missing")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("unexpected error with key set: %v", err)
	}
}

func TestCompleteBuildsMessageSequence(t *testing.T) {
	fake := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Bonjour !"}}},
	}}
	c := newFakeClient(fake)

	history := []models.ConversationEntry{
		{Role: "user", Content: "salut"},
		{Role: "assistant", Content: "salut, je t'écoute"},
	}
	reply, err := c.Complete(context.Background(), "tu es un assistant", history, "je veux vendre ma voiture")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "Bonjour !" {
		t.Errorf("reply = %q, want %q", reply, "Bonjour !")
	}

	msgs := fake.req.Messages
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[0].Content != "tu es un assistant" {
		t.Errorf("system message wrong: %+v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleUser || msgs[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("history roles wrong: %+v %+v", msgs[1], msgs[2])
	}
	if msgs[3].Role != openai.ChatMessageRoleUser || msgs[3].Content != "je veux vendre ma voiture" {
		t.Errorf("final user message wrong: %+v", msgs[3])
	}
	if fake.req.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", fake.req.MaxTokens, DefaultMaxTokens)
	}
	if fake.req.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", fake.req.Temperature, DefaultTemperature)
	}
}

func TestCompleteOmitsEmptySystemPrompt(t *testing.T) {
	fake := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
	}}
	c := newFakeClient(fake)

	if _, err := c.Complete(context.Background(), "", nil, "hello"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(fake.req.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(fake.req.Messages))
	}
	if fake.req.Messages[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("role = %q, want user", fake.req.Messages[0].Role)
	}
}

func TestCompletePropagatesError(t *testing.T) {
	fake := &fakeChat{err: errors.New("rate limited")}
	c := newFakeClient(fake)

	if _, err := c.Complete(context.Background(), "sys", nil, "hello"); err == nil {
		t.Error("expected error from provider")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	fake := &fakeChat{}
	c := newFakeClient(fake)

	if _, err := c.Complete(context.Background(), "sys", nil, "hello"); err == nil {
		t.Error("expected error when no choices returned")
	}
}

// Package models defines the core data structures for the chatlead service.
//
// It includes types for transcript messages, conversation state, and persisted
// leads, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Sender identifies which side of the conversation produced a message.
type Sender string

const (
	// SenderUser marks a message typed or clicked by the site visitor.
	SenderUser Sender = "user"
	// SenderBot marks a message emitted by the dialogue engine.
	SenderBot Sender = "bot"
)

// MessageKind defines how a transcript message is rendered.
type MessageKind string

const (
	// MessageKindPlain is a regular text bubble.
	MessageKindPlain MessageKind = "plain"
	// MessageKindButtons is a prompt carrying selectable options.
	MessageKindButtons MessageKind = "buttons"
)

// Mode identifies the active top-level conversation flow.
type Mode string

const (
	// ModeNone means no flow has been selected yet (main menu).
	ModeNone Mode = ""
	// ModeSell is the vehicle-selling lead flow.
	ModeSell Mode = "sell"
	// ModeBuy is the vehicle-buying lead flow.
	ModeBuy Mode = "buy"
	// ModeFaq is the keyword-matched FAQ flow.
	ModeFaq Mode = "faq"
	// ModeAIChat is the open-ended AI conversation mode.
	ModeAIChat Mode = "ai_chat"
)

// IsValidMode checks if the given mode is supported.
func IsValidMode(m Mode) bool {
	switch m {
	case ModeNone, ModeSell, ModeBuy, ModeFaq, ModeAIChat:
		return true
	default:
		return false
	}
}

// ButtonOption represents a selectable option on a buttons message.
type ButtonOption struct {
	Label string `json:"label"` // human-readable echo text
	Value string `json:"value"` // opaque value passed to the handler
}

// Message is a single entry in the conversation transcript. Messages are
// immutable once appended; the transcript is append-only and never reordered.
type Message struct {
	Text      string         `json:"text"`
	Sender    Sender         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      MessageKind    `json:"kind"`
	Options   []ButtonOption `json:"options,omitempty"` // only for MessageKindButtons
}

// ConversationEntry is one turn of the AI conversation window, in the role
// vocabulary of the completion endpoint.
type ConversationEntry struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Lead is a persisted record of a visitor's conversation intent and collected
// answers. SessionID is the natural key for idempotent updates even though ID
// is the store's primary key.
type Lead struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Choice    string            `json:"choice"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Error variables for better error handling and testability
var (
	ErrEmptySessionID = errors.New("session id cannot be empty")
	ErrEmptyOptions   = errors.New("button options cannot be empty")
)

// Validate performs basic validation on a Lead structure.
func (l *Lead) Validate() error {
	if l.SessionID == "" {
		return ErrEmptySessionID
	}
	return nil
}

// ChatRequest is the body of POST /api/chat consumed by the relay endpoint.
type ChatRequest struct {
	Message             string              `json:"message"`
	SystemPrompt        string              `json:"systemPrompt,omitempty"`
	ConversationHistory []ConversationEntry `json:"conversationHistory,omitempty"`
}

// ChatResponse is the success body returned by POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
}

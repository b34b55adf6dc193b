package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zenoccaz/chatlead/internal/models"
	"github.com/zenoccaz/chatlead/internal/relay"
)

// subjectMaxLen caps the captured conversation topic.
const subjectMaxLen = 100

// contactKeywords trigger the delayed human-contact offer when they appear in
// an AI reply.
var contactKeywords = []string{"rappelle", "contact", "ludo", "coordonnées"}

// startAIChatLocked enters open-ended AI mode. The mode has no terminal
// state; each turn re-enters the relay path until the user navigates away.
// Caller must hold e.mu.
func (e *Engine) startAIChatLocked() {
	e.beginFlowLocked(models.ModeAIChat)
	e.appendBotLocked(msgAIWelcome)
}

// handleAIChatLocked relays a user turn to the completion endpoint. The call
// runs off the engine goroutine; the engine stays responsive while it is
// outstanding and resumes when it settles. Caller must hold e.mu.
func (e *Engine) handleAIChatLocked(userMessage string) {
	e.loading = true
	e.window = append(e.window, models.ConversationEntry{Role: "user", Content: userMessage})
	if e.subject == "" {
		e.subject = truncate(userMessage, subjectMaxLen)
	}
	window := append([]models.ConversationEntry(nil), e.window...)

	go e.converse(userMessage, window)
}

// converse performs the relay call and applies its outcome. Runs without the
// engine lock; reacquires it once the call settles.
func (e *Engine) converse(userMessage string, window []models.ConversationEntry) {
	reply, err := e.relay.Converse(context.Background(), userMessage, window)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false

	switch {
	case err == nil:
		e.window = append(e.window, models.ConversationEntry{Role: "assistant", Content: reply})
		e.appendBotLocked(reply)
		e.recorder.RecordAnswer(map[string]string{
			"ai_conversation_topic": e.subject,
			"last_message":          userMessage,
			"last_response":         reply,
			"conversation_length":   strconv.Itoa(len(e.window)),
			"full_conversation":     formatConversation(e.window),
		})
		if containsContactKeyword(reply) {
			e.scheduleContactButtonsLocked()
		}

	case errors.Is(err, relay.ErrEmptyResponse):
		slog.Warn("engine: empty AI completion", "sessionID", e.recorder.SessionID())
		e.appendBotLocked(msgTechnicalIssue)

	default:
		slog.Error("engine: AI relay call failed", "error", err, "sessionID", e.recorder.SessionID())
		e.appendBotLocked(msgConnectionLost)
		e.scheduleContactButtonsLocked()
	}
}

// scheduleContactButtonsLocked arms the delayed human-contact prompt.
// Caller must hold e.mu.
func (e *Engine) scheduleContactButtonsLocked() {
	if _, err := e.timer.ScheduleAfter(e.contactDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.offerContactButtonsLocked()
	}); err != nil {
		slog.Error("engine: failed to schedule contact buttons", "error", err, "sessionID", e.recorder.SessionID())
	}
}

// offerContactButtonsLocked asks whether the visitor wants to be recontacted.
// Caller must hold e.mu.
func (e *Engine) offerContactButtonsLocked() {
	e.askButtonsLocked(msgRecontactPrompt, []models.ButtonOption{
		{Label: "Oui, rappelle-moi", Value: "yes_contact"},
		{Label: "Non, continuer à discuter", Value: "no_contact"},
	}, func(value, _ string) {
		if value == "yes_contact" {
			e.offerContactLocked()
			return
		}
		e.appendBotLocked(msgKeepChatting)
	})
}

// containsContactKeyword reports whether an AI reply invites human contact.
func containsContactKeyword(reply string) bool {
	lower := strings.ToLower(reply)
	for _, kw := range contactKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// formatConversation renders the full window for lead-record logging.
func formatConversation(window []models.ConversationEntry) string {
	lines := make([]string, 0, len(window))
	for _, entry := range window {
		speaker := "IA"
		if entry.Role == "user" {
			speaker = "Client"
		}
		lines = append(lines, speaker+": "+entry.Content)
	}
	return strings.Join(lines, "\n")
}

// truncate clips s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

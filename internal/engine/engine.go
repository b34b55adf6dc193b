// Package engine implements the dialogue engine that drives the scripted
// lead-capture conversations.
//
// The engine owns the transcript, the conversation state, and the single
// pending-input handler slot. User input (typed text or a button click) is
// routed to the pending handler if one is registered; flow scripts register
// the next prompt's handler as they advance. Each handler is consumed exactly
// once, so stale or duplicate submissions are no-ops.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zenoccaz/chatlead/internal/leads"
	"github.com/zenoccaz/chatlead/internal/models"
)

// DefaultContactDelay is how long the engine waits before showing the
// human-contact buttons after an AI turn suggests them.
const DefaultContactDelay = 1 * time.Second

// RelayClient is the boundary to the external completion service used for
// open-ended chat turns.
type RelayClient interface {
	Converse(ctx context.Context, message string, window []models.ConversationEntry) (string, error)
}

// TextHandler consumes the next free-text submission.
type TextHandler func(text string)

// ButtonHandler consumes the next button click.
type ButtonHandler func(value, label string)

// Listener observes messages as they are appended to the transcript. It is
// invoked synchronously and must not call back into the engine.
type Listener func(models.Message)

// Opts holds configuration options for an Engine.
type Opts struct {
	ContactDelay time.Duration
	Timer        Timer
	Listener     Listener
}

// Option configures Engine construction.
type Option func(*Opts)

// WithContactDelay overrides the delay before the contact-buttons prompt.
func WithContactDelay(d time.Duration) Option {
	return func(o *Opts) { o.ContactDelay = d }
}

// WithTimer overrides the timer used for delayed prompts.
func WithTimer(t Timer) Option {
	return func(o *Opts) { o.Timer = t }
}

// WithListener registers a transcript listener.
func WithListener(l Listener) Option {
	return func(o *Opts) { o.Listener = l }
}

// Engine is the dialogue controller for one widget session. All state is
// owned by the instance; a mutex serializes every externally triggered
// transition so no two handlers run concurrently over the same state.
type Engine struct {
	recorder     *leads.Recorder
	relay        RelayClient
	timer        Timer
	contactDelay time.Duration
	listener     Listener

	mu            sync.Mutex
	transcript    []models.Message
	textHandler   TextHandler
	buttonHandler ButtonHandler
	mode          models.Mode
	window        []models.ConversationEntry
	subject       string
	loading       bool
}

// NewEngine creates a dialogue engine bound to a lead recorder and a relay
// client.
func NewEngine(recorder *leads.Recorder, relay RelayClient, opts ...Option) *Engine {
	cfg := Opts{ContactDelay: DefaultContactDelay}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timer == nil {
		cfg.Timer = NewSimpleTimer()
	}
	slog.Debug("engine.NewEngine: created", "sessionID", recorder.SessionID(), "contactDelay", cfg.ContactDelay)
	return &Engine{
		recorder:     recorder,
		relay:        relay,
		timer:        cfg.Timer,
		contactDelay: cfg.ContactDelay,
		listener:     cfg.Listener,
	}
}

// Start clears the transcript, emits the greeting, and shows the top-level
// menu. Re-running re-greets.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transcript = nil
	e.textHandler = nil
	e.buttonHandler = nil
	e.appendBotLocked(msgGreeting)
	e.showMenuLocked()
}

// Stop releases the engine's scheduled resources.
func (e *Engine) Stop() {
	e.timer.Stop()
}

// SubmitText routes a typed message. Blank submissions are ignored; a pending
// TextHandler consumes the input; otherwise AI mode relays the message and
// any other mode falls back to the top-level menu.
func (e *Engine) SubmitText(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// While an AI call is outstanding the input is disabled upstream; drop
	// anything that slips through so the in-flight turn cannot double-apply.
	if e.mode == models.ModeAIChat && e.loading && e.textHandler == nil {
		slog.Debug("engine.SubmitText: dropped while AI call in flight", "sessionID", e.recorder.SessionID())
		return
	}

	e.appendUserLocked(trimmed)

	if e.textHandler != nil {
		h := e.textHandler
		e.textHandler = nil
		h(trimmed)
		return
	}

	if e.mode == models.ModeAIChat {
		e.handleAIChatLocked(trimmed)
		return
	}

	e.appendBotLocked(msgChooseOption)
	e.showMenuLocked()
}

// SubmitButton routes a button click. A click with no pending ButtonHandler
// is a stale duplicate and is silently ignored.
func (e *Engine) SubmitButton(value, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buttonHandler == nil {
		slog.Debug("engine.SubmitButton: no pending handler, ignoring", "sessionID", e.recorder.SessionID(), "value", value)
		return
	}
	if label == "" {
		label = value
	}
	e.appendUserLocked(label)

	h := e.buttonHandler
	e.buttonHandler = nil
	h(value, label)
}

// PresentText appends a bot question and registers the pending TextHandler.
func (e *Engine) PresentText(question string, onAnswer TextHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.askTextLocked(question, onAnswer)
}

// PresentButtons appends a bot buttons prompt and registers the pending
// ButtonHandler. Options must be non-empty.
func (e *Engine) PresentButtons(prompt string, options []models.ButtonOption, onChoice ButtonHandler) error {
	if len(options) == 0 {
		return models.ErrEmptyOptions
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.askButtonsLocked(prompt, options, onChoice)
	return nil
}

// Transcript returns a copy of the conversation transcript.
func (e *Engine) Transcript() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Message(nil), e.transcript...)
}

// Mode returns the active top-level flow mode.
func (e *Engine) Mode() models.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Loading reports whether an AI relay call is outstanding.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// HasPendingHandler reports whether a text or button handler is registered.
func (e *Engine) HasPendingHandler() (text, button bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.textHandler != nil, e.buttonHandler != nil
}

// showMenuLocked presents the top-level menu. Caller must hold e.mu.
func (e *Engine) showMenuLocked() {
	e.askButtonsLocked(msgMenuPrompt, []models.ButtonOption{
		{Label: "Discuter avec l'IA", Value: string(models.ModeAIChat)},
		{Label: "Vendre un véhicule (rapide)", Value: string(models.ModeSell)},
		{Label: "Acheter un véhicule (rapide)", Value: string(models.ModeBuy)},
		{Label: "Questions fréquentes", Value: string(models.ModeFaq)},
	}, func(value, label string) {
		e.recorder.RecordChoice(value)
		switch models.Mode(value) {
		case models.ModeAIChat:
			e.startAIChatLocked()
		case models.ModeSell:
			e.startSellFlowLocked()
		case models.ModeBuy:
			e.startBuyFlowLocked()
		case models.ModeFaq:
			e.startFaqFlowLocked()
		default:
			slog.Warn("engine: unknown menu choice", "value", value)
			e.showMenuLocked()
		}
	})
}

// beginFlowLocked switches the active mode and resets per-flow state.
// Caller must hold e.mu.
func (e *Engine) beginFlowLocked(mode models.Mode) {
	e.mode = mode
	e.window = nil
	e.subject = ""
	e.recorder.BeginFlow(mode)
}

// askTextLocked appends a bot question and sets the pending TextHandler.
// Registering a handler clears the other slot so at most one kind of input is
// ever awaited; a click on an outdated prompt is then a no-op.
// Caller must hold e.mu.
func (e *Engine) askTextLocked(question string, h TextHandler) {
	e.textHandler = h
	e.buttonHandler = nil
	e.appendBotLocked(question)
}

// askButtonsLocked appends a bot buttons prompt and sets the pending
// ButtonHandler. Caller must hold e.mu.
func (e *Engine) askButtonsLocked(prompt string, options []models.ButtonOption, h ButtonHandler) {
	e.buttonHandler = h
	e.textHandler = nil
	e.appendLocked(models.Message{
		Text:    prompt,
		Sender:  models.SenderBot,
		Kind:    models.MessageKindButtons,
		Options: options,
	})
}

// appendBotLocked appends a plain bot message. Caller must hold e.mu.
func (e *Engine) appendBotLocked(text string) {
	e.appendLocked(models.Message{Text: text, Sender: models.SenderBot, Kind: models.MessageKindPlain})
}

// appendUserLocked appends a plain user message. Caller must hold e.mu.
func (e *Engine) appendUserLocked(text string) {
	e.appendLocked(models.Message{Text: text, Sender: models.SenderUser, Kind: models.MessageKindPlain})
}

// appendLocked stamps and appends a message to the transcript.
// Caller must hold e.mu.
func (e *Engine) appendLocked(msg models.Message) {
	msg.Timestamp = time.Now()
	e.transcript = append(e.transcript, msg)
	if e.listener != nil {
		e.listener(msg)
	}
}

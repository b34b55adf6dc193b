// Package leads implements incremental lead persistence for chat sessions.
//
// A Recorder owns the in-memory answers for one session and mirrors them to
// the lead store: create on the first top-level choice, update-by-session for
// every recorded answer, with a fallback insert when no row matched. While the
// store is unreachable it buffers at most one create-intent and one
// update-intent and flushes them once connectivity returns.
package leads

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zenoccaz/chatlead/internal/models"
	"github.com/zenoccaz/chatlead/internal/store"
	"github.com/zenoccaz/chatlead/internal/util"
)

// Default timing constants for the recorder.
const (
	// DefaultPollInterval is how often the retry poll checks for store availability.
	DefaultPollInterval = 1 * time.Second
	// DefaultWriteTimeout bounds each individual store write.
	DefaultWriteTimeout = 10 * time.Second
	// writeQueueSize is the buffer of the ordered write queue.
	writeQueueSize = 64
)

// StoreProvider returns the current lead store handle, or nil while the store
// is unreachable. A nil handle is an expected transient state, not an error.
type StoreProvider func() store.Store

// Opts holds configuration options for a Recorder.
type Opts struct {
	PollInterval time.Duration
	WriteTimeout time.Duration
}

// Option configures Recorder construction.
type Option func(*Opts)

// WithPollInterval overrides the retry poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// WithWriteTimeout overrides the per-write store timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Opts) { o.WriteTimeout = d }
}

// Recorder records partial and final answers for a single chat session.
// Store writes are issued asynchronously on a single ordered queue so the
// dialogue engine never blocks on the network and writes cannot overtake
// each other.
type Recorder struct {
	sessionID    string
	provider     StoreProvider
	pollInterval time.Duration
	writeTimeout time.Duration

	mu            sync.Mutex
	mode          models.Mode
	answers       map[string]string
	lastChoice    string
	pendingChoice string
	hasPending    bool              // a create-intent is buffered
	pendingUpdate map[string]string // buffered update-intent, last write wins
	polling       bool

	writes chan func()
	wg     sync.WaitGroup
	once   sync.Once
	done   chan struct{}
}

// NewRecorder creates a Recorder for the given session.
func NewRecorder(sessionID string, provider StoreProvider, opts ...Option) *Recorder {
	cfg := Opts{PollInterval: DefaultPollInterval, WriteTimeout: DefaultWriteTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Recorder{
		sessionID:    sessionID,
		provider:     provider,
		pollInterval: cfg.PollInterval,
		writeTimeout: cfg.WriteTimeout,
		answers:      make(map[string]string),
		writes:       make(chan func(), writeQueueSize),
		done:         make(chan struct{}),
	}
	go r.runWrites()
	slog.Debug("Recorder created", "sessionID", sessionID, "pollInterval", cfg.PollInterval)
	return r
}

// SessionID returns the stable session identifier this recorder writes under.
func (r *Recorder) SessionID() string { return r.sessionID }

// Mode returns the currently active flow mode.
func (r *Recorder) Mode() models.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// BeginFlow starts a new logical lead: the mode changes and the answers map is
// replaced. The session id, and hence the store row, is reused.
func (r *Recorder) BeginFlow(mode models.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	r.answers = make(map[string]string)
	slog.Debug("Recorder.BeginFlow", "sessionID", r.sessionID, "mode", mode)
}

// Answers returns a copy of the answers recorded so far.
func (r *Recorder) Answers() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyPayload(r.answers)
}

// RecordChoice records the visitor's top-level flow choice by creating a new
// lead row. If the store is unreachable the choice is buffered as the single
// pending create-intent and the retry poll is started.
func (r *Recorder) RecordChoice(choice string) {
	r.mu.Lock()
	r.lastChoice = choice
	st := r.provider()
	if st == nil {
		slog.Debug("Recorder.RecordChoice: store unreachable, buffering", "sessionID", r.sessionID, "choice", choice)
		r.pendingChoice = choice
		r.hasPending = true
		r.startPollLocked()
		r.mu.Unlock()
		return
	}
	payload := copyPayload(r.answers)
	r.mu.Unlock()

	r.enqueue(func() { r.writeCreate(st, choice, payload) })
}

// RecordAnswer merges the partial payload into the in-memory answers and
// mirrors the merged result to the store. If the store is unreachable the
// merged payload is buffered as the single pending update-intent, overwriting
// any earlier buffered update.
func (r *Recorder) RecordAnswer(partial map[string]string) {
	r.mu.Lock()
	for k, v := range partial {
		r.answers[k] = v
	}
	merged := copyPayload(r.answers)
	st := r.provider()
	if st == nil {
		slog.Debug("Recorder.RecordAnswer: store unreachable, buffering", "sessionID", r.sessionID, "keys", len(merged))
		r.pendingUpdate = merged
		r.startPollLocked()
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.enqueue(func() { r.writeUpdate(st, merged) })
}

// Wait blocks until all queued store writes have settled. Used by tests and
// graceful shutdown.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Stop cancels the retry poll and the write worker. Queued writes are drained
// first.
func (r *Recorder) Stop() {
	r.once.Do(func() { close(r.done) })
}

// startPollLocked starts the retry poll if it is not already running.
// Caller must hold r.mu.
func (r *Recorder) startPollLocked() {
	if r.polling {
		return
	}
	r.polling = true
	go r.pollStore()
}

// pollStore polls for store availability at a fixed interval; on the first
// successful poll it cancels itself and flushes the buffered create-intent
// then the buffered update-intent, each exactly once, in that order.
func (r *Recorder) pollStore() {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			r.mu.Lock()
			r.polling = false
			r.mu.Unlock()
			return
		case <-ticker.C:
			st := r.provider()
			if st == nil {
				continue
			}

			r.mu.Lock()
			choice := r.pendingChoice
			hadChoice := r.hasPending
			update := r.pendingUpdate
			r.pendingChoice = ""
			r.hasPending = false
			r.pendingUpdate = nil
			r.polling = false
			answers := copyPayload(r.answers)
			r.mu.Unlock()

			slog.Info("Recorder: store reachable, flushing buffered lead ops",
				"sessionID", r.sessionID, "hadChoice", hadChoice, "hadUpdate", update != nil)
			if hadChoice {
				r.enqueue(func() { r.writeCreate(st, choice, answers) })
			}
			if update != nil {
				r.enqueue(func() { r.writeUpdate(st, update) })
			}
			return
		}
	}
}

// enqueue puts a store write on the ordered queue.
func (r *Recorder) enqueue(fn func()) {
	r.wg.Add(1)
	select {
	case r.writes <- fn:
	case <-r.done:
		r.wg.Done()
	}
}

// runWrites executes queued store writes one at a time, preserving issue order.
func (r *Recorder) runWrites() {
	for {
		select {
		case fn := <-r.writes:
			fn()
			r.wg.Done()
		case <-r.done:
			// Drain anything already queued before exiting.
			for {
				select {
				case fn := <-r.writes:
					fn()
					r.wg.Done()
				default:
					return
				}
			}
		}
	}
}

// writeCreate inserts a new lead row. Failures are logged for operators and
// otherwise swallowed; a lost lead write never breaks the conversation.
func (r *Recorder) writeCreate(st store.Store, choice string, payload map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	lead := models.Lead{
		ID:        util.GenerateLeadID(),
		SessionID: r.sessionID,
		Choice:    choice,
		Payload:   payload,
	}
	if err := st.CreateLead(ctx, lead); err != nil {
		slog.Error("Recorder: lead insert failed", "error", err, "sessionID", r.sessionID, "choice", choice)
		return
	}
	slog.Debug("Recorder: lead created", "sessionID", r.sessionID, "choice", choice, "leadID", lead.ID)
}

// writeUpdate updates the lead row by session id, falling back to inserting a
// fresh row when no row matched (the update raced ahead of the create, or the
// create previously failed).
func (r *Recorder) writeUpdate(st store.Store, payload map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	matched, err := st.UpdateLeadPayload(ctx, r.sessionID, payload)
	if err != nil {
		slog.Error("Recorder: lead update failed", "error", err, "sessionID", r.sessionID)
		return
	}
	if matched > 0 {
		slog.Debug("Recorder: lead updated", "sessionID", r.sessionID, "matched", matched)
		return
	}

	lead := models.Lead{
		ID:        util.GenerateLeadID(),
		SessionID: r.sessionID,
		Choice:    r.fallbackChoice(),
		Payload:   payload,
	}
	if err := st.CreateLead(ctx, lead); err != nil {
		slog.Error("Recorder: fallback lead insert failed", "error", err, "sessionID", r.sessionID)
		return
	}
	slog.Debug("Recorder: lead created via fallback insert", "sessionID", r.sessionID, "choice", lead.Choice, "leadID", lead.ID)
}

// fallbackChoice picks the choice label for a fallback insert: the active
// mode, then the last recorded choice, then "faq".
func (r *Recorder) fallbackChoice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != models.ModeNone {
		return string(r.mode)
	}
	if r.lastChoice != "" {
		return r.lastChoice
	}
	return string(models.ModeFaq)
}

func copyPayload(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Package api exposes the HTTP surface of the chatlead service: the
// OpenAI relay endpoint the widget's AI mode talks to, a health probe,
// and the session endpoints driving scripted conversations.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/zenoccaz/chatlead/internal/models"
)

// Default server settings.
const (
	DefaultAddr            = ":8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 90 * time.Second // must outlive the completion timeout
	defaultShutdownTimeout = 10 * time.Second
)

// CompletionClient is the completion surface the chat relay endpoint
// needs, satisfied by genai.Client.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt string, history []models.ConversationEntry, message string) (string, error)
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr           string
	AllowedOrigins []string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAllowedOrigins restricts CORS to the given origins. The widget is
// embedded on third-party pages, so the default is permissive.
func WithAllowedOrigins(origins []string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// Server is the chatlead HTTP server.
type Server struct {
	addr           string
	allowedOrigins []string
	completion     CompletionClient
	sessions       *SessionManager
}

// NewServer creates the API server around a completion client and a
// session manager.
func NewServer(completion CompletionClient, sessions *SessionManager, options ...Option) *Server {
	opts := Opts{
		Addr:           DefaultAddr,
		AllowedOrigins: []string{"*"},
	}
	for _, opt := range options {
		opt(&opts)
	}
	slog.Debug("api.NewServer created server", "addr", opts.Addr, "origins", opts.AllowedOrigins)
	return &Server{
		addr:           opts.Addr,
		allowedOrigins: opts.AllowedOrigins,
		completion:     completion,
		sessions:       sessions,
	}
}

// Handler builds the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/api/chat", s.chatHandler)
	r.Get("/health", s.healthHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSessionHandler)
		r.Post("/{sessionID}/messages", s.postMessageHandler)
		r.Post("/{sessionID}/buttons", s.postButtonHandler)
		r.Get("/{sessionID}/transcript", s.transcriptHandler)
	})

	return r
}

// Run serves until ctx is cancelled, then drains connections and stops
// every live session.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run shutdown failed", "error", err)
		return err
	}
	s.sessions.Shutdown()
	slog.Info("API server stopped")
	return nil
}

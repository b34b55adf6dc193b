package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zenoccaz/chatlead/internal/models"
)

func TestConverseSuccess(t *testing.T) {
	var got models.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(models.ChatResponse{Response: "Bonjour ! Comment puis-je t'aider ?"})
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL))
	reply, err := c.Converse(context.Background(), "bonjour", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Bonjour ! Comment puis-je t'aider ?" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if got.Message != "bonjour" {
		t.Errorf("message not forwarded: %q", got.Message)
	}
	if got.SystemPrompt == "" {
		t.Error("system prompt missing from request")
	}
}

func TestConverseTrimsHistoryWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.ConversationHistory) != HistoryWindow {
			t.Errorf("expected %d history entries, got %d", HistoryWindow, len(req.ConversationHistory))
		}
		if req.ConversationHistory[0].Content != "turn 4" {
			t.Errorf("expected oldest retained entry to be turn 4, got %q", req.ConversationHistory[0].Content)
		}
		json.NewEncoder(w).Encode(models.ChatResponse{Response: "ok"})
	}))
	defer srv.Close()

	var window []models.ConversationEntry
	for i := 0; i < 10; i++ {
		window = append(window, models.ConversationEntry{Role: "user", Content: "turn " + string(rune('0'+i))})
	}

	c := NewClient(WithEndpoint(srv.URL))
	if _, err := c.Converse(context.Background(), "suite", window); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConverseNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL))
	if _, err := c.Converse(context.Background(), "bonjour", nil); err == nil {
		t.Fatal("expected error for 500 status")
	}
}

func TestConverseMalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL))
	if _, err := c.Converse(context.Background(), "bonjour", nil); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestConverseEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ChatResponse{Response: ""})
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL))
	_, err := c.Converse(context.Background(), "bonjour", nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestConverseTimeoutCancelsRequest(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read is active; otherwise
		// r.Context() is never cancelled when the client disconnects.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(WithEndpoint(srv.URL), WithTimeout(20*time.Millisecond))
	begin := time.Now()
	_, err := c.Converse(context.Background(), "bonjour", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(begin) > 2*time.Second {
		t.Error("timeout did not cancel the in-flight request promptly")
	}
	<-started
}

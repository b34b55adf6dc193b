package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zenoccaz/chatlead/internal/models"
)

// defaultChatSystemPrompt is used when the relay request carries no system
// prompt of its own.
const defaultChatSystemPrompt = `Tu es un assistant IA pour ZENOCCAZ, un spécialiste en vente de véhicules d'occasion premium.
- Réponds en français avec un ton professionnel mais amical
- Aide les visiteurs avec des questions sur les véhicules, les tarifs, les services
- Si tu as des informations sur nos véhicules, utilise-les
- Propose toujours de les mettre en contact avec l'équipe pour plus de détails
- Sois concis (max 3-4 lignes)`

// chatHandler relays one chat turn to the completion provider.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Message requis et valide")
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "Message requis et valide")
		return
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultChatSystemPrompt
	}

	// The history, when present, already ends with the latest user turn.
	// Entries missing a role or content are dropped rather than rejected.
	history := make([]models.ConversationEntry, 0, len(req.ConversationHistory))
	for _, entry := range req.ConversationHistory {
		if entry.Role != "" && entry.Content != "" {
			history = append(history, entry)
		}
	}
	message := req.Message
	if len(history) > 0 {
		message = ""
	}

	slog.Debug("Server.chatHandler relaying chat turn", "historyLen", len(history))
	reply, err := s.completion.Complete(r.Context(), systemPrompt, history, message)
	if err != nil {
		slog.Error("Server.chatHandler completion failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Erreur serveur")
		return
	}

	writeJSONResponse(w, http.StatusOK, models.ChatResponse{Response: reply})
}

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// sessionResponse is the envelope returned by the session endpoints.
type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Mode      models.Mode      `json:"mode"`
	Loading   bool             `json:"loading"`
	Messages  []models.Message `json:"messages"`
}

func newSessionResponse(session *Session) sessionResponse {
	return sessionResponse{
		SessionID: session.ID,
		Mode:      session.Engine.Mode(),
		Loading:   session.Engine.Loading(),
		Messages:  session.Engine.Transcript(),
	}
}

// createSessionHandler starts a widget session and returns the greeting.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Create()
	writeJSONResponse(w, http.StatusCreated, newSessionResponse(session))
}

// postMessageRequest is the body of POST /sessions/{id}/messages.
type postMessageRequest struct {
	Text string `json:"text"`
}

// postMessageHandler submits free text to a session's engine. AI replies
// arrive asynchronously; the widget polls the transcript for them.
func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		writeJSONError(w, http.StatusNotFound, "session inconnue")
		return
	}
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}
	session.Engine.SubmitText(req.Text)
	writeJSONResponse(w, http.StatusOK, newSessionResponse(session))
}

// postButtonRequest is the body of POST /sessions/{id}/buttons.
type postButtonRequest struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// postButtonHandler submits a button click to a session's engine. Clicks on
// stale buttons are ignored, matching the widget's render-once behavior.
func (s *Server) postButtonHandler(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		writeJSONError(w, http.StatusNotFound, "session inconnue")
		return
	}
	var req postButtonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}
	if req.Value == "" {
		writeJSONError(w, http.StatusBadRequest, "valeur de bouton requise")
		return
	}
	session.Engine.SubmitButton(req.Value, req.Label)
	writeJSONResponse(w, http.StatusOK, newSessionResponse(session))
}

// transcriptHandler returns the session's full transcript and state.
func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if session == nil {
		writeJSONError(w, http.StatusNotFound, "session inconnue")
		return
	}
	writeJSONResponse(w, http.StatusOK, newSessionResponse(session))
}

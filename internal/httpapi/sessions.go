package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/search"
)

type sessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
}

type sessionDetail struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Messages     []chat.Message `json:"messages"`
	LastActivity time.Time      `json:"last_activity"`
}

func summarize(s chat.Session) sessionSummary {
	return sessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		MessageCount: len(s.Messages),
		LastActivity: s.LastActivity,
	}
}

func detail(s chat.Session) sessionDetail {
	msgs := s.Messages
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return sessionDetail{ID: s.ID, Title: s.Title, Messages: msgs, LastActivity: s.LastActivity}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.repo.ListSessions(r.Context())
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	sess := s.controller.StartNewChat(r.Context())
	s.metrics.SessionEvents.WithLabelValues("new_chat").Inc()
	s.metrics.StoredSessions.Set(float64(s.repo.Count(r.Context())))
	respondJSON(w, http.StatusOK, map[string]any{"session": detail(sess)})
}

func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, fellBack := s.controller.LoadSession(r.Context(), id)
	event := "load"
	if fellBack {
		event = "load_fallback"
	}
	s.metrics.SessionEvents.WithLabelValues(event).Inc()
	s.metrics.StoredSessions.Set(float64(s.repo.Count(r.Context())))
	respondJSON(w, http.StatusOK, map[string]any{
		"session":   detail(sess),
		"fell_back": fellBack,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.repo.DeleteSession(r.Context(), id)
	s.metrics.SessionEvents.WithLabelValues("delete").Inc()
	s.metrics.StoredSessions.Set(float64(s.repo.Count(r.Context())))
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	sess := s.controller.Current()
	surface := s.controller.Surface()
	respondJSON(w, http.StatusOK, map[string]any{
		"session": detail(sess),
		"surface": surface,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	groups, err := s.index.Search(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusBadRequest, "empty_query", "query parameter q is required")
		return
	}
	s.metrics.SearchQueries.Inc()
	if groups == nil {
		groups = []search.Group{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

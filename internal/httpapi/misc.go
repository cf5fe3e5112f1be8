package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/assistant"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/settings"
)

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"theme": s.themes.Get(r.Context())})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if err := s.themes.Set(r.Context(), req.Theme); err != nil {
		if errors.Is(err, settings.ErrInvalidTheme) {
			respondError(w, http.StatusBadRequest, "invalid_theme", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "theme_failed", "could not store theme")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"theme": req.Theme})
}

// handleClearHistory wipes the local conversation store, then asks the
// backend to forget this device. The local wipe always wins: a backend
// failure is reported but does not resurrect local history.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.controller.StartNewChat(r.Context())
	s.repo.ClearAll(r.Context())
	s.metrics.SessionEvents.WithLabelValues("clear_all").Inc()
	s.metrics.StoredSessions.Set(0)

	degraded := false
	if err := s.adapter.ClearHistory(r.Context(), s.deviceID); err != nil {
		s.logger.Error("backend history clear failed", zap.Error(err))
		degraded = true
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"cleared":  true,
		"degraded": degraded,
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", "multipart field file is required")
		return
	}
	defer file.Close()

	if err := s.adapter.UploadDocument(r.Context(), header.Filename, file); err != nil {
		s.logger.Error("document upload failed", zap.String("name", header.Filename), zap.Error(err))
		respondError(w, http.StatusBadGateway, "upload_failed", "the document could not be uploaded")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"uploaded": header.Filename})
}

type escalationRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Email   string `json:"email"`
}

func (s *Server) handleEscalation(w http.ResponseWriter, r *http.Request) {
	var req escalationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.Subject == "" || req.Body == "" {
		respondError(w, http.StatusBadRequest, "invalid_escalation", "subject and body are required")
		return
	}

	ticket, err := s.adapter.SubmitEscalation(r.Context(), assistant.Escalation{
		Subject: req.Subject,
		Body:    req.Body,
		Email:   req.Email,
	})
	if err != nil {
		s.logger.Error("escalation failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "escalation_failed", "the escalation could not be submitted")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}

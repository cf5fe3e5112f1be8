package httpapi

import (
	"errors"
	"net/http"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Company  string `json:"company"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	err := s.authSvc.Register(r.Context(), req.Email, req.Password, req.FullName, req.Company)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		respondError(w, http.StatusConflict, "user_exists", "an account with this email already exists")
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_registration", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"registered": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	profile, err := s.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.authSvc.Logout(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.authSvc.Current(r.Context())
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"remaining":     s.remaining(r.Context()),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"profile":       profile,
	})
}

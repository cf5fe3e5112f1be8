package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/assistant"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/auth"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/config"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/lifecycle"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/observability"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/quota"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/search"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/settings"
)

type Server struct {
	cfg        config.Config
	controller *lifecycle.Controller
	repo       *chat.Repository
	index      *search.Index
	gate       *quota.Gate
	authSvc    *auth.Service
	themes     *settings.Themes
	adapter    assistant.Adapter
	metrics    *observability.Metrics
	bus        *bus.Bus
	logger     *zap.Logger
	deviceID   string
	upgrader   websocket.Upgrader
}

func New(
	cfg config.Config,
	controller *lifecycle.Controller,
	repo *chat.Repository,
	index *search.Index,
	gate *quota.Gate,
	authSvc *auth.Service,
	themes *settings.Themes,
	adapter assistant.Adapter,
	metrics *observability.Metrics,
	b *bus.Bus,
	deviceID string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		controller: controller,
		repo:       repo,
		index:      index,
		gate:       gate,
		authSvc:    authSvc,
		themes:     themes,
		adapter:    adapter,
		metrics:    metrics,
		bus:        b,
		logger:     logger,
		deviceID:   deviceID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. This keeps other
				// websites from driving the user's chat if the service is
				// ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/query", s.handleQuery)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/sessions", s.handleListSessions)
	r.Post("/v1/sessions/new", s.handleNewChat)
	r.Post("/v1/sessions/{id}/load", s.handleLoadSession)
	r.Delete("/v1/sessions/{id}", s.handleDeleteSession)
	r.Get("/v1/sessions/current", s.handleCurrentSession)

	r.Get("/v1/search", s.handleSearch)

	r.Post("/v1/auth/register", s.handleRegister)
	r.Post("/v1/auth/login", s.handleLogin)
	r.Post("/v1/auth/logout", s.handleLogout)
	r.Get("/v1/auth/me", s.handleMe)

	r.Get("/v1/settings/theme", s.handleGetTheme)
	r.Put("/v1/settings/theme", s.handlePutTheme)

	r.Delete("/v1/history", s.handleClearHistory)
	r.Post("/v1/documents", s.handleUploadDocument)
	r.Post("/v1/escalation", s.handleEscalation)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"stored_sessions": s.repo.Count(r.Context()),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

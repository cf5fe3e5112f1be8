package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/assistant"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
)

type queryRequest struct {
	Text string `json:"text"`
}

type queryResponse struct {
	SessionID     string             `json:"session_id"`
	UserMessageID string             `json:"user_message_id"`
	ReplyID       string             `json:"reply_id"`
	Reply         string             `json:"reply"`
	Sources       []assistant.Source `json:"sources,omitempty"`
	LimitReached  bool               `json:"limit_reached,omitempty"`
	Remaining     int                `json:"remaining"`
}

// exchange is the outcome of one completed user/assistant round trip.
type exchange struct {
	SessionID     string
	UserMessageID string
	Reply         chat.Message
	Sources       []assistant.Source
	Attached      bool
	LimitReached  bool
	Remaining     int
}

// exchangeError carries a user-visible failure out of the pipeline.
type exchangeError struct {
	Status int
	Code   string
	Detail string
}

// runExchange is the single send pipeline shared by the HTTP and
// websocket surfaces: quota check, append, backend call, reply routing,
// quota commit. The quota is only committed after the assistant reply
// arrives; a backend failure does not burn an anonymous slot.
func (s *Server) runExchange(ctx context.Context, text string) (exchange, *exchangeError) {
	text = strings.TrimSpace(text)
	if text == "" {
		return exchange{}, &exchangeError{Status: http.StatusBadRequest, Code: "empty_message", Detail: "message text is required"}
	}

	decision := s.gate.TryConsume(ctx)
	if !decision.Allowed {
		s.metrics.QuotaDenials.Inc()
		return exchange{}, &exchangeError{Status: http.StatusForbidden, Code: "quota_exceeded", Detail: "anonymous message limit reached, please log in"}
	}

	started := time.Now()
	userMsg, originID := s.controller.AppendMessage(ctx, chat.RoleUser, text)

	resp, err := s.adapter.SubmitQuery(ctx, assistant.QueryRequest{Text: text, DeviceID: s.deviceID})
	if err != nil {
		s.metrics.Sends.WithLabelValues("failure").Inc()
		s.logger.Error("assistant query failed", zap.String("session_id", originID), zap.Error(err))
		return exchange{}, &exchangeError{Status: http.StatusBadGateway, Code: "assistant_unavailable", Detail: "the assistant could not be reached, please try again"}
	}

	reply, attached := s.controller.AttachAssistantReply(ctx, originID, resp.Text)
	limitReached := s.gate.Commit(ctx)

	s.metrics.Sends.WithLabelValues("success").Inc()
	s.metrics.ObserveExchangeLatency(time.Since(started))
	s.metrics.StoredSessions.Set(float64(s.repo.Count(ctx)))

	return exchange{
		SessionID:     originID,
		UserMessageID: userMsg.ID,
		Reply:         reply,
		Sources:       resp.Sources,
		Attached:      attached,
		LimitReached:  limitReached,
		Remaining:     s.remaining(ctx),
	}, nil
}

func (s *Server) remaining(ctx context.Context) int {
	if s.authSvc.IsAuthenticated(ctx) {
		return -1
	}
	left := s.cfg.AnonMessageLimit - s.gate.Count(ctx)
	if left < 0 {
		left = 0
	}
	return left
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a text field")
		return
	}

	ex, exErr := s.runExchange(r.Context(), req.Text)
	if exErr != nil {
		respondError(w, exErr.Status, exErr.Code, exErr.Detail)
		return
	}

	respondJSON(w, http.StatusOK, queryResponse{
		SessionID:     ex.SessionID,
		UserMessageID: ex.UserMessageID,
		ReplyID:       ex.Reply.ID,
		Reply:         ex.Reply.Content,
		Sources:       ex.Sources,
		LimitReached:  ex.LimitReached,
		Remaining:     ex.Remaining,
	})
}

package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/protocol"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
)

// wsClient is one chat connection. A single writer goroutine owns the
// socket for writes; everything else enqueues through send, which drops
// frames rather than block an exchange on a slow client.
type wsClient struct {
	srv  *Server
	conn *websocket.Conn

	mu     sync.Mutex
	out    chan any
	closed bool
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{srv: s, conn: conn, out: make(chan any, 32)}
	go c.writeLoop()

	c.send(protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		Event:     "connected",
		SessionID: s.controller.Current().ID,
	})

	c.readLoop(r.Context())
}

func (c *wsClient) send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.out <- v:
		if t, ok := protocol.TypeOf(v); ok {
			c.srv.metrics.WSMessages.WithLabelValues("out", string(t)).Inc()
		}
	default:
		c.srv.logger.Warn("dropping websocket frame, client too slow")
	}
}

func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *wsClient) readLoop(ctx context.Context) {
	defer func() {
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			c.send(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "bad_message", Detail: err.Error()})
			continue
		}

		switch m := msg.(type) {
		case protocol.UserMessage:
			c.srv.metrics.WSMessages.WithLabelValues("in", string(protocol.TypeUserMessage)).Inc()
			// Each exchange runs on its own goroutine so the user can
			// keep navigating sessions while a slow answer is in
			// flight; the reply is routed back to its origin session.
			go c.runUserMessage(ctx, m)
		}
	}
}

func (c *wsClient) runUserMessage(ctx context.Context, m protocol.UserMessage) {
	ex, exErr := c.srv.runExchange(ctx, m.Text)
	if exErr != nil {
		if exErr.Code == "quota_exceeded" {
			c.send(protocol.QuotaDenied{Type: protocol.TypeQuotaDenied, Limit: c.srv.cfg.AnonMessageLimit})
			return
		}
		c.send(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: exErr.Code, Detail: exErr.Detail})
		return
	}

	if ex.Attached {
		c.send(protocol.AssistantReply{
			Type:      protocol.TypeAssistantReply,
			SessionID: ex.SessionID,
			MessageID: ex.Reply.ID,
			Text:      ex.Reply.Content,
			Sources:   ex.Sources,
		})
	}
	if ex.LimitReached {
		c.send(protocol.LimitReached{Type: protocol.TypeLimitReached, Limit: c.srv.cfg.AnonMessageLimit})
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(payload); err != nil {
				c.srv.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/assistant"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage    MessageType = "user_message"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeQuotaDenied    MessageType = "quota_denied"
	TypeLimitReached   MessageType = "limit_reached"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is an inbound send from the chat input.
type UserMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
	TSMs int64       `json:"ts_ms,omitempty"`
}

// AssistantReply carries a completed answer for a specific session. The
// session id lets the client drop replies for conversations it already
// switched away from.
type AssistantReply struct {
	Type      MessageType        `json:"type"`
	SessionID string             `json:"session_id"`
	MessageID string             `json:"message_id"`
	Text      string             `json:"text"`
	Sources   []assistant.Source `json:"sources,omitempty"`
}

// QuotaDenied tells the client the anonymous limit is exhausted.
type QuotaDenied struct {
	Type  MessageType `json:"type"`
	Limit int         `json:"limit"`
}

// LimitReached is the one-time notification fired by the exchange that
// consumed the final anonymous slot.
type LimitReached struct {
	Type  MessageType `json:"type"`
	Limit int         `json:"limit"`
}

// SystemEvent reports session transitions (new chat, session loaded).
type SystemEvent struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event"`
	SessionID string      `json:"session_id,omitempty"`
}

// ErrorEvent is the single user-visible error bubble for a failed
// exchange. Input stays enabled so the user can resend.
type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

// ParseClientMessage decodes an inbound websocket frame.
func ParseClientMessage(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var m UserMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode user message: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}

// TypeOf returns the message type of an outbound payload.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case UserMessage:
		return m.Type, true
	case AssistantReply:
		return m.Type, true
	case QuotaDenied:
		return m.Type, true
	case LimitReached:
		return m.Type, true
	case SystemEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}

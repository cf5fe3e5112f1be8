package chat

import (
	"errors"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

var ErrNotFound = errors.New("session not found")

// Message is one conversation turn. Messages are immutable once created,
// except that content may be replaced in place by ID while a reply is
// still streaming or being edited.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a titled, ordered sequence of messages representing one
// resumable conversation. Messages keep insertion order and are never
// reordered.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
}

// Clone returns a deep copy so callers can hold a session across lock
// boundaries without aliasing the stored message slice.
func (s Session) Clone() Session {
	c := s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return c
}

// UpdateMessage replaces the content of the message with the given ID.
// It reports whether a message was found.
func (s *Session) UpdateMessage(id, content string) bool {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			s.Messages[i].Content = content
			return true
		}
	}
	return false
}

// FirstUserMessage returns the first role=user message, if any.
func (s Session) FirstUserMessage() (Message, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}

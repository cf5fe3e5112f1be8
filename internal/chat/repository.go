package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/kvstore"
)

const titleMaxRunes = 30

// Repository owns the stored session list and the active-session log.
// Write failures are logged, never returned: the in-memory session stays
// authoritative for the process lifetime and persistence is retried on
// the next mutation. Corrupt stored data decodes to an empty default so
// one bad key cannot take the rest of the app down.
type Repository struct {
	store  kvstore.Store
	logger *zap.Logger
}

func NewRepository(store kvstore.Store, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{store: store, logger: logger}
}

// ListSessions returns all stored sessions sorted by LastActivity
// descending. Ties keep original insertion order (stable sort).
func (r *Repository) ListSessions(ctx context.Context) []Session {
	sessions := r.loadSaved(ctx)
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	return sessions
}

// GetSession returns the stored session with the given id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, bool) {
	for _, s := range r.loadSaved(ctx) {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// UpsertSession replaces any stored session with the same id (full
// overwrite, keeping its insertion position) or appends it. Sessions
// without messages are never persisted. A missing title is derived
// before the write.
func (r *Repository) UpsertSession(ctx context.Context, session Session) {
	if len(session.Messages) == 0 {
		return
	}

	sessions := r.loadSaved(ctx)
	if session.Title == "" {
		session.Title = DeriveTitle(session, len(sessions))
	}

	replaced := false
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, session)
	}

	r.writeSaved(ctx, sessions)
}

// DeleteSession removes the stored session with the given id. Removing
// an absent id is a no-op.
func (r *Repository) DeleteSession(ctx context.Context, id string) {
	sessions := r.loadSaved(ctx)
	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(sessions) {
		return
	}
	r.writeSaved(ctx, kept)
}

// SaveCurrent persists the active session under its dedicated key so a
// restart resumes mid-conversation.
func (r *Repository) SaveCurrent(ctx context.Context, session Session) {
	raw, err := json.Marshal(session)
	if err != nil {
		r.logger.Error("encode current session", zap.String("session_id", session.ID), zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, kvstore.KeyCurrentSession, string(raw)); err != nil {
		r.logger.Error("persist current session deferred",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}

// LoadCurrent returns the persisted active session, if any. Corrupt data
// reads as absent.
func (r *Repository) LoadCurrent(ctx context.Context) (Session, bool) {
	raw, ok, err := r.store.Get(ctx, kvstore.KeyCurrentSession)
	if err != nil {
		r.logger.Error("read current session", zap.Error(err))
		return Session{}, false
	}
	if !ok {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		r.logger.Warn("current session log corrupt, starting empty", zap.Error(err))
		return Session{}, false
	}
	if s.ID == "" {
		return Session{}, false
	}
	return s, true
}

// ClearCurrent drops the active-session log.
func (r *Repository) ClearCurrent(ctx context.Context) {
	if err := r.store.Remove(ctx, kvstore.KeyCurrentSession); err != nil {
		r.logger.Error("clear current session", zap.Error(err))
	}
}

// ClearAll drops every stored session and the active-session log.
func (r *Repository) ClearAll(ctx context.Context) {
	if err := r.store.Remove(ctx, kvstore.KeySavedSessions); err != nil {
		r.logger.Error("clear saved sessions", zap.Error(err))
	}
	r.ClearCurrent(ctx)
}

// Count returns the number of stored sessions.
func (r *Repository) Count(ctx context.Context) int {
	return len(r.loadSaved(ctx))
}

func (r *Repository) loadSaved(ctx context.Context) []Session {
	raw, ok, err := r.store.Get(ctx, kvstore.KeySavedSessions)
	if err != nil {
		r.logger.Error("read saved sessions", zap.Error(err))
		return []Session{}
	}
	if !ok {
		return []Session{}
	}
	var sessions []Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		r.logger.Warn("saved sessions corrupt, substituting empty list", zap.Error(err))
		return []Session{}
	}
	return sessions
}

func (r *Repository) writeSaved(ctx context.Context, sessions []Session) {
	raw, err := json.Marshal(sessions)
	if err != nil {
		r.logger.Error("encode saved sessions", zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, kvstore.KeySavedSessions, string(raw)); err != nil {
		r.logger.Error("persist saved sessions deferred",
			zap.Int("count", len(sessions)), zap.Error(err))
	}
}

// DeriveTitle builds a session title from the first user message,
// truncated to 30 characters with a trailing ellipsis. Without a user
// message the title falls back to a positional "Chat N".
func DeriveTitle(session Session, existingCount int) string {
	first, ok := session.FirstUserMessage()
	if !ok {
		return fmt.Sprintf("Chat %d", existingCount+1)
	}
	content := first.Content
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes]) + "…"
}

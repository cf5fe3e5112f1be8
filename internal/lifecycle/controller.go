// Package lifecycle owns the "current session" state machine. There is
// exactly one Controller per process, constructed at startup and handed
// by reference to every caller; independently initialized UI modules
// never reach into ambient state directly.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/chat"
)

// SurfaceState models the DOM-visible singletons the controller
// guarantees: the welcome/greeting banner and the message-input region.
// Uncoordinated initializers may bump the counts; Reconcile restores the
// invariants, so idempotence rather than mutual exclusion is the safety
// mechanism.
type SurfaceState struct {
	WelcomeCount         int  `json:"welcome_count"`
	InputCount           int  `json:"input_count"`
	WelcomeAuthenticated bool `json:"welcome_authenticated"`
}

// Controller coordinates session transitions, persistence and UI
// reconciliation. All methods are safe for concurrent use.
type Controller struct {
	mu     sync.Mutex
	repo   *chat.Repository
	logger *zap.Logger
	now    func() time.Time

	current chat.Session // zero ID means no active session
	dirty   bool         // current has mutations not yet in saved-sessions

	authenticated bool
	chatSurface   bool // long-running chat surface vs pre-auth surface
	surface       SurfaceState

	debounce     time.Duration
	reconcileGen uint64
	onReconcile  func()
}

func NewController(repo *chat.Repository, debounce time.Duration, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		repo:        repo,
		logger:      logger,
		now:         time.Now,
		debounce:    debounce,
		chatSurface: true,
	}
}

// SetReconcileHook registers a callback run after every reconcile pass,
// used for instrumentation.
func (c *Controller) SetReconcileHook(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconcile = hook
}

// Bind subscribes the controller to login state transitions so the
// welcome banner flavor follows the authenticated state.
func (c *Controller) Bind(b *bus.Bus) {
	b.Subscribe(bus.TopicUserLoggedIn, func(bus.Event) {
		c.SetAuthenticated(true)
	})
	b.Subscribe(bus.TopicUserLoggedOut, func(bus.Event) {
		c.SetAuthenticated(false)
	})
}

// Resume restores the persisted active session, or mints a fresh one if
// none (or corrupt state) is found, and runs the startup reconcile pass.
func (c *Controller) Resume(ctx context.Context) chat.Session {
	c.mu.Lock()
	if restored, ok := c.repo.LoadCurrent(ctx); ok {
		c.current = restored
		c.dirty = len(restored.Messages) > 0
	} else {
		c.current = c.freshSession()
		c.dirty = false
	}
	out := c.current.Clone()
	c.reconcileLocked()
	c.mu.Unlock()
	return out
}

// StartNewChat durably saves the outgoing session when it has at least
// one message, then switches to a freshly minted empty session. A failed
// save is logged and the switch proceeds anyway: continuity for the user
// outranks durability of one transition.
func (c *Controller) StartNewChat(ctx context.Context) chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.current.Messages) > 0 {
		c.repo.UpsertSession(ctx, c.current)
		c.dirty = false
	}

	c.current = c.freshSession()
	c.dirty = false
	c.repo.ClearCurrent(ctx)
	c.reconcileLocked()
	return c.current.Clone()
}

// LoadSession switches to a stored session. An unknown id degrades to a
// fresh default session rather than failing the UI; the second return
// reports whether that fallback happened. The outgoing session is saved
// first unless it is already durable.
func (c *Controller) LoadSession(ctx context.Context, id string) (chat.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty && len(c.current.Messages) > 0 {
		c.repo.UpsertSession(ctx, c.current)
		c.dirty = false
	}

	fellBack := false
	if loaded, ok := c.repo.GetSession(ctx, id); ok {
		c.current = loaded.Clone()
	} else {
		c.logger.Warn("session not found, falling back to fresh session", zap.String("session_id", id))
		c.current = c.freshSession()
		fellBack = true
	}
	c.dirty = false
	c.repo.SaveCurrent(ctx, c.current)
	c.reconcileLocked()
	return c.current.Clone(), fellBack
}

// AppendMessage appends to the current session, implicitly creating one
// when none is active. Append order always matches submission order:
// callers serialize on the controller lock. The second return is the id
// of the session the message landed in, captured under the same lock so
// a concurrent session switch cannot misattribute a later reply.
func (c *Controller) AppendMessage(ctx context.Context, role chat.Role, content string) (chat.Message, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.ID == "" {
		c.current = c.freshSession()
	}
	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: c.now().UTC(),
	}
	c.current.Messages = append(c.current.Messages, msg)
	c.current.LastActivity = msg.CreatedAt
	c.dirty = true
	c.repo.SaveCurrent(ctx, c.current)
	c.scheduleReconcileLocked()
	return msg, c.current.ID
}

// UpdateMessage replaces the content of a message in the current session
// by id (the streaming/edit update path).
func (c *Controller) UpdateMessage(ctx context.Context, id, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.current.UpdateMessage(id, content) {
		return false
	}
	c.current.LastActivity = c.now().UTC()
	c.dirty = true
	c.repo.SaveCurrent(ctx, c.current)
	return true
}

// AttachAssistantReply routes a completed reply to the session it was
// generated for. A late reply arriving after the session changed is
// appended to the stored copy, or discarded when that session no longer
// exists; it is never attached to the new current session.
func (c *Controller) AttachAssistantReply(ctx context.Context, sessionID, content string) (chat.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   content,
		CreatedAt: c.now().UTC(),
	}

	if sessionID == c.current.ID && c.current.ID != "" {
		c.current.Messages = append(c.current.Messages, msg)
		c.current.LastActivity = msg.CreatedAt
		c.dirty = true
		c.repo.SaveCurrent(ctx, c.current)
		c.scheduleReconcileLocked()
		return msg, true
	}

	stored, ok := c.repo.GetSession(ctx, sessionID)
	if !ok {
		c.logger.Warn("discarding reply for vanished session", zap.String("session_id", sessionID))
		return chat.Message{}, false
	}
	stored.Messages = append(stored.Messages, msg)
	stored.LastActivity = msg.CreatedAt
	c.repo.UpsertSession(ctx, stored)
	return msg, true
}

// Current returns a copy of the active session.
func (c *Controller) Current() chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// SaveNow durably saves the current session, used at teardown.
func (c *Controller) SaveNow(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.current.Messages) > 0 {
		c.repo.UpsertSession(ctx, c.current)
		c.dirty = false
	}
}

// SetAuthenticated records the login state and reconciles the surface.
func (c *Controller) SetAuthenticated(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = v
	c.reconcileLocked()
}

// SetChatSurface records whether the long-running chat surface (rather
// than the pre-auth surface) is in use.
func (c *Controller) SetChatSurface(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatSurface = v
	c.reconcileLocked()
}

// RegisterWelcomeArtifact and RegisterInputArtifact record that a UI
// module mounted its own copy of a singleton. Reconcile collapses
// duplicates.
func (c *Controller) RegisterWelcomeArtifact() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.WelcomeCount++
}

func (c *Controller) RegisterInputArtifact() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.InputCount++
}

// Surface returns the current surface state.
func (c *Controller) Surface() SurfaceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// Reconcile restores the surface invariants: exactly one input region,
// and exactly one welcome banner present only while the active session
// is empty and the chat surface is in use, flavored by login state.
// Invoking it any number of times with no intervening state change
// yields the same result as invoking it once.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconcileLocked()
}

// ReconcileSoon schedules a debounced reconcile pass. A timer that fires
// after the state mutated again is a no-op; the newer mutation scheduled
// its own pass.
func (c *Controller) ReconcileSoon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleReconcileLocked()
}

func (c *Controller) scheduleReconcileLocked() {
	if c.debounce <= 0 {
		c.reconcileLocked()
		return
	}
	c.reconcileGen++
	gen := c.reconcileGen
	time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.reconcileGen {
			return
		}
		c.reconcileLocked()
	})
}

func (c *Controller) reconcileLocked() {
	c.surface.InputCount = 1
	if len(c.current.Messages) == 0 && c.chatSurface {
		c.surface.WelcomeCount = 1
	} else {
		c.surface.WelcomeCount = 0
	}
	c.surface.WelcomeAuthenticated = c.authenticated
	if c.onReconcile != nil {
		c.onReconcile()
	}
}

// freshSession mints an empty session with a collision-resistant id:
// millisecond timestamp plus a random suffix. Collisions here are a
// correctness bug, not merely unlikely, hence the random part.
func (c *Controller) freshSession() chat.Session {
	now := c.now().UTC()
	return chat.Session{
		ID:           fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		LastActivity: now,
	}
}

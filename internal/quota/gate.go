// Package quota limits how many exchanges an unauthenticated user may
// complete before being asked to log in. The enforced limit is 5; a stale
// comment in the original client referenced "up to 10", which was never
// the enforced value.
package quota

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/kvstore"
)

// DefaultLimit is the enforced anonymous exchange limit.
const DefaultLimit = 5

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Gate counts completed anonymous exchanges in the persistent store.
// TryConsume never increments; the caller commits only after the exchange
// completes, so a failed or abandoned send does not burn quota.
type Gate struct {
	mu            sync.Mutex
	store         kvstore.Store
	logger        *zap.Logger
	limit         int
	authenticated bool

	// count mirrors the persisted value; once loaded it is authoritative
	// for the process lifetime so a failed store write defers persistence
	// without losing state.
	count  int
	loaded bool
}

func NewGate(store kvstore.Store, limit int, logger *zap.Logger) *Gate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, limit: limit, logger: logger}
}

// Bind subscribes the gate to login state transitions. Both directions
// reset the counter: login because quota no longer applies, logout so a
// fresh anonymous session starts clean.
func (g *Gate) Bind(b *bus.Bus) {
	b.Subscribe(bus.TopicUserLoggedIn, func(bus.Event) {
		g.SetAuthenticated(true)
		g.Reset(context.Background())
	})
	b.Subscribe(bus.TopicUserLoggedOut, func(bus.Event) {
		g.SetAuthenticated(false)
		g.Reset(context.Background())
	})
}

// SetAuthenticated seeds the login state, used at startup before any bus
// event has fired.
func (g *Gate) SetAuthenticated(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authenticated = v
}

// TryConsume reports whether a send may proceed. Authenticated users are
// always allowed and the counter is untouched.
func (g *Gate) TryConsume(ctx context.Context) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authenticated {
		return Decision{Allowed: true, Remaining: -1}
	}
	count := g.load(ctx)
	if count >= g.limit {
		return Decision{Allowed: false, Remaining: 0}
	}
	return Decision{Allowed: true, Remaining: g.limit - count}
}

// Commit records one completed anonymous exchange. It reports whether
// this exchange brought the counter exactly to the limit, for the
// one-time "limit reached" notification. Authenticated commits are no-ops.
func (g *Gate) Commit(ctx context.Context) (limitReached bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authenticated {
		return false
	}
	g.count = g.load(ctx) + 1
	g.save(ctx, g.count)
	return g.count == g.limit
}

// Reset sets the counter back to zero.
func (g *Gate) Reset(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
	g.loaded = true
	g.save(ctx, 0)
}

// Count returns the current committed count.
func (g *Gate) Count(ctx context.Context) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load(ctx)
}

func (g *Gate) load(ctx context.Context) int {
	if g.loaded {
		return g.count
	}
	g.loaded = true
	g.count = 0

	raw, ok, err := g.store.Get(ctx, kvstore.KeyAnonCount)
	if err != nil {
		g.logger.Error("read anon message count", zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		g.logger.Warn("anon message count corrupt, resetting to 0", zap.String("raw", raw))
		return 0
	}
	g.count = n
	return n
}

func (g *Gate) save(ctx context.Context, n int) {
	if err := g.store.Set(ctx, kvstore.KeyAnonCount, strconv.Itoa(n)); err != nil {
		g.logger.Error("persist anon message count deferred", zap.Int("count", n), zap.Error(err))
	}
}

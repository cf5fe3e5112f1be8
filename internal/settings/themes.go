// Package settings stores small UI preferences. The core only persists
// and re-broadcasts them; applying the cosmetic change is the UI's job.
package settings

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/kvstore"
)

const defaultTheme = "system"

var ErrInvalidTheme = errors.New("theme must be light, dark or system")

// Themes persists the theme preference and announces changes on the bus.
type Themes struct {
	store  kvstore.Store
	bus    *bus.Bus
	logger *zap.Logger
}

func NewThemes(store kvstore.Store, b *bus.Bus, logger *zap.Logger) *Themes {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Themes{store: store, bus: b, logger: logger}
}

// Get returns the stored preference. Absent or unrecognized values read
// as "system".
func (t *Themes) Get(ctx context.Context) string {
	raw, ok, err := t.store.Get(ctx, kvstore.KeyThemePreference)
	if err != nil {
		t.logger.Error("read theme preference", zap.Error(err))
		return defaultTheme
	}
	if !ok || !validTheme(raw) {
		return defaultTheme
	}
	return raw
}

// Set stores the preference and publishes theme-changed.
func (t *Themes) Set(ctx context.Context, theme string) error {
	if !validTheme(theme) {
		return ErrInvalidTheme
	}
	if err := t.store.Set(ctx, kvstore.KeyThemePreference, theme); err != nil {
		t.logger.Error("persist theme preference deferred", zap.Error(err))
	}
	if t.bus != nil {
		t.bus.Publish(bus.Event{Topic: bus.TopicThemeChanged, Payload: theme})
	}
	return nil
}

func validTheme(v string) bool {
	switch v {
	case "light", "dark", "system":
		return true
	}
	return false
}

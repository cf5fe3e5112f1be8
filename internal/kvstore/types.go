package kvstore

import "context"

// Store is the persistence contract for the conversation core: a flat,
// synchronous key to string mapping. Values holding structured data are
// JSON-encoded by callers; a value that fails to decode is treated by
// callers as absent so corruption in one key never blocks the rest of
// the app.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Well-known keys. The names match the original client-side store so an
// exported/imported state file stays recognizable.
const (
	KeyCurrentSession  = "current-session-log"
	KeySavedSessions   = "saved-sessions"
	KeyDeviceID        = "device-id"
	KeyAuthUser        = "auth-user"
	KeyAnonCount       = "anon-message-count"
	KeyThemePreference = "theme-preference"
)

// Package auth tracks who is logged in. The quota gate and the welcome
// banner key off the transitions it publishes.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/bus"
	"github.com/vijay8672/HealthEcho-Healthcare-Chatbot-using-Retrieval-Augmented-Generation-sub001/internal/kvstore"
)

const keyRegisteredUsers = "registered-users"

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Profile is the stored identity of the logged-in user.
type Profile struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Company  string `json:"company,omitempty"`
}

type userRecord struct {
	Profile      Profile `json:"profile"`
	PasswordHash string  `json:"password_hash"` // "salt:sha256hex"
}

// Service persists registered users and the current login state, and
// publishes user-logged-in / user-logged-out on transitions.
type Service struct {
	store  kvstore.Store
	bus    *bus.Bus
	logger *zap.Logger
}

func NewService(store kvstore.Store, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, bus: b, logger: logger}
}

// EnsureDeviceID returns the per-device identifier, minting and
// persisting one on first run.
func (s *Service) EnsureDeviceID(ctx context.Context) string {
	id, ok, err := s.store.Get(ctx, kvstore.KeyDeviceID)
	if err == nil && ok && strings.TrimSpace(id) != "" {
		return id
	}
	if err != nil {
		s.logger.Error("read device id", zap.Error(err))
	}
	id = uuid.NewString()
	if err := s.store.Set(ctx, kvstore.KeyDeviceID, id); err != nil {
		s.logger.Error("persist device id deferred", zap.Error(err))
	}
	return id
}

// Register creates a new account. The email is normalized to lower case.
func (s *Service) Register(ctx context.Context, email, password, fullName, company string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	users := s.loadUsers(ctx)
	if _, exists := users[email]; exists {
		return ErrUserExists
	}
	users[email] = userRecord{
		Profile:      Profile{Email: email, FullName: strings.TrimSpace(fullName), Company: strings.TrimSpace(company)},
		PasswordHash: hashPassword(password),
	}
	return s.saveUsers(ctx, users)
}

// Login verifies credentials, stores the profile under auth-user and
// publishes the login transition.
func (s *Service) Login(ctx context.Context, email, password string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users := s.loadUsers(ctx)
	rec, ok := users[email]
	if !ok || !verifyPassword(rec.PasswordHash, password) {
		return Profile{}, ErrInvalidCredentials
	}

	raw, err := json.Marshal(rec.Profile)
	if err != nil {
		return Profile{}, fmt.Errorf("encode profile: %w", err)
	}
	if err := s.store.Set(ctx, kvstore.KeyAuthUser, string(raw)); err != nil {
		s.logger.Error("persist auth user deferred", zap.Error(err))
	}
	if s.bus != nil {
		s.bus.Publish(bus.Event{Topic: bus.TopicUserLoggedIn, Payload: rec.Profile.Email})
	}
	return rec.Profile, nil
}

// Logout clears the login state and publishes the transition. Logging
// out while already logged out is a no-op without an event.
func (s *Service) Logout(ctx context.Context) {
	if _, ok := s.Current(ctx); !ok {
		return
	}
	if err := s.store.Remove(ctx, kvstore.KeyAuthUser); err != nil {
		s.logger.Error("clear auth user", zap.Error(err))
	}
	if s.bus != nil {
		s.bus.Publish(bus.Event{Topic: bus.TopicUserLoggedOut})
	}
}

// Current returns the logged-in profile, if any. Corrupt state reads as
// logged out.
func (s *Service) Current(ctx context.Context) (Profile, bool) {
	raw, ok, err := s.store.Get(ctx, kvstore.KeyAuthUser)
	if err != nil {
		s.logger.Error("read auth user", zap.Error(err))
		return Profile{}, false
	}
	if !ok {
		return Profile{}, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Warn("auth user corrupt, treating as logged out", zap.Error(err))
		return Profile{}, false
	}
	if p.Email == "" {
		return Profile{}, false
	}
	return p, true
}

// IsAuthenticated reports whether a user is logged in.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Current(ctx)
	return ok
}

func (s *Service) loadUsers(ctx context.Context) map[string]userRecord {
	raw, ok, err := s.store.Get(ctx, keyRegisteredUsers)
	if err != nil {
		s.logger.Error("read registered users", zap.Error(err))
		return map[string]userRecord{}
	}
	if !ok {
		return map[string]userRecord{}
	}
	var users map[string]userRecord
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		s.logger.Warn("registered users corrupt, substituting empty set", zap.Error(err))
		return map[string]userRecord{}
	}
	return users
}

func (s *Service) saveUsers(ctx context.Context, users map[string]userRecord) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode registered users: %w", err)
	}
	if err := s.store.Set(ctx, keyRegisteredUsers, string(raw)); err != nil {
		return fmt.Errorf("persist registered users: %w", err)
	}
	return nil
}

// hashPassword returns "salt:hash" with a random 16-byte salt and
// sha256(password+salt).
func hashPassword(password string) string {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	saltHex := hex.EncodeToString(salt)
	sum := sha256.Sum256([]byte(password + saltHex))
	return saltHex + ":" + hex.EncodeToString(sum[:])
}

func verifyPassword(stored, provided string) bool {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return false
	}
	sum := sha256.Sum256([]byte(provided + parts[0]))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(parts[1])) == 1
}

package freeze

import (
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/orchestra-mcp/presence/src/types"
	"github.com/rs/zerolog"
)

// ErrUnauthorized is returned when the admin key does not match. Callers
// must not reveal whether the scope exists.
var ErrUnauthorized = errors.New("unauthorized")

// Notifier receives the systemFreeze event after every successful change.
type Notifier interface {
	NotifyFreeze(scope string, frozen bool)
}

// Store holds the maintenance-lock flag per scope. Scope is types.Global or
// an event id.
type Store struct {
	mu       sync.RWMutex
	scopes   map[string]bool
	secret   []byte
	notifier Notifier
	logger   zerolog.Logger
}

// New creates a store guarded by secret. An empty secret rejects every
// change.
func New(secret string, notifier Notifier, logger zerolog.Logger) *Store {
	return &Store{
		scopes:   make(map[string]bool),
		secret:   []byte(secret),
		notifier: notifier,
		logger:   logger.With().Str("component", "freeze").Logger(),
	}
}

// Get returns the per-event value when set, else the global value.
func (s *Store) Get(scope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.scopes[normalize(scope)]; ok {
		return v
	}
	return s.scopes[types.Global]
}

// Set stores frozen under scope after checking key, then notifies.
func (s *Store) Set(scope string, frozen bool, key string) (bool, error) {
	scope = normalize(scope)
	if !s.Authorized(key) {
		s.logger.Warn().Str("scope", scope).Msg("rejected freeze change: bad admin key")
		return false, ErrUnauthorized
	}

	s.Apply(scope, frozen)
	s.logger.Info().Str("scope", scope).Bool("frozen", frozen).Msg("freeze changed")
	if s.notifier != nil {
		s.notifier.NotifyFreeze(scope, frozen)
	}
	return frozen, nil
}

// Apply stores a value without authentication or notification. It is used
// for state relayed from another instance.
func (s *Store) Apply(scope string, frozen bool) {
	s.mu.Lock()
	s.scopes[normalize(scope)] = frozen
	s.mu.Unlock()
}

// Authorized compares key with the shared secret in constant time.
func (s *Store) Authorized(key string) bool {
	if len(s.secret) == 0 || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), s.secret) == 1
}

func normalize(scope string) string {
	if scope == "" {
		return types.Global
	}
	return scope
}

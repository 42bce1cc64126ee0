// Package identity keeps the anonymous guest identity and consent flag
// that must survive reloads of the host.
package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Persisted keys. The layout is shared with the browser widget.
const (
	KeySession = "nocturn_session"
	KeyConsent = "nocturn_consent"

	probeKey = "nocturn_probe"
)

// Identity is the guest's durable identity within one storage scope.
type Identity struct {
	SessionID    string
	ConsentGiven bool
}

// Store owns the identity. It never fails its callers: when the backend
// is unusable it switches to an in-memory copy for the rest of the process.
type Store struct {
	mu         sync.Mutex
	backend    Storage
	mirror     *MemoryStorage
	degraded   bool
	onDegraded func(error)
	logger     zerolog.Logger
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "identity").Logger()
	}
}

// WithDegradedHook is called once, with the cause, when the store falls
// back to memory. It runs under the store lock and must not call back into it.
func WithDegradedHook(fn func(error)) Option {
	return func(s *Store) {
		s.onDegraded = fn
	}
}

// Open checks that backend can store and return a value before trusting it.
// A nil backend means no durable storage is available.
func Open(ctx context.Context, backend Storage, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		mirror:  NewMemoryStorage(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if backend == nil {
		s.degradeLocked(errors.New("no storage backend available"))
		return s
	}
	if err := probe(ctx, backend); err != nil {
		s.degradeLocked(err)
	}
	return s
}

func probe(ctx context.Context, backend Storage) error {
	if err := backend.Set(ctx, probeKey, "1"); err != nil {
		return errors.Wrap(err, "storage probe write")
	}
	v, ok, err := backend.Get(ctx, probeKey)
	if err != nil {
		return errors.Wrap(err, "storage probe read")
	}
	if !ok || v != "1" {
		return errors.New("storage probe read back a different value")
	}
	return nil
}

// GetOrCreateSessionID returns the persisted session id, generating and
// persisting a random UUID the first time.
func (s *Store) GetOrCreateSessionID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.getLocked(ctx, KeySession); ok && id != "" {
		return id
	}

	id := uuid.NewString()
	s.setLocked(ctx, KeySession, id)
	s.logger.Debug().Str("session_id", id).Msg("created guest session id")
	return id
}

func (s *Store) HasConsent(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.getLocked(ctx, KeyConsent)
	return ok && v == "true"
}

// GrantConsent records consent. Calling it again is harmless.
func (s *Store) GrantConsent(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.getLocked(ctx, KeyConsent); ok && v == "true" {
		return
	}
	s.setLocked(ctx, KeyConsent, "true")
}

// Identity returns the current identity, creating the session id if needed.
func (s *Store) Identity(ctx context.Context) Identity {
	id := s.GetOrCreateSessionID(ctx)
	return Identity{SessionID: id, ConsentGiven: s.HasConsent(ctx)}
}

// Degraded reports whether the identity lives only in memory.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Close releases the durable backend, if any.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// getLocked reads through to the backend and mirrors what it sees so that
// a later degradation keeps the last known values.
func (s *Store) getLocked(ctx context.Context, key string) (string, bool) {
	if !s.degraded {
		v, ok, err := s.backend.Get(ctx, key)
		if err == nil {
			if ok {
				_ = s.mirror.Set(ctx, key, v)
			}
			return v, ok
		}
		s.degradeLocked(err)
	}
	v, ok, _ := s.mirror.Get(ctx, key)
	return v, ok
}

func (s *Store) setLocked(ctx context.Context, key, value string) {
	_ = s.mirror.Set(ctx, key, value)
	if s.degraded {
		return
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		s.degradeLocked(err)
	}
}

func (s *Store) degradeLocked(cause error) {
	if s.degraded {
		return
	}
	s.degraded = true
	s.logger.Warn().Err(cause).Msg("identity storage unavailable, keeping identity in memory")
	if s.onDegraded != nil {
		s.onDegraded(cause)
	}
}

// Package credstore provides durable key/value storage for the session
// credentials: access token, refresh token, and the cached user identity.
// All storage I/O is best-effort; a failing disk never fails the caller.
package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Kind names one stored credential.
type Kind string

const (
	// AccessToken is the short-lived bearer token.
	AccessToken Kind = "access_token"
	// RefreshToken is the long-lived token used only for refresh.
	RefreshToken Kind = "refresh_token"
	// User is the cached user identity, stored as JSON.
	User Kind = "user"
)

// legacyKeys are storage keys written by earlier client versions. They are
// purged on ClearAll so a dead session cannot resurrect from stale state.
var legacyKeys = []string{"token", "jwt", "auth_user"}

const fileName = "credentials.json"

// Store is a file-backed credential store. Every mutation persists
// immediately and notifies subscribers with the mutated Kind.
type Store struct {
	path string
	log  *zap.Logger

	mu      sync.Mutex
	values  map[string]string
	subs    map[int]func(Kind)
	nextSub int
}

// New opens (or initializes) the credential store in dir. A missing or
// unreadable file yields an empty store, never an error.
func New(dir string, log *zap.Logger) *Store {
	s := &Store{
		path:   filepath.Join(dir, fileName),
		log:    log,
		values: make(map[string]string),
		subs:   make(map[int]func(Kind)),
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		log.Debug("credential file malformed, starting empty", zap.Error(err))
		s.values = make(map[string]string)
	}
	return s
}

// Get returns the stored value for kind, or "" when absent.
func (s *Store) Get(kind Kind) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[string(kind)]
}

// Set stores value under kind and notifies subscribers.
func (s *Store) Set(kind Kind, value string) {
	s.mu.Lock()
	s.values[string(kind)] = value
	s.persistLocked()
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(kind)
	}
}

// Clear removes the value stored under kind and notifies subscribers.
func (s *Store) Clear(kind Kind) {
	s.mu.Lock()
	delete(s.values, string(kind))
	s.persistLocked()
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(kind)
	}
}

// ClearAll removes every credential, including legacy key names, and
// notifies subscribers once per known Kind.
func (s *Store) ClearAll() {
	s.mu.Lock()
	for k := range s.values {
		delete(s.values, k)
	}
	for _, k := range legacyKeys {
		delete(s.values, k)
	}
	s.persistLocked()
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	for _, kind := range []Kind{AccessToken, RefreshToken, User} {
		for _, fn := range subs {
			fn(kind)
		}
	}
}

// Subscribe registers fn to be called with the Kind of every mutation.
// Other interested observers (a wishlist badge in another window, the
// session manager) watch credential changes through this. The returned
// function unsubscribes.
func (s *Store) Subscribe(fn func(Kind)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotSubsLocked() []func(Kind) {
	out := make([]func(Kind), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

// persistLocked writes the store to disk. Quota or permission failures are
// swallowed: credentials then live only for the process lifetime.
func (s *Store) persistLocked() {
	data, err := json.Marshal(s.values)
	if err != nil {
		s.log.Debug("cannot marshal credentials", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.log.Debug("cannot create state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.log.Debug("cannot persist credentials", zap.Error(err))
	}
}

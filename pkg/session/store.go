package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NERVsystems/ecoroute/pkg/cache"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

// Default store limits.
const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxSessions = 10000
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Store keeps the State of every live session. Sessions expire after the
// TTL without a dispatch. It is safe for concurrent use.
type Store struct {
	states *cache.TTLCache[State]
}

// NewStore creates a store. ttl <= 0 and maxSessions <= 0 use the defaults.
func NewStore(ttl time.Duration, maxSessions int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	cleanup := ttl / 2
	if cleanup > time.Minute {
		cleanup = time.Minute
	}

	return &Store{
		states: cache.NewTTLCache[State](ttl, cleanup, maxSessions),
	}
}

// Create starts a session in the initial state and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.states.Set(id, InitialState())
	return id
}

// Get returns the current state of a session.
func (s *Store) Get(id string) (State, error) {
	st, ok := s.states.Get(id)
	if !ok {
		return State{}, ErrNotFound
	}
	return st, nil
}

// Dispatch applies an action to a session and returns the new state.
// Concurrent dispatches to one session are applied one at a time.
func (s *Store) Dispatch(ctx context.Context, id string, a Action) (State, error) {
	tracing.AddEvent(ctx, "session.dispatch")
	tracing.SetAttributes(ctx, tracing.SessionAttributes(id, string(a.Type))...)

	next, ok := s.states.Update(id, func(current State, found bool) (State, bool) {
		if !found {
			return current, false
		}
		return Reduce(current, a), true
	})
	if !ok {
		return State{}, ErrNotFound
	}
	return next, nil
}

// Delete ends a session.
func (s *Store) Delete(id string) {
	s.states.Delete(id)
}

// Len returns the number of sessions held, including expired ones not yet
// cleaned up.
func (s *Store) Len() int {
	return s.states.Count()
}

// Close stops the background expiry loop.
func (s *Store) Close() {
	s.states.Stop()
}

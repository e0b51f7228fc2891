package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Factory builds a session for a new id.
type Factory func(id string) *Session

// Store keeps independent sessions in memory. Sessions idle for longer than
// the configured timeout are dropped.
type Store struct {
	cache   *cache.Cache
	factory Factory
}

// NewStore returns a Store. idle <= 0 disables expiry.
func NewStore(idle time.Duration, factory Factory) *Store {
	expiry, cleanup := cache.NoExpiration, time.Duration(0)
	if idle > 0 {
		expiry, cleanup = idle, idle/2
	}
	return &Store{cache: cache.New(expiry, cleanup), factory: factory}
}

// Create makes and registers a session with a fresh id.
func (st *Store) Create() *Session {
	s := st.factory(uuid.NewString())
	st.cache.SetDefault(s.ID(), s)
	return s
}

// Get returns the session for id and refreshes its idle timer.
func (st *Store) Get(id string) (*Session, bool) {
	x, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := x.(*Session)
	st.cache.SetDefault(id, s)
	return s, true
}

// Delete removes the session for id, reporting whether it existed.
func (st *Store) Delete(id string) bool {
	if _, ok := st.cache.Get(id); !ok {
		return false
	}
	st.cache.Delete(id)
	return true
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	return st.cache.ItemCount()
}

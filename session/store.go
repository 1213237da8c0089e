// Package session keeps the signed-in user and the post list last shown to
// them. Entries live in memory only; restarting the process signs everyone
// out.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/blogadmin/identity"
	"github.com/eringen/blogadmin/posts"
)

// Entry is one signed-in session.
type Entry struct {
	ID        string
	User      identity.Session
	CreatedAt time.Time

	// Posts is the list as last fetched for this session. It is a display
	// cache only and is never used as the base of a write.
	Posts          []posts.Post
	PostsFetchedAt time.Time
}

// Store is a process-wide, mutex-guarded map of sessions. Entries older
// than maxAge are treated as gone and dropped lazily.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	maxAge    time.Duration
	lastPrune time.Time
	now       func() time.Time
}

// NewStore creates an empty Store whose sessions expire maxAge after
// sign-in. A zero maxAge keeps sessions until Destroy.
func NewStore(maxAge time.Duration) *Store {
	return &Store{
		entries: make(map[string]*Entry),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Create registers user and returns the new session id.
func (s *Store) Create(user identity.Session) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.maxAge > 0 && now.Sub(s.lastPrune) > s.maxAge {
		s.prune(now)
	}
	s.entries[id] = &Entry{ID: id, User: user, CreatedAt: now}
	return id
}

// Get returns a copy of the entry for id. An expired entry is removed and
// reported as missing.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	if s.expired(e, s.now()) {
		delete(s.entries, id)
		return Entry{}, false
	}
	return *e, true
}

func (s *Store) expired(e *Entry, now time.Time) bool {
	return s.maxAge > 0 && now.Sub(e.CreatedAt) > s.maxAge
}

// prune drops every expired entry. Callers hold s.mu.
func (s *Store) prune(now time.Time) {
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
		}
	}
	s.lastPrune = now
}

// SetPosts records the list last fetched for id. It reports false when the
// session no longer exists, e.g. after a logout raced the fetch.
func (s *Store) SetPosts(id string, list []posts.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.Posts = append([]posts.Post(nil), list...)
	e.PostsFetchedAt = s.now()
	return true
}

// Destroy removes the session. Destroying an unknown id is a no-op.
func (s *Store) Destroy(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

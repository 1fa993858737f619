package sessionpool

import (
	"sync"
	"time"
)

// blankURL is the location of a freshly created page.
const blankURL = "about:blank"

// Session binds an id to one live resource owned by the pool.
type Session struct {
	id        string
	resource  Resource
	createdAt time.Time

	mu         sync.Mutex
	lastUsedAt time.Time
	currentURL string
}

func newSession(id string, res Resource, now time.Time) *Session {
	return &Session{
		id:         id,
		resource:   res,
		createdAt:  now,
		lastUsedAt: now,
		currentURL: blankURL,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Driver returns the page capability of the session's resource.
func (s *Session) Driver() PageDriver {
	return s.resource.Driver()
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastUsedAt returns the time of the last successful operation.
func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

// CurrentURL returns the cached last-known page URL.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// SetCurrentURL records the URL after a navigation-class operation.
func (s *Session) SetCurrentURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentURL = url
}

// touch moves lastUsedAt forward; it never moves it back.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastUsedAt) {
		s.lastUsedAt = now
	}
}

// Info returns a snapshot of the session's metadata.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.id,
		CurrentURL: s.currentURL,
		CreatedAt:  s.createdAt,
		LastUsedAt: s.lastUsedAt,
	}
}

// SessionInfo contains metadata about a session.
type SessionInfo struct {
	ID         string
	CurrentURL string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

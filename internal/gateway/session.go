package gateway

import (
	"sync"
	"time"
)

// Session is the externally issued credential set. The client consumes
// sessions, it never mints or refreshes them itself.
type Session struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// SessionSource exposes the current session and change notification. Absence
// of a session means no mutations are permitted.
type SessionSource interface {
	Current() (Session, bool)
	OnChange(fn func(Session, bool)) (cancel func())
}

// StaticSession wraps a long-lived token (service key or pre-issued JWT) as a
// SessionSource that never changes.
type StaticSession struct {
	Session Session
}

func (s StaticSession) Current() (Session, bool) {
	if s.Session.AccessToken == "" {
		return Session{}, false
	}
	return s.Session, true
}

func (s StaticSession) OnChange(func(Session, bool)) (cancel func()) {
	return func() {}
}

// MemorySession is a settable source. The auth collaborator pushes refreshed
// sessions into it; tests flip it to exercise the no-session path.
type MemorySession struct {
	mu      sync.Mutex
	session Session
	ok      bool
	subs    map[int]func(Session, bool)
	nextSub int
}

func NewMemorySession() *MemorySession {
	return &MemorySession{subs: map[int]func(Session, bool){}}
}

func (m *MemorySession) Set(s Session, ok bool) {
	m.mu.Lock()
	m.session, m.ok = s, ok
	fns := make([]func(Session, bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s, ok)
	}
}

func (m *MemorySession) Clear() { m.Set(Session{}, false) }

func (m *MemorySession) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.ok
}

func (m *MemorySession) OnChange(fn func(Session, bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

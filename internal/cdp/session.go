package cdp

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	cerrors "chromecontrol/internal/errors"
)

// Purpose names why a persistent session exists, so the spec's invariant
// "at most one persistent session per (target id, purpose) tuple" has
// something concrete to key on.
type Purpose string

const (
	PurposeInterception Purpose = "interception"
	PurposeHAR          Purpose = "har"
)

// Session is a bound (target id, CDP channel) pair (spec.md §3). Ephemeral
// sessions are reaped after ephemeralTTL of inactivity; persistent sessions
// live until explicitly closed by their owner (the Interception Engine).
type Session struct {
	TargetID  target.ID
	Persistent bool
	Purpose   Purpose

	ctx    context.Context
	cancel context.CancelFunc
	lastUse time.Time
}

// Context returns the chromedp context bound to this session; callers issue
// commands with chromedp.Run(session.Context(), ...).
func (s *Session) Context() context.Context { return s.ctx }

const ephemeralTTL = 30 * time.Second

type ephemeralEntry struct {
	session *Session
}

type persistentKey struct {
	target  target.ID
	purpose Purpose
}

// Manager implements C3: an ephemeral session cache (one entry per target,
// LRU-ish by TTL) and a persistent session table (explicit lifetime, keyed
// by (target, purpose)).
type Manager struct {
	mu         sync.Mutex
	root       context.Context
	ephemeral  map[target.ID]*ephemeralEntry
	persistent map[persistentKey]*Session
}

// NewManager creates a session manager bound to the root browser context
// that every per-target chromedp.NewContext call branches from.
func NewManager(rootCtx context.Context) *Manager {
	m := &Manager{
		root:       rootCtx,
		ephemeral:  make(map[target.ID]*ephemeralEntry),
		persistent: make(map[persistentKey]*Session),
	}
	go m.reapLoop()
	return m
}

func (m *Manager) newTargetContext(id target.ID) (context.Context, context.CancelFunc) {
	ctx, cancel := chromedp.NewContext(m.root, chromedp.WithTargetID(id))
	return ctx, cancel
}

// Ephemeral returns the existing ephemeral session for a target if one is
// live, otherwise creates one. Obtaining an ephemeral session for a target
// that already has one returns the existing one, per spec.md §4.3.
func (m *Manager) Ephemeral(id target.ID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.ephemeral[id]; ok {
		entry.session.lastUse = time.Now()
		return entry.session
	}

	ctx, cancel := m.newTargetContext(id)
	s := &Session{TargetID: id, ctx: ctx, cancel: cancel, lastUse: time.Now()}
	m.ephemeral[id] = &ephemeralEntry{session: s}
	return s
}

// CloseEphemeral closes and forgets the ephemeral session for a target, if
// any. Closing is idempotent.
func (m *Manager) CloseEphemeral(id target.ID) {
	m.mu.Lock()
	entry, ok := m.ephemeral[id]
	delete(m.ephemeral, id)
	m.mu.Unlock()
	if ok {
		entry.session.cancel()
	}
}

// AcquirePersistent creates a persistent session for (target, purpose) if
// one does not already exist and returns it with true; otherwise it returns
// the existing session and false, never an error. The caller (the
// Interception Engine) decides what "already active" means for its own
// modes. This method only enforces the structural invariant: one session
// per (target, purpose).
func (m *Manager) AcquirePersistent(id target.ID, purpose Purpose) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := persistentKey{target: id, purpose: purpose}
	if s, ok := m.persistent[key]; ok {
		return s, false
	}

	ctx, cancel := m.newTargetContext(id)
	s := &Session{TargetID: id, Persistent: true, Purpose: purpose, ctx: ctx, cancel: cancel}
	m.persistent[key] = s
	return s, true
}

// ClosePersistent detaches all event subscribers and closes the channel for
// a (target, purpose) persistent session. Closing is idempotent.
func (m *Manager) ClosePersistent(id target.ID, purpose Purpose) {
	m.mu.Lock()
	key := persistentKey{target: id, purpose: purpose}
	s, ok := m.persistent[key]
	delete(m.persistent, key)
	m.mu.Unlock()
	if ok {
		s.cancel()
	}
}

// PersistentSessionsFor returns every purpose currently holding a persistent
// session on a target, used by shutdown/drain code paths.
func (m *Manager) PersistentSessionsFor(id target.ID) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for key, s := range m.persistent {
		if key.target == id {
			out = append(out, s)
		}
	}
	return out
}

// CloseAll tears down every ephemeral and persistent session. Called on
// BrowserInstance teardown (spec.md §3 "transitioning from connected to
// disconnected clears all downstream state atomically").
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.ephemeral {
		entry.session.cancel()
		delete(m.ephemeral, id)
	}
	for key, s := range m.persistent {
		s.cancel()
		delete(m.persistent, key)
	}
}

func (m *Manager) reapLoop() {
	ticker := time.NewTicker(ephemeralTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		now := time.Now()
		for id, entry := range m.ephemeral {
			if now.Sub(entry.session.lastUse) > ephemeralTTL {
				entry.session.cancel()
				delete(m.ephemeral, id)
			}
		}
		m.mu.Unlock()
	}
}

// RequireSession is a small helper tool handlers use to fail with a
// structured transport-gone error instead of a nil pointer dereference when
// a session's underlying context has already been cancelled.
func RequireSession(s *Session) error {
	if s == nil || s.ctx == nil {
		return cerrors.New(cerrors.TransportGone, "session has no live channel")
	}
	select {
	case <-s.ctx.Done():
		return cerrors.New(cerrors.TransportGone, "session channel closed")
	default:
		return nil
	}
}

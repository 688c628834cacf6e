// Package session keeps one storefront state per visitor and serializes the
// visitor's requests.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/domain/cart"
	"github.com/xenking/petshop-storefront/internal/domain/catalog"
	"github.com/xenking/petshop-storefront/internal/domain/consent"
	"github.com/xenking/petshop-storefront/internal/domain/navigation"
	"github.com/xenking/petshop-storefront/internal/domain/search"
	"github.com/xenking/petshop-storefront/internal/storage"
	"github.com/xenking/petshop-storefront/internal/userstore"
)

// Session is the state of one visitor. All access goes through Do.
type Session struct {
	ID string

	mu       sync.Mutex
	ctrl     *navigation.Controller
	grant    *userstore.Grant
	flash    string
	lastSeen time.Time
}

// Do runs fn with the session locked.
func (s *Session) Do(fn func(c *navigation.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

// SetGrant stores the pending password reset grant. Must be called inside Do.
func (s *Session) SetGrant(g *userstore.Grant) { s.grant = g }

// Grant returns the pending password reset grant. Must be called inside Do.
func (s *Session) Grant() (userstore.Grant, bool) {
	if s.grant == nil {
		return userstore.Grant{}, false
	}
	return *s.grant, true
}

// Flash stores a notice for the next full page render. Must be called
// inside Do.
func (s *Session) Flash(notice string) { s.flash = notice }

// TakeFlash returns and clears the pending notice. Must be called inside Do.
func (s *Session) TakeFlash() string {
	n := s.flash
	s.flash = ""
	return n
}

// Purger deletes stored visitor data older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls session lifetime.
type Config struct {
	// IdleTimeout evicts in-memory sessions not seen for this long.
	IdleTimeout time.Duration `default:"30m"`
	// Retention deletes stored data older than this when the backend
	// supports it. Zero keeps data forever.
	Retention time.Duration `default:"0"`
}

// Manager hands out sessions by id.
type Manager struct {
	backend storage.Backend
	gen     *catalog.Generator
	engine  *search.Engine
	cfg     Config
	lg      *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(
	backend storage.Backend,
	gen *catalog.Generator,
	engine *search.Engine,
	cfg Config,
	lg *zap.Logger,
) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Manager{
		backend:  backend,
		gen:      gen,
		engine:   engine,
		cfg:      cfg,
		lg:       lg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// ValidID reports whether id is a well-formed session id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Acquire returns the session for id, creating and hydrating it when it is
// not cached. An invalid id gets a fresh session; the returned session's ID
// is the one to hand back to the visitor.
//
// Hydration outlives the request context. A session whose stored state could
// not be read serves the current request from memory and is not cached, so
// the next Acquire loads it again.
func (m *Manager) Acquire(ctx context.Context, id string) *Session {
	if !ValidID(id) {
		id = uuid.NewString()
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		// Locked before it is published so concurrent requests for the same
		// new id wait until hydration completes.
		s = &Session{ID: id}
		s.mu.Lock()
		m.sessions[id] = s
	}
	s.lastSeen = m.now()
	m.mu.Unlock()

	if !ok {
		ctrl, err := m.hydrate(context.WithoutCancel(ctx), id)
		s.ctrl = ctrl
		if err != nil {
			m.lg.Warn("Session state not loaded, serving from memory",
				zap.String("session", id), zap.Error(err))
			m.forget(id, s)
		}
		s.mu.Unlock()
	}
	return s
}

func (m *Manager) forget(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[id] == s {
		delete(m.sessions, id)
	}
}

func (m *Manager) hydrate(ctx context.Context, id string) (*navigation.Controller, error) {
	lg := m.lg.With(zap.String("session", id))
	kv := m.backend.Namespace(id)

	c := cart.NewStore(kv, lg)
	cartErr := c.Hydrate(ctx)
	g := consent.NewGate(kv, consent.WithLogger(lg))
	gateErr := g.Hydrate(ctx)
	return navigation.NewController(m.gen, m.engine, c, g, lg), errors.Join(cartErr, gateErr)
}

// Len returns the number of cached sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle longer than IdleTimeout.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions and purges expired stored data until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(max(m.cfg.IdleTimeout/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.lg.Debug("Evicted idle sessions", zap.Int("count", n))
			}
			if err := m.purge(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.lg.Warn("Purge stored sessions", zap.Error(err))
			}
		}
	}
}

func (m *Manager) purge(ctx context.Context) error {
	p, ok := m.backend.(Purger)
	if !ok || m.cfg.Retention <= 0 {
		return nil
	}
	n, err := p.Purge(ctx, m.now().Add(-m.cfg.Retention))
	if err != nil {
		return err
	}
	if n > 0 {
		m.lg.Info("Purged stored session data", zap.Int64("rows", n))
	}
	return nil
}

// Package authctx holds per-client authentication state: the current user,
// its session and the persisted resume marker. It is an explicit injected
// object, not a singleton, so several independent clients can coexist in
// one process.
package authctx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fuelgrid/gridauth/internal/auth"
	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/session"
)

// Marker is the only thing persisted between application loads: the email,
// the session token and when it was saved. Never the password.
type Marker struct {
	Email   string    `json:"email"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

// MarkerStore persists the resume marker.
type MarkerStore interface {
	Save(m Marker) error
	Load() (Marker, bool, error)
	Clear() error
}

// MemoryMarkerStore keeps the marker in memory; tests and embedded use.
type MemoryMarkerStore struct {
	mu     sync.Mutex
	marker Marker
	set    bool
}

func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{}
}

func (s *MemoryMarkerStore) Save(m Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = m
	s.set = true
	return nil
}

func (s *MemoryMarkerStore) Load() (Marker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker, s.set, nil
}

func (s *MemoryMarkerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = Marker{}
	s.set = false
	return nil
}

// markerMaxAge bounds silent resume: a marker older than the access window
// forces a fresh login.
const markerMaxAge = 8 * time.Hour

// Context is the process-wide current-user holder. Login, Logout and
// Resume are its only writers; permission queries are synchronous reads.
type Context struct {
	svc     *auth.Service
	markers MarkerStore
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	loading bool
	user    *roles.ResolvedUser
	sess    *models.Session
	token   string
}

type Option func(*Context)

func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}

func New(svc *auth.Service, markers MarkerStore, opts ...Option) *Context {
	c := &Context{
		svc:     svc,
		markers: markers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// begin starts an asynchronous auth operation and returns its generation.
// A completion whose generation is stale (a newer operation started while
// it was in flight) is dropped instead of clobbering newer state.
func (c *Context) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.loading = true
	return c.gen
}

// commit applies the state mutation only if no newer operation has begun.
func (c *Context) commit(gen uint64, apply func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	apply()
	c.loading = false
	return true
}

// Login authenticates and makes the user current. The marker is persisted
// before in-memory state changes, so a crash between the two never leaves
// a current user without a resumable marker.
func (c *Context) Login(ctx context.Context, email, password string) error {
	gen := c.begin()

	user, sess, token, err := c.svc.Authenticate(ctx, email, password)
	if err != nil {
		_ = c.markers.Clear()
		c.commit(gen, func() {
			c.user = nil
			c.sess = nil
			c.token = ""
		})
		return err
	}

	if err := c.markers.Save(Marker{
		Email:   user.User.Email,
		Token:   token,
		SavedAt: c.now(),
	}); err != nil {
		c.commit(gen, func() {
			c.user = nil
			c.sess = nil
			c.token = ""
		})
		return err
	}

	c.commit(gen, func() {
		c.user = user
		c.sess = sess
		c.token = token
	})
	return nil
}

// Logout invalidates the current session and clears all local state.
func (c *Context) Logout(ctx context.Context) {
	gen := c.begin()

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess != nil {
		_ = c.svc.Sessions().Invalidate(ctx, sess.ID)
	}
	_ = c.markers.Clear()

	c.commit(gen, func() {
		c.user = nil
		c.sess = nil
		c.token = ""
	})
}

// Resume restores the session from the persisted marker. The marker must
// be younger than the access window, the session must validate against the
// store, and the user is re-fetched fresh; any failure clears the marker
// and leaves the context logged out.
func (c *Context) Resume(ctx context.Context) error {
	gen := c.begin()

	reset := func() {
		_ = c.markers.Clear()
		c.commit(gen, func() {
			c.user = nil
			c.sess = nil
			c.token = ""
		})
	}

	marker, ok, err := c.markers.Load()
	if err != nil || !ok {
		reset()
		return err
	}
	if c.now().Sub(marker.SavedAt) >= markerMaxAge {
		reset()
		return nil
	}

	claims, err := c.svc.Sessions().Parse(marker.Token)
	if err != nil {
		reset()
		return nil
	}

	sess, err := c.svc.Sessions().Validate(ctx, claims.SessionID)
	if err != nil {
		reset()
		if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrSessionInvalid) {
			return nil
		}
		return err
	}

	user, err := c.svc.CurrentUser(ctx, sess.UserID)
	if err != nil {
		reset()
		return err
	}

	c.commit(gen, func() {
		c.user = user
		c.sess = sess
		c.token = marker.Token
	})
	return nil
}

// User returns the current user, or nil when logged out.
func (c *Context) User() *roles.ResolvedUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Session returns the current session, or nil.
func (c *Context) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Loading reports whether a login/resume round trip is in flight.
func (c *Context) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Context) HasPermission(perm string) bool {
	return roles.HasPermission(c.User(), perm)
}

func (c *Context) IsAdmin() bool {
	return roles.IsAdmin(c.User())
}

func (c *Context) MenuVisibility() roles.MenuVisibility {
	return roles.Visibility(c.User())
}

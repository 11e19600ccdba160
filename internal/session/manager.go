// Package session owns the session lifecycle: issuance, expiry, refresh and
// invalidation. A session lives in the store; a signed token carrying
// (user, tenant, session, expiry) travels with the client so validity can be
// pre-checked without a lookup.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/storage"
)

var (
	// ErrSessionExpired: the access window passed but the session is still
	// refreshable.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid: deactivated or past its refresh ceiling. The caller
	// must drop local state and require a fresh login.
	ErrSessionInvalid = errors.New("session invalid")
)

type State int

const (
	StateActive State = iota
	StateExpired
	StateInvalid
)

type Manager struct {
	store      storage.Storage
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Manager)

// WithClock overrides the manager's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store storage.Storage, secret string, accessTTL, refreshTTL time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates and persists a new active session and returns it with its
// signed token. The refresh ceiling is fixed here and never moves.
func (m *Manager) Issue(ctx context.Context, userID, tenantID string) (*models.Session, string, error) {
	now := m.now()
	sess := &models.Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		TenantID:         tenantID,
		IssuedAt:         now,
		ExpiresAt:        now.Add(m.accessTTL),
		RefreshExpiresAt: now.Add(m.refreshTTL),
		Active:           true,
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := m.Token(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Token signs the lightweight companion token for a session.
func (m *Manager) Token(sess *models.Session) (string, error) {
	claims := models.Claims{
		UserID:    sess.UserID,
		TenantID:  sess.TenantID,
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			NotBefore: jwt.NewNumericDate(sess.IssuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

// Parse verifies a token's signature and returns its claims. Expiry of the
// underlying session is judged against the store, not the token, so an
// expired-but-refreshable token still parses.
func (m *Manager) Parse(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSessionInvalid
		}
		return []byte(m.secret), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if !token.Valid {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

// StateOf derives the session state from the clock and the active flag.
func (m *Manager) StateOf(sess *models.Session) State {
	now := m.now()
	if !sess.Active || !now.Before(sess.RefreshExpiresAt) {
		return StateInvalid
	}
	if !now.Before(sess.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// Validate loads a session and requires it to be in the Active state.
// An Invalid session is deactivated in the store as a side effect.
func (m *Manager) Validate(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	switch m.StateOf(sess) {
	case StateActive:
		return sess, nil
	case StateExpired:
		return nil, ErrSessionExpired
	default:
		if sess.Active {
			_ = m.store.DeactivateSession(ctx, sess.ID)
		}
		return nil, ErrSessionInvalid
	}
}

// Refresh slides the access window forward and returns the session with a
// fresh token. The new expiry never passes the refresh ceiling. Refreshing
// an Invalid session is a hard failure.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (*models.Session, string, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, "", ErrSessionInvalid
		}
		return nil, "", err
	}

	if m.StateOf(sess) == StateInvalid {
		if sess.Active {
			_ = m.store.DeactivateSession(ctx, sess.ID)
		}
		return nil, "", ErrSessionInvalid
	}

	expires := m.now().Add(m.accessTTL)
	if expires.After(sess.RefreshExpiresAt) {
		expires = sess.RefreshExpiresAt
	}
	sess.ExpiresAt = expires

	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := m.Token(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Invalidate deactivates one session (logout).
func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	err := m.store.DeactivateSession(ctx, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return ErrSessionInvalid
	}
	return err
}

// InvalidateAll deactivates every session of a user, used on password
// change.
func (m *Manager) InvalidateAll(ctx context.Context, userID string) error {
	return m.store.DeactivateUserSessions(ctx, userID)
}

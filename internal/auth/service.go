// Package auth implements the authentication flows: credential
// verification, fresh role resolution and session issuance. Every failure
// is one of a small set of sentinel errors so callers handle each case
// explicitly.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/fuelgrid/gridauth/internal/credentials"
	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/session"
	"github.com/fuelgrid/gridauth/internal/storage"
)

var (
	// ErrInvalidCredentials covers user-not-found, inactive account and
	// wrong password alike, so responses cannot be used to enumerate users.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrStoreUnavailable: the backing store failed. Access is refused
	// outright; there is no cached or fallback identity.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

type Service struct {
	store      storage.Storage
	sessions   *session.Manager
	bcryptCost int
}

func NewService(store storage.Storage, sessions *session.Manager, bcryptCost int) *Service {
	return &Service{
		store:      store,
		sessions:   sessions,
		bcryptCost: bcryptCost,
	}
}

func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Authenticate verifies the credentials, resolves the role fresh from the
// store and issues a session. Legacy-scheme matches are rehashed with
// bcrypt before the session is issued.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*roles.ResolvedUser, *models.Session, string, error) {
	if email == "" || password == "" {
		return nil, nil, "", ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil, "", ErrInvalidCredentials
		}
		return nil, nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.Status != models.StatusActive {
		return nil, nil, "", ErrInvalidCredentials
	}

	ok, needsRehash := credentials.Verify(user, password)
	if !ok {
		return nil, nil, "", ErrInvalidCredentials
	}

	if needsRehash {
		if hash, err := credentials.Hash(password, s.bcryptCost); err == nil {
			// Best effort; the legacy hash still works next login.
			_ = s.store.UpdateUserPassword(ctx, user.ID, hash)
		}
	}

	resolved := roles.ResolveUser(user)

	sess, token, err := s.sessions.Issue(ctx, user.ID, user.TenantID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	_ = s.store.UpdateUserLastLogin(ctx, user.ID)

	return resolved, sess, token, nil
}

// CurrentUser re-fetches a user and re-resolves its role from the store.
// It is called on every session re-validation so role and permission
// changes take effect without waiting for token expiry.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*roles.ResolvedUser, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.Status != models.StatusActive {
		return nil, ErrInvalidCredentials
	}
	return roles.ResolveUser(user), nil
}

// ChangePassword verifies the current password, stores a bcrypt hash of
// the new one and invalidates every session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, current, updated string) error {
	if updated == "" {
		return ErrInvalidCredentials
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if ok, _ := credentials.Verify(user, current); !ok {
		return ErrInvalidCredentials
	}

	hash, err := credentials.Hash(updated, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := s.sessions.InvalidateAll(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// UpdateDisplayName persists a changed display name.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) error {
	err := s.store.UpdateUserDisplayName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

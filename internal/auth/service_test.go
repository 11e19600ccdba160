package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fuelgrid/gridauth/internal/auth"
	"github.com/fuelgrid/gridauth/internal/credentials"
	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
	"github.com/fuelgrid/gridauth/internal/session"
	"github.com/fuelgrid/gridauth/internal/storage"
)

const testCost = 4

func newService(t *testing.T) (*auth.Service, *storage.InMemoryStorage) {
	t.Helper()
	store := storage.NewInMemoryStorage()
	sessions := session.NewManager(store, "test-secret", 8*time.Hour, 30*24*time.Hour)
	return auth.NewService(store, sessions, testCost), store
}

func seedUser(t *testing.T, store *storage.InMemoryStorage, email, password, roleCode string) *models.User {
	t.Helper()
	ctx := context.Background()

	hash, err := credentials.Hash(password, testCost)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	user := &models.User{
		ID:           "u-" + email,
		TenantID:     "t-1",
		Email:        email,
		Status:       models.StatusActive,
		PasswordHash: hash,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}

	if roleCode != "" {
		role := &models.Role{Code: roleCode, Name: roles.DisplayName(roleCode)}
		if err := store.CreateRole(ctx, role); err != nil {
			t.Fatalf("CreateRole() error: %v", err)
		}
		if err := store.AssignRole(ctx, user.ID, role.ID, 0); err != nil {
			t.Fatalf("AssignRole() error: %v", err)
		}
	}
	return user
}

func TestAuthenticate_Success(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "operator@example.com", "secret-pass", roles.CodeOperator)

	user, sess, token, err := svc.Authenticate(context.Background(), "operator@example.com", "secret-pass")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if user.Code != roles.CodeOperator {
		t.Errorf("role code = %q, want operator", user.Code)
	}
	if sess == nil || !sess.Active {
		t.Error("no active session issued")
	}
	if token == "" {
		t.Error("empty token")
	}
}

func TestAuthenticate_CaseInsensitiveEmail(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "operator@example.com", "secret-pass", roles.CodeOperator)

	if _, _, _, err := svc.Authenticate(context.Background(), "Operator@Example.COM", "secret-pass"); err != nil {
		t.Errorf("Authenticate() with differently-cased email: %v", err)
	}
}

func TestAuthenticate_GenericRejection(t *testing.T) {
	svc, store := newService(t)
	seedUser(t, store, "known@example.com", "secret-pass", "")

	inactive := seedUser(t, store, "inactive@example.com", "secret-pass", "")
	inactive.Status = models.StatusInactive
	if err := store.CreateUser(context.Background(), inactive); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown user", "nobody@example.com", "secret-pass"},
		{"wrong password", "known@example.com", "wrong"},
		{"inactive user", "inactive@example.com", "secret-pass"},
		{"empty password", "known@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := svc.Authenticate(context.Background(), tt.email, tt.password)
			if !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Errorf("error = %v, want ErrInvalidCredentials (one indistinguishable rejection)", err)
			}
		})
	}
}

// failingStore simulates a backing-store outage on user lookups.
type failingStore struct {
	storage.Storage
}

func (f *failingStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func (f *failingStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestAuthenticate_StoreOutageFailsSecure(t *testing.T) {
	store := &failingStore{Storage: storage.NewInMemoryStorage()}
	sessions := session.NewManager(store, "test-secret", 8*time.Hour, 30*24*time.Hour)
	svc := auth.NewService(store, sessions, testCost)

	_, _, _, err := svc.Authenticate(context.Background(), "any@example.com", "secret-pass")
	if !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable (no fallback identity)", err)
	}

	if _, err := svc.CurrentUser(context.Background(), "u-1"); !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Errorf("CurrentUser() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestAuthenticate_LegacyHashUpgraded(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user := &models.User{
		ID:         "u-legacy",
		TenantID:   "t-1",
		Email:      "legacy@example.com",
		Status:     models.StatusActive,
		LegacySalt: "abc",
		LegacyHash: credentials.LegacyDigest("secret-pass", "abc"),
	}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}

	if _, _, _, err := svc.Authenticate(ctx, "legacy@example.com", "secret-pass"); err != nil {
		t.Fatalf("Authenticate() with legacy hash: %v", err)
	}

	stored, err := store.GetUserByID(ctx, "u-legacy")
	if err != nil {
		t.Fatalf("GetUserByID() error: %v", err)
	}
	if stored.PasswordHash == "" {
		t.Error("legacy hash not upgraded to bcrypt on login")
	}
	if stored.LegacySalt != "" || stored.LegacyHash != "" {
		t.Error("legacy columns not cleared after upgrade")
	}

	// and the password still works through the new hash
	if _, _, _, err := svc.Authenticate(ctx, "legacy@example.com", "secret-pass"); err != nil {
		t.Errorf("Authenticate() after upgrade: %v", err)
	}
}

func TestChangePassword_InvalidatesAllSessions(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	user := seedUser(t, store, "manager@example.com", "old-pass", roles.CodePointManager)

	_, s1, _, err := svc.Authenticate(ctx, "manager@example.com", "old-pass")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	_, s2, _, err := svc.Authenticate(ctx, "manager@example.com", "old-pass")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "old-pass", "new-pass-123"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}

	for _, sess := range []string{s1.ID, s2.ID} {
		if _, err := svc.Sessions().Validate(ctx, sess); !errors.Is(err, session.ErrSessionInvalid) {
			t.Errorf("session %s usable after password change: %v", sess, err)
		}
	}

	if _, _, _, err := svc.Authenticate(ctx, "manager@example.com", "old-pass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Error("old password still accepted")
	}
	if _, _, _, err := svc.Authenticate(ctx, "manager@example.com", "new-pass-123"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, store := newService(t)
	user := seedUser(t, store, "manager@example.com", "old-pass", "")

	err := svc.ChangePassword(context.Background(), user.ID, "not-it", "new-pass-123")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("error = %v, want ErrInvalidCredentials", err)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	svc, store := newService(t)
	user := seedUser(t, store, "op@example.com", "secret-pass", "")
	ctx := context.Background()

	if err := svc.UpdateDisplayName(ctx, user.ID, "Иван Петров"); err != nil {
		t.Fatalf("UpdateDisplayName() error: %v", err)
	}

	stored, _ := store.GetUserByID(ctx, user.ID)
	if stored.DisplayName != "Иван Петров" {
		t.Errorf("DisplayName = %q", stored.DisplayName)
	}
}

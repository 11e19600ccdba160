package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fuelgrid/gridauth/internal/session"
	"github.com/fuelgrid/gridauth/internal/storage"
)

const (
	accessTTL  = 8 * time.Hour
	refreshTTL = 30 * 24 * time.Hour
)

// clock is an adjustable test clock.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newManager(t *testing.T) (*session.Manager, *clock, storage.Storage) {
	t.Helper()
	store := storage.NewInMemoryStorage()
	clk := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := session.NewManager(store, "test-secret", accessTTL, refreshTTL, session.WithClock(clk.Now))
	return m, clk, store
}

func TestIssue_ActiveSession(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	sess, token, err := m.Issue(ctx, "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned empty token")
	}

	if got := sess.ExpiresAt.Sub(sess.IssuedAt); got != accessTTL {
		t.Errorf("access window = %v, want %v", got, accessTTL)
	}
	if got := sess.RefreshExpiresAt.Sub(sess.IssuedAt); got != refreshTTL {
		t.Errorf("refresh window = %v, want %v", got, refreshTTL)
	}
	if m.StateOf(sess) != session.StateActive {
		t.Error("fresh session not Active")
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if claims.UserID != "u-1" || claims.TenantID != "t-1" || claims.SessionID != sess.ID {
		t.Errorf("claims = %+v, want user/tenant/session ids round-tripped", claims)
	}
}

func TestValidate_ExpiryBySheerClockPassage(t *testing.T) {
	m, clk, _ := newManager(t)
	ctx := context.Background()

	sess, _, err := m.Issue(ctx, "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// one second past the 8 hour window
	clk.Advance(accessTTL + time.Second)

	if _, err := m.Validate(ctx, sess.ID); !errors.Is(err, session.ErrSessionExpired) {
		t.Errorf("Validate() error = %v, want ErrSessionExpired", err)
	}
}

func TestRefresh_SlidesWindow(t *testing.T) {
	m, clk, _ := newManager(t)
	ctx := context.Background()

	sess, _, err := m.Issue(ctx, "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	clk.Advance(accessTTL + time.Minute) // expired, still refreshable

	refreshed, token, err := m.Refresh(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if token == "" {
		t.Fatal("Refresh() returned empty token")
	}
	if want := clk.Now().Add(accessTTL); !refreshed.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", refreshed.ExpiresAt, want)
	}
	if !refreshed.RefreshExpiresAt.Equal(sess.RefreshExpiresAt) {
		t.Error("refresh ceiling moved; it must stay fixed at first issuance")
	}
	if m.StateOf(refreshed) != session.StateActive {
		t.Error("refreshed session not Active")
	}
}

func TestRefresh_CappedAtCeiling(t *testing.T) {
	m, clk, _ := newManager(t)
	ctx := context.Background()

	sess, _, err := m.Issue(ctx, "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// refresh 4 hours before the ceiling: the new window would pass it
	clk.Advance(refreshTTL - 4*time.Hour)

	refreshed, _, err := m.Refresh(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if !refreshed.ExpiresAt.Equal(sess.RefreshExpiresAt) {
		t.Errorf("ExpiresAt = %v, want capped at ceiling %v", refreshed.ExpiresAt, sess.RefreshExpiresAt)
	}
}

func TestRefresh_PastCeilingFails(t *testing.T) {
	m, clk, store := newManager(t)
	ctx := context.Background()

	sess, _, err := m.Issue(ctx, "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	clk.Advance(refreshTTL + time.Second)

	if _, _, err := m.Refresh(ctx, sess.ID); !errors.Is(err, session.ErrSessionInvalid) {
		t.Fatalf("Refresh() error = %v, want ErrSessionInvalid", err)
	}

	// the invalid session was deactivated in the store as a side effect
	stored, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error: %v", err)
	}
	if stored.Active {
		t.Error("session still active after failed refresh past ceiling")
	}

	// and any subsequent validation behaves as "no current user"
	if _, err := m.Validate(ctx, sess.ID); !errors.Is(err, session.ErrSessionInvalid) {
		t.Errorf("Validate() error = %v, want ErrSessionInvalid", err)
	}
}

func TestInvalidate_Logout(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	sess, _, err := m.Issue(ctx, "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if err := m.Invalidate(ctx, sess.ID); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, err := m.Validate(ctx, sess.ID); !errors.Is(err, session.ErrSessionInvalid) {
		t.Errorf("Validate() after logout = %v, want ErrSessionInvalid", err)
	}
}

func TestInvalidateAll_BulkOnPasswordChange(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	s1, _, _ := m.Issue(ctx, "u-1", "t-1")
	s2, _, _ := m.Issue(ctx, "u-1", "t-1")
	other, _, _ := m.Issue(ctx, "u-2", "t-1")

	if err := m.InvalidateAll(ctx, "u-1"); err != nil {
		t.Fatalf("InvalidateAll() error: %v", err)
	}

	for _, id := range []string{s1.ID, s2.ID} {
		if _, err := m.Validate(ctx, id); !errors.Is(err, session.ErrSessionInvalid) {
			t.Errorf("Validate(%s) = %v, want ErrSessionInvalid", id, err)
		}
	}
	if _, err := m.Validate(ctx, other.ID); err != nil {
		t.Errorf("other user's session affected: %v", err)
	}
}

func TestParse_RejectsTamperedToken(t *testing.T) {
	m, _, _ := newManager(t)
	other := session.NewManager(storage.NewInMemoryStorage(), "other-secret", accessTTL, refreshTTL)

	_, token, err := m.Issue(context.Background(), "u-1", "t-1")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := other.Parse(token); !errors.Is(err, session.ErrSessionInvalid) {
		t.Errorf("Parse() with wrong secret = %v, want ErrSessionInvalid", err)
	}
}

func TestValidate_UnknownSession(t *testing.T) {
	m, _, _ := newManager(t)

	if _, err := m.Validate(context.Background(), "no-such-id"); !errors.Is(err, session.ErrSessionInvalid) {
		t.Errorf("Validate(unknown) = %v, want ErrSessionInvalid", err)
	}
}

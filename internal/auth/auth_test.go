package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clubdesk/internal/models"
	"clubdesk/internal/storage"
)

const testSecret = "test-secret"

func newTestService(t *testing.T) (*Service, *storage.BboltStorage) {
	t.Helper()
	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "auth_test.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewService(context.Background(), Config{
		Secret:      testSecret,
		TokenExpiry: time.Hour,
	}, store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, store
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{TokenExpiry: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing secret")
	}
	cfg.Secret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSignupAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)

	user, token, err := svc.Signup("newmember", "new@example.com", "password123")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if user.Role != models.RoleMember {
		t.Errorf("expected MEMBER role, got %s", user.Role)
	}
	if user.PasswordHash != "" {
		t.Error("signup response must not carry the password hash")
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	p, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if p.ID != user.ID || p.Role != models.RoleMember {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name                      string
		username, email, password string
	}{
		{"short username", "ab", "a@example.com", "password123"},
		{"bad username chars", "has space", "a@example.com", "password123"},
		{"bad email", "validname", "not-an-email", "password123"},
		{"short password", "validname", "a@example.com", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Signup(tc.username, tc.email, tc.password)
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}

	// Duplicate email surfaces as conflict, not validation
	if _, _, err := svc.Signup("original", "dup@example.com", "password123"); err != nil {
		t.Fatal(err)
	}
	_, _, err := svc.Signup("different", "dup@example.com", "password123")
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, store := newTestService(t)

	user, _, err := svc.Signup("loginuser", "login@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	got, token, err := svc.Login("login@example.com", "password123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}
	if token == "" {
		t.Error("expected a token")
	}

	if _, _, err := svc.Login("login@example.com", "wrongpass"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for wrong password, got %v", err)
	}
	if _, _, err := svc.Login("nobody@example.com", "password123"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for unknown email, got %v", err)
	}

	if _, err := store.SetUserActive(user.ID, false, "owner"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Login("login@example.com", "password123"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for deactivated account, got %v", err)
	}
}

func TestAuthenticate_DeactivatedAccount(t *testing.T) {
	svc, store := newTestService(t)

	user, token, err := svc.Signup("tobedisabled", "disable@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	// Warm the verification cache with a successful resolution
	if _, err := svc.Authenticate(token); err != nil {
		t.Fatal(err)
	}

	if _, err := store.SetUserActive(user.ID, false, "owner"); err != nil {
		t.Fatal(err)
	}

	// A cached, structurally valid token must not authorize a deactivated
	// account
	if _, err := svc.Authenticate(token); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized after deactivation, got %v", err)
	}
}

func TestAuthenticate_RoleFromCurrentRecord(t *testing.T) {
	svc, store := newTestService(t)

	user, token, err := svc.Signup("promoteme", "promote@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(token); err != nil {
		t.Fatal(err)
	}

	if _, err := store.PromoteToStaff(user.ID, "owner"); err != nil {
		t.Fatal(err)
	}

	// Old token, new role: the principal reflects the current record
	p, err := svc.Authenticate(token)
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != models.RoleStaff {
		t.Errorf("expected STAFF role from current record, got %s", p.Role)
	}
}

func TestAuthenticate_BadTokens(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Authenticate(""); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for empty token, got %v", err)
	}
	if _, err := svc.Authenticate("not.a.token"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for garbage token, got %v", err)
	}

	// Token signed with a different secret
	other, err := NewService(context.Background(), Config{Secret: "other", TokenExpiry: time.Hour}, svc.store)
	if err != nil {
		t.Fatal(err)
	}
	forged, err := other.IssueToken(models.Principal{ID: "x", Role: models.RoleOwner})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Authenticate(forged); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for forged token, got %v", err)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, token, err := svc.Signup("expiring", "expire@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Authenticate(token); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestAuthenticate_ExpiredCachedToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, token, err := svc.Signup("cachedexpiry", "cached@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}

	// Warm the verification cache while the token is still valid
	if _, err := svc.Authenticate(token); err != nil {
		t.Fatal(err)
	}

	// Past exp the cached entry must not keep authenticating
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.Authenticate(token); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for expired cached token, got %v", err)
	}
}

func TestBootstrapOwner(t *testing.T) {
	svc, store := newTestService(t)

	if err := svc.BootstrapOwner("owner", "owner@example.com", "ownerpass123"); err != nil {
		t.Fatalf("BootstrapOwner failed: %v", err)
	}
	user, err := store.GetUserByEmail("owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if user.Role != models.RoleOwner {
		t.Errorf("expected OWNER role, got %s", user.Role)
	}

	// Second call is a no-op
	if err := svc.BootstrapOwner("owner", "owner@example.com", "differentpass"); err != nil {
		t.Errorf("repeat bootstrap should be a no-op: %v", err)
	}
	if _, _, err := svc.Login("owner@example.com", "ownerpass123"); err != nil {
		t.Errorf("original credentials should still work: %v", err)
	}
}

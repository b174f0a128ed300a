package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/c-pro/geche"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"clubdesk/internal/content"
	"clubdesk/internal/models"
)

const DefaultTokenExpiry = 7 * 24 * time.Hour

// Store is the slice of persistent storage the auth service needs.
type Store interface {
	CreateUser(user models.User) (models.User, error)
	GetUser(id string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
}

type Config struct {
	Secret      string
	TokenExpiry time.Duration
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}
	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}
	return nil
}

// Service issues and verifies bearer credentials and resolves them to
// principals. Verified tokens are cached with a TTL, but the account's
// active flag is re-read from storage on every resolution: a structurally
// valid token for a deactivated account does not authorize anything.
type Service struct {
	Config
	store    Store
	verified geche.Geche[string, verifiedToken]
	now      func() time.Time
}

// verifiedToken is a cached signature-check result. ExpiresAt is the
// token's own exp claim; the cache TTL alone must not extend it.
type verifiedToken struct {
	UserID    string
	ExpiresAt time.Time
}

func NewService(ctx context.Context, config Config, store Store) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		Config:   config,
		store:    store,
		verified: geche.NewMapTTLCache[string, verifiedToken](ctx, config.TokenExpiry, time.Minute),
		now:      time.Now,
	}, nil
}

type claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Signup creates a member account and logs it in.
func (s *Service) Signup(username, email, password string) (models.User, string, error) {
	if err := content.ValidateUsername(username); err != nil {
		return models.User{}, "", &models.ValidationError{Field: "username", Constraint: err.Error()}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, "", &models.ValidationError{Field: "email", Constraint: "must be a valid email address"}
	}
	if len(password) < 8 || len(password) > 128 {
		return models.User{}, "", &models.ValidationError{Field: "password", Constraint: "must be 8-128 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.CreateUser(models.User{
		Username:         username,
		Email:            email,
		PasswordHash:     string(hash),
		Role:             models.RoleMember,
		MembershipStatus: models.MembershipNone,
		Active:           true,
	})
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.IssueToken(models.Principal{ID: user.ID, Role: user.Role})
	if err != nil {
		return models.User{}, "", err
	}
	user.PasswordHash = ""
	return user, token, nil
}

// BootstrapOwner ensures an owner account exists for the configured
// startup credentials. No-op when the email is already registered.
func (s *Service) BootstrapOwner(username, email, password string) error {
	if _, err := s.store.GetUserByEmail(email); err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.store.CreateUser(models.User{
		Username:         username,
		Email:            email,
		PasswordHash:     string(hash),
		Role:             models.RoleOwner,
		MembershipStatus: models.MembershipActive,
		Active:           true,
	})
	return err
}

// Login verifies credentials and issues a token. Wrong email, wrong
// password and deactivated account all collapse to ErrUnauthorized.
func (s *Service) Login(email, password string) (models.User, string, error) {
	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return models.User{}, "", models.ErrUnauthorized
	}
	if !user.Active {
		return models.User{}, "", models.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", models.ErrUnauthorized
	}

	token, err := s.IssueToken(models.Principal{ID: user.ID, Role: user.Role})
	if err != nil {
		slog.Error("failed to issue token", "user_id", user.ID, "error", err)
		return models.User{}, "", fmt.Errorf("failed to issue token: %w", err)
	}
	user.PasswordHash = ""
	return user, token, nil
}

// IssueToken signs a bearer credential for the principal.
func (s *Service) IssueToken(p models.Principal) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenExpiry)),
		},
	})
	return tok.SignedString([]byte(s.Secret))
}

// Authenticate resolves a bearer credential to a principal or fails with
// ErrUnauthorized. The signature check result is cached, but the token's
// exp claim is re-checked on every hit; the active check and the role are
// always taken from the current user record.
func (s *Service) Authenticate(token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, models.ErrUnauthorized
	}

	entry, err := s.verified.Get(token)
	if err != nil {
		entry, err = s.verifyToken(token)
		if err != nil {
			return models.Principal{}, models.ErrUnauthorized
		}
		s.verified.Set(token, entry)
	}
	if !s.now().Before(entry.ExpiresAt) {
		_ = s.verified.Del(token)
		return models.Principal{}, models.ErrUnauthorized
	}

	user, err := s.store.GetUser(entry.UserID)
	if err != nil || !user.Active {
		return models.Principal{}, models.ErrUnauthorized
	}
	return models.Principal{ID: user.ID, Role: user.Role}, nil
}

func (s *Service) verifyToken(token string) (verifiedToken, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.Secret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid || c.ExpiresAt == nil {
		return verifiedToken{}, models.ErrUnauthorized
	}
	return verifiedToken{UserID: c.Subject, ExpiresAt: c.ExpiresAt.Time}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/repository"
)

const (
	// MaxActiveAPIKeys caps unrevoked keys per user.
	MaxActiveAPIKeys = 10
	maxNameLength    = 100
)

// AccountStore persists users and their API keys.
type AccountStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetOrCreateGoogleUser(ctx context.Context, user *model.User) (*model.User, error)

	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id, userID string) error
}

// SignupInput is a credential sign-up request.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// IdentityEvictor drops cached API key identities.
type IdentityEvictor interface {
	EvictAPIKey(ctx context.Context, keyID string) error
}

// AccountService handles sign-up, sign-in and API key management.
type AccountService struct {
	store   AccountStore
	evictor IdentityEvictor
	logger  *slog.Logger
	now     func() time.Time
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService)

// WithIdentityEvictor makes revocation take effect before the identity
// cache entry expires.
func WithIdentityEvictor(e IdentityEvictor) AccountOption {
	return func(s *AccountService) {
		s.evictor = e
	}
}

// NewAccountService creates an AccountService.
func NewAccountService(store AccountStore, logger *slog.Logger, opts ...AccountOption) *AccountService {
	s := &AccountService{
		store:  store,
		logger: logger.With("component", "account"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates a credential account on the free plan.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, invalid("email", "email, password, and name are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email", "invalid email address")
	}
	if len(name) > maxNameLength {
		return nil, invalid("name", "name is too long")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, invalid("password", fmt.Sprintf("password must be at least %d characters long", auth.MinPasswordLength))
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Plan:         model.PlanFree,
		UsagePeriod:  model.UsagePeriodFor(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, invalid("email", "email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.DummyVerify(password)
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.HasPassword() {
		auth.DummyVerify(password)
		return nil, ErrInvalidLogin
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidLogin
	}
	return user, nil
}

// GoogleSignIn returns the account for a verified Google profile,
// creating it on first sign-in.
func (s *AccountService) GoogleSignIn(ctx context.Context, profile *auth.GoogleProfile) (*model.User, error) {
	if profile == nil || !profile.EmailVerified {
		return nil, ErrUnauthorized
	}

	now := s.now().UTC()
	user, err := s.store.GetOrCreateGoogleUser(ctx, &model.User{
		ID:          ulid.Make().String(),
		Email:       strings.ToLower(profile.Email),
		Name:        profile.Name,
		GoogleID:    profile.Subject,
		Plan:        model.PlanFree,
		UsagePeriod: model.UsagePeriodFor(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("google sign-in: %w", err)
	}
	return user, nil
}

// Me returns the caller's account.
func (s *AccountService) Me(ctx context.Context, id *model.Identity) (*model.User, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}
	user, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Now returns the service clock, used to render usage for the current month.
func (s *AccountService) Now() time.Time {
	return s.now()
}

// CreateAPIKey issues a personal API key. The plaintext is returned once.
func (s *AccountService) CreateAPIKey(ctx context.Context, id *model.Identity, name string) (*model.APIKeyCreateResponse, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		return nil, invalid("name", "name is too long")
	}

	existing, err := s.store.ListAPIKeysByUserID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	active := 0
	for _, k := range existing {
		if !k.IsRevoked() {
			active++
		}
	}
	if active >= MaxActiveAPIKeys {
		return nil, ErrTooManyAPIKeys
	}

	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		UserID:    id.UserID,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.logger.Info("api key created",
		"key_id", key.ID,
		"key_prefix", key.KeyPrefix,
		"user_id", key.UserID,
	)

	return &model.APIKeyCreateResponse{
		ID:        key.ID,
		Key:       generated.Plaintext,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	}, nil
}

// ListAPIKeys returns the caller's keys without secrets.
func (s *AccountService) ListAPIKeys(ctx context.Context, id *model.Identity) ([]model.APIKeyResponse, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}
	keys, err := s.store.ListAPIKeysByUserID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	out := make([]model.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.ToResponse())
	}
	return out, nil
}

// RevokeAPIKey revokes one of the caller's keys and evicts its cached
// identity. If eviction fails the entry still expires with its TTL.
func (s *AccountService) RevokeAPIKey(ctx context.Context, id *model.Identity, keyID string) error {
	if id == nil {
		return ErrUnauthorized
	}
	if keyID == "" {
		return invalid("key_id", "key id is required")
	}
	if err := s.store.RevokeAPIKey(ctx, keyID, id.UserID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("revoke api key: %w", err)
	}
	if s.evictor != nil {
		if err := s.evictor.EvictAPIKey(ctx, keyID); err != nil {
			s.logger.Warn("failed to evict cached identity", "key_id", keyID, "error", err)
		}
	}
	s.logger.Info("api key revoked", "key_id", keyID, "user_id", id.UserID)
	return nil
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/recast/recast/internal/model"
)

type fakeKeyStore struct {
	mu       sync.Mutex
	keys     []*model.APIKey
	users    map[string]*model.User
	lookups  int
	lastUsed chan string
}

func (s *fakeKeyStore) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	var out []*model.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && !k.IsRevoked() {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) UpdateAPIKeyLastUsed(_ context.Context, id string) error {
	if s.lastUsed != nil {
		s.lastUsed <- id
	}
	return nil
}

func (s *fakeKeyStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

type mapIdentityCache struct {
	mu sync.Mutex
	m  map[string]*model.Identity
}

func (c *mapIdentityCache) GetIdentity(_ context.Context, k string) (*model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[k], nil
}

func (c *mapIdentityCache) SetIdentity(_ context.Context, k string, id *model.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = id
	return nil
}

func newKeyFixture(t *testing.T) (*fakeKeyStore, string) {
	t.Helper()
	gen, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	store := &fakeKeyStore{
		keys: []*model.APIKey{{ID: "key1", UserID: "u1", KeyHash: gen.Hash, KeyPrefix: gen.Prefix}},
		users: map[string]*model.User{
			"u1": {ID: "u1", Email: "u1@example.com", Plan: model.PlanPro},
		},
		lastUsed: make(chan string, 4),
	}
	return store, gen.Plaintext
}

func TestAPIKeyAuthenticator(t *testing.T) {
	t.Parallel()

	store, key := newKeyFixture(t)
	cache := &mapIdentityCache{m: map[string]*model.Identity{}}
	a := NewAPIKeyAuthenticator(store, cache, nil)
	a.MinDuration = 0

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+key)

	id, err := a.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.UserID != "u1" || id.Plan != model.PlanPro || id.Method != model.AuthMethodAPIKey || id.KeyID != "key1" {
		t.Errorf("identity = %+v", id)
	}

	select {
	case got := <-store.lastUsed:
		if got != "key1" {
			t.Errorf("last used key = %q", got)
		}
	case <-time.After(time.Second):
		t.Error("last_used_at was not updated")
	}

	// Second call is served from cache.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("X-API-Key", key)
	if _, err := a.Authenticate(req2); err != nil {
		t.Fatalf("cached Authenticate() error = %v", err)
	}
	if store.lookups != 1 {
		t.Errorf("lookups = %d, want 1", store.lookups)
	}
}

func TestAPIKeyAuthenticator_Failures(t *testing.T) {
	t.Parallel()

	store, _ := newKeyFixture(t)
	a := NewAPIKeyAuthenticator(store, nil, nil)
	a.MinDuration = 0

	other, _ := GenerateAPIKey()

	tests := []struct {
		name    string
		header  string
		value   string
		wantErr error
	}{
		{"no header", "", "", ErrNoCredentials},
		{"malformed", "X-API-Key", "rk_live_nope", ErrInvalidKeyFormat},
		{"unknown key", "Authorization", "Bearer " + other.Plaintext, ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if _, err := a.Authenticate(req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	sessions := NewSessionManager("chain-secret", time.Hour, false)
	token, _ := sessions.Issue(testUser())
	store, key := newKeyFixture(t)
	apiKeys := NewAPIKeyAuthenticator(store, nil, nil)
	apiKeys.MinDuration = 0

	chain := Chain{NewSessionAuthenticator(sessions), apiKeys}

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		id, err := chain.Authenticate(req)
		if err != nil || id.Method != model.AuthMethodSession {
			t.Fatalf("Authenticate() = %+v, %v", id, err)
		}
	})

	t.Run("bearer jwt", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		id, err := chain.Authenticate(req)
		if err != nil || id.UserID != "01HUSER" {
			t.Fatalf("Authenticate() = %+v, %v", id, err)
		}
	})

	t.Run("bearer api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		id, err := chain.Authenticate(req)
		if err != nil || id.Method != model.AuthMethodAPIKey {
			t.Fatalf("Authenticate() = %+v, %v", id, err)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if _, err := chain.Authenticate(req); !errors.Is(err, ErrNoCredentials) {
			t.Fatalf("Authenticate() error = %v, want ErrNoCredentials", err)
		}
	})

	t.Run("bad cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
		if _, err := chain.Authenticate(req); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Authenticate() error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestContextIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || UserIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no identity")
	}

	ctx = ContextWithIdentity(ctx, &model.Identity{UserID: "u9"})
	if got := UserIDFromContext(ctx); got != "u9" {
		t.Errorf("UserIDFromContext() = %q, want u9", got)
	}
}

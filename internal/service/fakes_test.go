package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recast/recast/internal/generation"
	"github.com/recast/recast/internal/jobs"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/prompt"
	"github.com/recast/recast/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider answers per platform and counts calls.
type scriptedProvider struct {
	configured bool
	texts      map[prompt.Platform]string
	errs       map[prompt.Platform]error
	calls      atomic.Int64
}

func (p *scriptedProvider) Name() string     { return "scripted" }
func (p *scriptedProvider) Configured() bool { return p.configured }

func (p *scriptedProvider) Generate(_ context.Context, req generation.Request) (string, error) {
	p.calls.Add(1)
	if err := p.errs[req.Config.Platform]; err != nil {
		return "", err
	}
	if text, ok := p.texts[req.Config.Platform]; ok {
		return text, nil
	}
	return "Generated for " + string(req.Config.Platform), nil
}

func defaultProvider() *scriptedProvider {
	return &scriptedProvider{
		configured: true,
		texts: map[prompt.Platform]string{
			prompt.Twitter:   "Revenue up 40% 🚀 #growth\n---\n" + strings.Repeat("long ", 100) + "\n---\nThird post #q3",
			prompt.LinkedIn:  "Our Q3 results are in.\n\nWhat drove your growth? #business",
			prompt.Instagram: "Big quarter ✨\n\n#growth #q3",
		},
	}
}

type fakeFetcher struct {
	text  string
	err   error
	calls atomic.Int64
}

func (f *fakeFetcher) Fetch(context.Context, string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type fakeUsers struct {
	mu         sync.Mutex
	users      map[string]*model.User
	increments int
	incErr     error
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*model.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) IncrementUsage(_ context.Context, id string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return 0, f.incErr
	}
	f.increments++
	u, ok := f.users[id]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	period := model.UsagePeriodFor(now)
	if !u.UsagePeriod.Equal(period) {
		u.UsagePeriod = period
		u.UsageCount = 0
	}
	u.UsageCount++
	return u.UsageCount, nil
}

func (f *fakeUsers) incrementCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.increments
}

type capturePublisher struct {
	mu   sync.Mutex
	jobs []jobs.Payload
}

func (c *capturePublisher) PublishAsync(p jobs.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, p)
}

func (c *capturePublisher) published() []jobs.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]jobs.Payload(nil), c.jobs...)
}

// memoryAccounts is an in-memory AccountStore.
type memoryAccounts struct {
	mu    sync.Mutex
	users map[string]*model.User
	keys  map[string]*model.APIKey
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{users: map[string]*model.User{}, keys: map[string]*model.APIKey{}}
}

func (m *memoryAccounts) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryAccounts) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryAccounts) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryAccounts) GetOrCreateGoogleUser(ctx context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	for _, u := range m.users {
		if u.GoogleID == user.GoogleID || (u.GoogleID == "" && strings.EqualFold(u.Email, user.Email)) {
			u.GoogleID = user.GoogleID
			cp := *u
			m.mu.Unlock()
			return &cp, nil
		}
	}
	m.mu.Unlock()
	if err := m.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (m *memoryAccounts) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *memoryAccounts) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryAccounts) RevokeAPIKey(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.UserID != userID || k.IsRevoked() {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now()
	k.RevokedAt = &now
	return nil
}

var errUpstream = errors.New("upstream exploded")

//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/testutil"
)

func newTestRepo(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := testutil.TruncateTables(ctx, repo.Pool(), "content_jobs", "api_keys", "users"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return ctx, repo
}

func createUser(t *testing.T, ctx context.Context, repo *Repository) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func TestIntegrationMigrate_Idempotent(t *testing.T) {
	ctx, repo := newTestRepo(t)

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	for _, table := range []string{"users", "api_keys", "content_jobs"} {
		var exists bool
		err := repo.Pool().QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil || !exists {
			t.Errorf("table %q missing (err=%v)", table, err)
		}
	}
}

func TestIntegrationUser_CreateAndGet(t *testing.T) {
	ctx, repo := newTestRepo(t)
	user := createUser(t, ctx, repo)

	byID, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != user.Email || byID.Plan != model.PlanFree {
		t.Errorf("got %+v", byID)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "  "+user.Email+" ")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", byEmail, err)
	}

	dup := testutil.NewTestUser(t)
	dup.Email = user.Email
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate CreateUser error = %v, want ErrEmailExists", err)
	}

	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserByID(missing) error = %v", err)
	}
}

func TestIntegrationUser_IncrementUsageConcurrent(t *testing.T) {
	ctx, repo := newTestRepo(t)
	user := createUser(t, ctx, repo)
	now := time.Now()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementUsage(ctx, user.ID, now); err != nil {
				t.Errorf("IncrementUsage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.CurrentUsage(now) != n {
		t.Errorf("usage = %d, want %d", got.CurrentUsage(now), n)
	}

	// A new month restarts the counter.
	next := now.AddDate(0, 1, 0)
	count, err := repo.IncrementUsage(ctx, user.ID, next)
	if err != nil || count != 1 {
		t.Errorf("IncrementUsage(next month) = %d, %v; want 1", count, err)
	}
}

func TestIntegrationUser_GoogleLink(t *testing.T) {
	ctx, repo := newTestRepo(t)
	existing := createUser(t, ctx, repo)

	linked, err := repo.GetOrCreateGoogleUser(ctx, &model.User{
		ID:       "01HGOOGLE0000000000000000A",
		Email:    existing.Email,
		GoogleID: "g-1",
	})
	if err != nil {
		t.Fatalf("GetOrCreateGoogleUser failed: %v", err)
	}
	if linked.ID != existing.ID || linked.GoogleID != "g-1" {
		t.Errorf("linked = %+v, want existing user with google id", linked)
	}

	fresh := testutil.NewTestUser(t)
	fresh.GoogleID = "g-2"
	created, err := repo.GetOrCreateGoogleUser(ctx, fresh)
	if err != nil || created.ID != fresh.ID {
		t.Fatalf("GetOrCreateGoogleUser(new) = %+v, %v", created, err)
	}

	again, err := repo.GetOrCreateGoogleUser(ctx, &model.User{ID: "other", Email: "x@y.z", GoogleID: "g-2"})
	if err != nil || again.ID != fresh.ID {
		t.Errorf("second sign-in = %+v, %v; want %s", again, err, fresh.ID)
	}
}

func TestIntegrationAPIKey_Lifecycle(t *testing.T) {
	ctx, repo := newTestRepo(t)
	user := createUser(t, ctx, repo)
	key := testutil.NewTestAPIKey(t, user.ID)

	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	keys, err := repo.GetAPIKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil || len(keys) != 1 || keys[0].ID != key.ID {
		t.Fatalf("GetAPIKeysByPrefix = %v, %v", keys, err)
	}

	if err := repo.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed failed: %v", err)
	}

	if err := repo.RevokeAPIKey(ctx, key.ID, "someone-else"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("RevokeAPIKey(other user) error = %v, want ErrAPIKeyNotFound", err)
	}
	if err := repo.RevokeAPIKey(ctx, key.ID, user.ID); err != nil {
		t.Fatalf("RevokeAPIKey failed: %v", err)
	}
	if err := repo.RevokeAPIKey(ctx, key.ID, user.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("second RevokeAPIKey error = %v, want ErrAPIKeyNotFound", err)
	}

	keys, _ = repo.GetAPIKeysByPrefix(ctx, key.KeyPrefix)
	if len(keys) != 0 {
		t.Errorf("revoked key still returned by prefix lookup")
	}

	listed, err := repo.ListAPIKeysByUserID(ctx, user.ID)
	if err != nil || len(listed) != 1 || !listed[0].IsRevoked() || listed[0].LastUsedAt == nil {
		t.Errorf("ListAPIKeysByUserID = %v, %v", listed, err)
	}
}

func TestIntegrationContentJobs_InsertIdempotentAndList(t *testing.T) {
	ctx, repo := newTestRepo(t)
	user := createUser(t, ctx, repo)
	jobs := NewContentJobRepository(repo)

	first := testutil.NewTestContentJob(t, user.ID)
	second := testutil.NewTestContentJob(t, user.ID)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.SourceKind = model.SourceURL
	second.SourceURL = "https://example.com/post"
	second.Errors = map[string]string{"instagram": "boom"}

	if err := jobs.BulkInsert(ctx, []*model.ContentJob{first, second}); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	replay := *first
	replay.ID = "01HREPLAY0000000000000000A"
	if err := jobs.BulkInsert(ctx, []*model.ContentJob{&replay}); err != nil {
		t.Fatalf("replayed BulkInsert failed: %v", err)
	}

	listed, err := jobs.ListByUser(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("ListByUser returned %d jobs, want 2", len(listed))
	}
	if listed[0].ID != second.ID {
		t.Errorf("newest job = %s, want %s", listed[0].ID, second.ID)
	}
	if listed[0].SourceURL != second.SourceURL || listed[0].Errors["instagram"] != "boom" {
		t.Errorf("listed[0] = %+v", listed[0])
	}
	if len(listed[1].TargetPlatforms) != 2 || listed[1].Generated["twitter"] != "post" {
		t.Errorf("listed[1] = %+v", listed[1])
	}
}

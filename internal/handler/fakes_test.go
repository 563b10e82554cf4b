package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/service"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIdentity() *model.Identity {
	return &model.Identity{
		UserID: "01HUSER",
		Email:  "ada@example.com",
		Plan:   model.PlanFree,
		Method: model.AuthMethodSession,
	}
}

func withIdentity(r *http.Request, id *model.Identity) *http.Request {
	return r.WithContext(auth.ContextWithIdentity(r.Context(), id))
}

type stubRepurposer struct {
	result *service.RepurposeResult
	err    error
	gotIn  service.RepurposeInput
	calls  int
}

func (s *stubRepurposer) Repurpose(ctx context.Context, id *model.Identity, in service.RepurposeInput) (*service.RepurposeResult, error) {
	s.calls++
	s.gotIn = in
	return s.result, s.err
}

type stubAccounts struct {
	user      *model.User
	err       error
	gotSignup service.SignupInput
	gotEmail  string
	gotGoogle *auth.GoogleProfile
}

func (s *stubAccounts) Signup(ctx context.Context, in service.SignupInput) (*model.User, error) {
	s.gotSignup = in
	return s.user, s.err
}

func (s *stubAccounts) Login(ctx context.Context, email, password string) (*model.User, error) {
	s.gotEmail = email
	return s.user, s.err
}

func (s *stubAccounts) GoogleSignIn(ctx context.Context, profile *auth.GoogleProfile) (*model.User, error) {
	s.gotGoogle = profile
	return s.user, s.err
}

func (s *stubAccounts) Me(ctx context.Context, id *model.Identity) (*model.User, error) {
	if id == nil {
		return nil, service.ErrUnauthorized
	}
	return s.user, s.err
}

func (s *stubAccounts) Now() time.Time { return testNow }

type stubGoogle struct {
	consentURL string
	profile    *auth.GoogleProfile
	err        error
}

func (s *stubGoogle) Begin(w http.ResponseWriter) (string, error) {
	return s.consentURL, s.err
}

func (s *stubGoogle) Complete(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.GoogleProfile, error) {
	return s.profile, s.err
}

type stubKeys struct {
	created   *model.APIKeyCreateResponse
	list      []model.APIKeyResponse
	err       error
	revokedID string
	gotName   string
}

func (s *stubKeys) CreateAPIKey(ctx context.Context, id *model.Identity, name string) (*model.APIKeyCreateResponse, error) {
	s.gotName = name
	return s.created, s.err
}

func (s *stubKeys) ListAPIKeys(ctx context.Context, id *model.Identity) ([]model.APIKeyResponse, error) {
	if id == nil {
		return nil, service.ErrUnauthorized
	}
	return s.list, s.err
}

func (s *stubKeys) RevokeAPIKey(ctx context.Context, id *model.Identity, keyID string) error {
	if id == nil {
		return service.ErrUnauthorized
	}
	s.revokedID = keyID
	return s.err
}

type stubJobs struct {
	jobs     []*model.ContentJob
	err      error
	gotUser  string
	gotLimit int
}

func (s *stubJobs) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ContentJob, error) {
	s.gotUser = userID
	s.gotLimit = limit
	return s.jobs, s.err
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

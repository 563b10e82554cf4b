package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateCookie = "recast_oauth_state"
	oauthStateTTL    = 10 * time.Minute

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var (
	// ErrOAuthDisabled indicates Google sign-in has no client credentials.
	ErrOAuthDisabled = errors.New("google sign-in is not configured")
	// ErrOAuthState indicates a missing or mismatched OAuth state.
	ErrOAuthState = errors.New("invalid oauth state")
)

// GoogleProfile is the subset of the userinfo response we use.
type GoogleProfile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleOAuth drives the Google authorization-code flow.
type GoogleOAuth struct {
	config       *oauth2.Config
	userInfoURL  string
	secureCookie bool
}

// NewGoogleOAuth creates a GoogleOAuth. With empty credentials every
// method returns ErrOAuthDisabled.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string, secureCookie bool) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL:  googleUserInfoURL,
		secureCookie: secureCookie,
	}
}

// Enabled reports whether client credentials are configured.
func (g *GoogleOAuth) Enabled() bool {
	return g.config.ClientID != "" && g.config.ClientSecret != ""
}

// Begin sets the state cookie and returns the consent URL.
func (g *GoogleOAuth) Begin(w http.ResponseWriter) (string, error) {
	if !g.Enabled() {
		return "", ErrOAuthDisabled
	}

	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Complete validates the callback state, exchanges the code and
// fetches the user's Google profile.
func (g *GoogleOAuth) Complete(ctx context.Context, w http.ResponseWriter, r *http.Request) (*GoogleProfile, error) {
	if !g.Enabled() {
		return nil, ErrOAuthDisabled
	}

	c, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		return nil, ErrOAuthState
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/api/auth/google", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, ErrOAuthState
	}

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}

	resp, err := g.config.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch google profile: status %d", resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode google profile: %w", err)
	}
	if profile.Subject == "" || profile.Email == "" {
		return nil, errors.New("google profile missing subject or email")
	}

	return &profile, nil
}

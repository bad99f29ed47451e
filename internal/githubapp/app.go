// Package githubapp resolves GitHub App credentials into short-lived,
// installation-scoped API clients.
package githubapp

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// App JWT lifetime limits, per the GitHub App authentication rules: at most
// ten minutes, backdated slightly to tolerate clock drift.
const (
	jwtBackdate = time.Minute
	jwtLifetime = 9 * time.Minute
)

// AuthError reports a failed credential resolution. It is a batch-level
// failure: callers must not fold it into per-service results.
type AuthError struct {
	InstallationID int64
	Err            error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("resolving credentials for installation %d: %v", e.InstallationID, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Config carries the process-wide GitHub App identity, read once at startup.
type Config struct {
	AppID         int64
	PrivateKey    []byte // PEM-encoded RSA key
	WebhookSecret string

	// BaseURL overrides the GitHub API endpoint (GitHub Enterprise, tests).
	// Empty means api.github.com.
	BaseURL string
}

// App holds the parsed app identity. All fields are read-only after New, so
// an App is safe for concurrent use.
type App struct {
	appID         int64
	key           *rsa.PrivateKey
	webhookSecret string
	baseURL       string
}

// New parses the private key and builds the app identity.
func New(cfg Config) (*App, error) {
	if cfg.AppID <= 0 {
		return nil, fmt.Errorf("github app id must be a positive integer, got %d", cfg.AppID)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse github app private key: %w", err)
	}

	return &App{
		appID:         cfg.AppID,
		key:           key,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       cfg.BaseURL,
	}, nil
}

// WebhookSecret returns the shared secret used to verify webhook signatures.
func (a *App) WebhookSecret() string {
	return a.webhookSecret
}

// InstallationClient exchanges a fresh app JWT for an installation access
// token and returns a client scoped to that installation's permissions. The
// token is short-lived; callers must not assume reuse beyond one aggregation
// pass. Failures are reported as *AuthError.
func (a *App) InstallationClient(ctx context.Context, installationID int64) (*Client, error) {
	appClient, err := a.appClient(ctx)
	if err != nil {
		return nil, &AuthError{InstallationID: installationID, Err: err}
	}

	token, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return nil, &AuthError{InstallationID: installationID, Err: err}
	}

	gh, err := a.tokenClient(ctx, token.GetToken())
	if err != nil {
		return nil, &AuthError{InstallationID: installationID, Err: err}
	}

	return &Client{gh: gh}, nil
}

// InstallationOrg looks up the account an installation belongs to, used by
// the setup flow to label the installation row. Falls back to a synthetic
// name when the account login is unavailable.
func (a *App) InstallationOrg(ctx context.Context, installationID int64) (string, error) {
	appClient, err := a.appClient(ctx)
	if err != nil {
		return "", &AuthError{InstallationID: installationID, Err: err}
	}

	installation, _, err := appClient.Apps.GetInstallation(ctx, installationID)
	if err != nil {
		return "", &AuthError{InstallationID: installationID, Err: err}
	}

	if login := installation.GetAccount().GetLogin(); login != "" {
		return login, nil
	}
	return fmt.Sprintf("installation-%d", installationID), nil
}

// appClient builds a client authenticated as the app itself (JWT bearer).
func (a *App) appClient(ctx context.Context) (*github.Client, error) {
	signed, err := a.signJWT(time.Now())
	if err != nil {
		return nil, err
	}
	return a.tokenClient(ctx, signed)
}

// signJWT mints the RS256 app JWT GitHub requires for app-level endpoints.
func (a *App) signJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.FormatInt(a.appID, 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signed, nil
}

func (a *App) tokenClient(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if a.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(a.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api base url %q: %w", a.baseURL, err)
		}
		gh.BaseURL = u
	}

	return gh, nil
}

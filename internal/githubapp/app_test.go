package githubapp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	return pemBytes, key
}

func TestNew_RejectsBadInput(t *testing.T) {
	pemBytes, _ := testKeyPEM(t)

	if _, err := New(Config{AppID: 0, PrivateKey: pemBytes}); err == nil {
		t.Error("expected error for app id 0")
	}
	if _, err := New(Config{AppID: 123, PrivateKey: []byte("not a key")}); err == nil {
		t.Error("expected error for garbage private key")
	}
}

func TestSignJWT_Claims(t *testing.T) {
	pemBytes, key := testKeyPEM(t)

	app, err := New(Config{AppID: 123, PrivateKey: pemBytes})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	signed, err := app.signJWT(now)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(t *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parsing signed JWT: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("JWT should be valid")
	}

	if claims.Issuer != "123" {
		t.Errorf("issuer = %q, want app id", claims.Issuer)
	}
	if !claims.IssuedAt.Time.Before(now) {
		t.Error("iat should be backdated")
	}
	if lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time); lifetime > 10*time.Minute {
		t.Errorf("JWT lifetime %v exceeds GitHub's ten-minute cap", lifetime)
	}
}

func TestInstallationClient_ExchangesToken(t *testing.T) {
	pemBytes, _ := testKeyPEM(t)

	var sawBearer string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /app/installations/42/access_tokens", func(w http.ResponseWriter, r *http.Request) {
		sawBearer = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token": "ghs_testtoken", "expires_at": "2026-01-15T13:00:00Z"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	app, err := New(Config{AppID: 123, PrivateKey: pemBytes, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	client, err := app.InstallationClient(context.Background(), 42)
	if err != nil {
		t.Fatalf("InstallationClient: %v", err)
	}
	if client == nil {
		t.Fatal("client is nil")
	}

	if !strings.HasPrefix(sawBearer, "Bearer ey") {
		t.Errorf("token exchange should authenticate with the app JWT, got %q", sawBearer)
	}
}

func TestInstallationClient_UnknownInstallation(t *testing.T) {
	pemBytes, _ := testKeyPEM(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	app, err := New(Config{AppID: 123, PrivateKey: pemBytes, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = app.InstallationClient(context.Background(), 999)
	if err == nil {
		t.Fatal("expected an error for an unknown installation")
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error %T is not *AuthError", err)
	}
	if authErr.InstallationID != 999 {
		t.Errorf("AuthError.InstallationID = %d, want 999", authErr.InstallationID)
	}
}

func TestInstallationOrg_FallsBackToSyntheticName(t *testing.T) {
	pemBytes, _ := testKeyPEM(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /app/installations/42", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 42}`))
	})
	mux.HandleFunc("GET /app/installations/43", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 43, "account": {"login": "acme"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	app, err := New(Config{AppID: 123, PrivateKey: pemBytes, BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	org, err := app.InstallationOrg(context.Background(), 42)
	if err != nil {
		t.Fatalf("InstallationOrg: %v", err)
	}
	if org != "installation-42" {
		t.Errorf("org = %q, want installation-42", org)
	}

	org, err = app.InstallationOrg(context.Background(), 43)
	if err != nil {
		t.Fatalf("InstallationOrg: %v", err)
	}
	if org != "acme" {
		t.Errorf("org = %q, want acme", org)
	}
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"outbound-dialer/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "user-1", "operator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}
	if pair.TokenType != "Bearer" || pair.ExpiresIn != 900 {
		t.Fatalf("unexpected pair metadata: %+v", pair)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID() != "user-1" || claims.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired access token to fail, got %v", err)
	}

	other, _ := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "other", AccessTokenTTL: time.Minute})
	if _, err := other.Verify(pair.AccessToken, TokenTypeAccess, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected audience mismatch, got %v", err)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "viewer")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected token_type mismatch, got %v", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, "u", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := now.Add(30 * time.Minute)
	next, err := m.Refresh(p.RefreshToken, later)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := m.Verify(next.AccessToken, TokenTypeAccess, later)
	if err != nil {
		t.Fatalf("verify refreshed: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("expected role carried over, got %q", claims.Role)
	}
	if _, err := m.Refresh(p.AccessToken, later); err == nil {
		t.Fatalf("expected access token rejected for refresh")
	}
}

func TestIssuePairRequiresIdentity(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if _, err := m.IssuePair(time.Now(), "u", ""); err == nil {
		t.Fatalf("expected error without role")
	}
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	now := time.Unix(1700000000, 0).UTC()
	m.Now = func() time.Time { return now }
	p, err := m.IssuePair(now, "u-9", "operator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		uid, _ := UserID(c.Request.Context())
		role, _ := Role(c.Request.Context())
		c.String(http.StatusOK, uid+"/"+role)
	})

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer " + p.RefreshToken, http.StatusUnauthorized},
		{"Basic " + p.AccessToken, http.StatusUnauthorized},
		{"Bearer " + p.AccessToken, http.StatusOK},
		{"bearer  " + p.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.code, w.Code)
		}
		if tc.code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("header %q: expected WWW-Authenticate challenge", tc.header)
		}
		if tc.code == http.StatusOK && w.Body.String() != "u-9/operator" {
			t.Fatalf("unexpected identity: %s", w.Body.String())
		}
	}
}

func TestIdentityFromContext(t *testing.T) {
	if _, ok := IdentityFrom(context.Background()); ok {
		t.Fatalf("expected no identity")
	}
	if _, err := Role(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	ctx := WithIdentity(context.Background(), "u", "viewer")
	id, ok := IdentityFrom(ctx)
	if !ok || id != (Identity{UserID: "u", Role: "viewer"}) {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if _, ok := IdentityFrom(WithIdentity(context.Background(), "u", "")); ok {
		t.Fatalf("identity without role must not count")
	}
}

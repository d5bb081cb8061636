package auth

import (
	"errors"
	"fmt"
	"time"

	"outbound-dialer/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenType    = errors.New("auth: wrong token type")
)

// clockSkew is tolerated on exp and iat.
const clockSkew = 30 * time.Second

// Manager issues and verifies HS256 operator tokens.
type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Now is the clock the middleware verifies against.
	Now func() time.Time
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		Now:        time.Now,
	}, nil
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

func (m *Manager) IssuePair(now time.Time, userID, role string) (TokenPair, error) {
	if userID == "" || role == "" {
		return TokenPair{}, errors.New("auth: user id and role are required")
	}
	access, err := m.sign(now, TokenTypeAccess, userID, role, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.sign(now, TokenTypeRefresh, userID, role, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(m.accessTTL / time.Second),
	}, nil
}

// Verify parses a token and checks signature, time claims, issuer, audience
// and token type. Every failure wraps ErrInvalidToken or ErrTokenType.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != expected {
		return Claims{}, fmt.Errorf("%w: got %q, want %q", ErrTokenType, claims.TokenType, expected)
	}
	if claims.Subject == "" || claims.Role == "" {
		return Claims{}, fmt.Errorf("%w: identity missing", ErrInvalidToken)
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (m *Manager) Refresh(refreshToken string, now time.Time) (TokenPair, error) {
	claims, err := m.Verify(refreshToken, TokenTypeRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	return m.IssuePair(now, claims.UserID(), claims.Role)
}

func (m *Manager) sign(now time.Time, typ TokenType, userID, role string, ttl time.Duration) (string, error) {
	rc := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if m.audience != "" {
		rc.Audience = jwt.ClaimStrings{m.audience}
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: rc, Role: role, TokenType: typ})
	return t.SignedString(m.secret)
}

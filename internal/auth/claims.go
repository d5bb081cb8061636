package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for the operator API.
// The operator id travels as the registered "sub" claim.
type Claims struct {
	jwt.RegisteredClaims

	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

func (c Claims) UserID() string { return c.Subject }

package auth

import (
	"context"
	"errors"
)

var ErrNoIdentity = errors.New("auth: no identity in context")

// Identity is the authenticated operator behind a request.
type Identity struct {
	UserID string
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, userID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{UserID: userID, Role: role})
}

// IdentityFrom returns the identity set by RequireAccessToken.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != "" && id.Role != ""
}

func UserID(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.UserID, nil
}

func Role(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrNoIdentity
	}
	return id.Role, nil
}

package auth

import "context"

type identityKey struct{}

// Identity is the caller resolved from a verified access token.
type Identity struct {
	UserID int64
	SID    string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok && identity.UserID > 0
}

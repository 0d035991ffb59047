package auth

import "context"

// Identity is produced by a transport after verifying a token and passed
// explicitly into session operations. RecordID is empty for access tokens.
type Identity struct {
	UserID   string
	Email    string
	RecordID string
	Kind     Kind
}

func IdentityFromClaims(c *Claims) Identity {
	return Identity{UserID: c.Subject, Email: c.Email, RecordID: c.RecordID, Kind: c.Kind}
}

type identityKey struct{}

// WithIdentity stores id in ctx for transport middleware; handlers read it
// back with IdentityFrom and pass it on as a plain argument.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Package metadata is the client's local key/value store. The CLI keeps the
// current session (user and token pair) in it between runs.
package metadata

import "context"

// Repository is a raw key/value view of the metadata table. Get returns
// (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

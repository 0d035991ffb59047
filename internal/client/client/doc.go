// Package client talks to the authkeeper gRPC service on behalf of the CLI.
//
// GRPCClient keeps the current token pair in memory, attaches it to outgoing
// calls as metadata and picks up rotated tokens from response headers. When
// the server reports an expired access token the client refreshes once and
// retries the call. A TokenHook lets the caller persist every new pair.
//
// Errors are mapped to ErrUnavailable, ErrUnauthorized and ErrRejected so
// callers can match them with errors.Is.
//
// InitDatabase opens the local SQLite database and applies the embedded goose
// migrations.
package client

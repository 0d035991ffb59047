package client

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/rpc"
)

// Client is the server API as used by the CLI services.
type Client interface {
	Register(ctx context.Context, userName, email string, password []byte, bio string) (string, error)
	Login(ctx context.Context, email string, password []byte) (string, error)
	Self(ctx context.Context) (*rpc.UserResponse, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Tokens() (access, refresh string)
	Close() error
}

// Package services holds the CLI's application services. AuthService drives
// the session protocol through the API client and remembers the session in
// the local metadata store.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
)

// SessionStore is satisfied by *metadata.SessionStore.
type SessionStore interface {
	Save(ctx context.Context, sess metadata.Session) error
	SaveTokens(ctx context.Context, access, refresh string) error
	Load(ctx context.Context) (metadata.Session, error)
	Clear(ctx context.Context) error
}

type AuthService interface {
	Register(ctx context.Context, userName, email string, password []byte, bio string) error
	Login(ctx context.Context, email string, password []byte) error
	Self(ctx context.Context) (*rpc.UserResponse, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Session() metadata.Session
	Close(ctx context.Context) error
}

type authService struct {
	api   client.Client
	store SessionStore

	mu      sync.Mutex
	session metadata.Session
}

// NewAuthService starts from the session previously loaded from store.
func NewAuthService(api client.Client, store SessionStore, restored metadata.Session) AuthService {
	return &authService{api: api, store: store, session: restored}
}

func (a *authService) Session() metadata.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *authService) remember(ctx context.Context, userID, email string) error {
	access, refresh := a.api.Tokens()
	sess := metadata.Session{UserID: userID, Email: email, AccessToken: access, RefreshToken: refresh}

	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()

	if err := a.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (a *authService) Register(ctx context.Context, userName, email string, password []byte, bio string) error {
	id, err := a.api.Register(ctx, userName, email, password, bio)
	if err != nil {
		return err
	}
	return a.remember(ctx, id, email)
}

func (a *authService) Login(ctx context.Context, email string, password []byte) error {
	id, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return a.remember(ctx, id, email)
}

func (a *authService) Self(ctx context.Context) (*rpc.UserResponse, error) {
	if !a.Session().Active() {
		return nil, client.ErrNoSession
	}
	return a.api.Self(ctx)
}

// Refresh rotates the token pair. Persisting the new pair is left to the
// client's token hook, which also covers refreshes done behind the scenes.
func (a *authService) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		return err
	}
	access, refresh := a.api.Tokens()
	a.mu.Lock()
	a.session.AccessToken, a.session.RefreshToken = access, refresh
	a.mu.Unlock()
	return nil
}

// Logout ends the session on the server and forgets it locally. When the
// server cannot be reached the local session is kept so the user can retry.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil && !errors.Is(err, client.ErrNoSession) {
		return err
	}

	a.mu.Lock()
	a.session = metadata.Session{}
	a.mu.Unlock()

	return a.store.Clear(ctx)
}

func (a *authService) Close(context.Context) error {
	return a.api.Close()
}

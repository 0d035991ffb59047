package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenHook receives every token pair the client starts using. Both values
// are empty after a logout.
type TokenHook func(access, refresh string)

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
	client      *rpc.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onTokens     TokenHook

	refreshing singleflight.Group
}

var _ Client = (*GRPCClient)(nil)

type Option func(*GRPCClient)

// WithTokens seeds the client with a pair restored from local storage.
func WithTokens(access, refresh string) Option {
	return func(c *GRPCClient) { c.accessToken, c.refreshToken = access, refresh }
}

func WithTokenHook(fn TokenHook) Option {
	return func(c *GRPCClient) { c.onTokens = fn }
}

// WithDialOptions appends dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

func NewGRPCClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	for _, o := range opts {
		o(c)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.tokenInterceptor),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewAuthServiceClient(conn)
	return c, nil
}

func (c *GRPCClient) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *GRPCClient) setTokens(access, refresh string) {
	c.mu.Lock()
	c.accessToken, c.refreshToken = access, refresh
	hook := c.onTokens
	c.mu.Unlock()

	if hook != nil {
		hook(access, refresh)
	}
}

// usesRefreshToken lists the methods authenticated by the refresh token.
func usesRefreshToken(method string) bool {
	return method == rpc.RefreshMethod || method == rpc.LogoutMethod
}

func (c *GRPCClient) withTokens(ctx context.Context, method string) context.Context {
	access, refresh := c.Tokens()

	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Delete(common.RefreshTokenHeaderName)

	if usesRefreshToken(method) {
		if refresh != "" {
			md.Set(common.RefreshTokenHeaderName, refresh)
		}
	} else if access != "" {
		md.Set(common.AccessTokenHeaderName, access)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	var header metadata.MD
	opts = append(opts, grpc.Header(&header))

	if err := invoker(c.withTokens(ctx, method), method, req, reply, cc, opts...); err != nil {
		return err
	}

	access := header.Get(common.AccessTokenHeaderName)
	refresh := header.Get(common.RefreshTokenHeaderName)
	if len(access) > 0 && len(refresh) > 0 {
		c.setTokens(access[0], refresh[0])
	}
	return nil
}

// tokenInterceptor attaches the right token for the method, captures rotated
// tokens, and on an expired access token refreshes once and retries.
func (c *GRPCClient) tokenInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	err := c.invoke(ctx, method, req, reply, cc, invoker, opts...)
	if !c.shouldRefresh(method, err) {
		return err
	}

	if rerr := c.refreshOnce(ctx); rerr != nil {
		return err
	}
	return c.invoke(ctx, method, req, reply, cc, invoker, opts...)
}

func (c *GRPCClient) shouldRefresh(method string, err error) bool {
	if err == nil || usesRefreshToken(method) {
		return false
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return false
	}
	_, refresh := c.Tokens()
	return refresh != ""
}

// refreshOnce collapses concurrent refreshes into a single RPC, since the
// server only honours one rotation per refresh token.
func (c *GRPCClient) refreshOnce(ctx context.Context) error {
	_, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		_, err := c.client.Refresh(ctx)
		return nil, err
	})
	return err
}

func (c *GRPCClient) Register(ctx context.Context, userName, email string, password []byte, bio string) (string, error) {
	resp, err := c.client.Register(ctx, &rpc.RegisterRequest{UserName: userName, Email: email, Password: password, Bio: bio})
	if err != nil {
		return "", mapError(err)
	}
	return resp.UserID, nil
}

func (c *GRPCClient) Login(ctx context.Context, email string, password []byte) (string, error) {
	resp, err := c.client.Login(ctx, &rpc.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", mapError(err)
	}
	return resp.UserID, nil
}

func (c *GRPCClient) Self(ctx context.Context) (*rpc.UserResponse, error) {
	resp, err := c.client.Self(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (c *GRPCClient) Refresh(ctx context.Context) error {
	if _, refresh := c.Tokens(); refresh == "" {
		return ErrNoSession
	}
	if err := c.refreshOnce(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

// Logout forgets the local tokens once the server has either revoked the
// session or rejected it as already invalid.
func (c *GRPCClient) Logout(ctx context.Context) error {
	if _, refresh := c.Tokens(); refresh == "" {
		return ErrNoSession
	}
	err := c.client.Logout(ctx)
	if err != nil && status.Code(err) != codes.Unauthenticated {
		return mapError(err)
	}
	c.setTokens("", "")
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

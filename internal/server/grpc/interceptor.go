package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// protectedMethods maps each method that needs a token to the token kind
// it expects. Register and Login are public.
var protectedMethods = map[string]auth.Kind{
	rpc.SelfMethod:    auth.KindAccess,
	rpc.RefreshMethod: auth.KindRefresh,
	rpc.LogoutMethod:  auth.KindRefresh,
}

func (s *GRPCServer) tokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	kind, ok := protectedMethods[info.FullMethod]
	if !ok {
		return handler(ctx, req)
	}

	token := tokenFromMetadata(ctx, kind)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.verifier.Verify(token, kind)
	if err != nil {
		// clients refresh on this exact message
		if kind == auth.KindAccess && errors.Is(err, auth.ErrExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.PublicMessage(common.NewTokenInvalidError(err)))
	}

	return handler(auth.WithIdentity(ctx, auth.IdentityFromClaims(claims)), req)
}

func tokenFromMetadata(ctx context.Context, kind auth.Kind) string {
	key := common.AccessTokenHeaderName
	if kind == auth.KindRefresh {
		key = common.RefreshTokenHeaderName
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// toStatus maps a session error to a gRPC status carrying only the public
// message.
func toStatus(err error) error {
	var code codes.Code
	switch common.KindOf(err) {
	case common.KindValidation, common.KindInvalidCredentials:
		code = codes.InvalidArgument
	case common.KindTokenInvalid:
		code = codes.Unauthenticated
	case common.KindUpstreamFailure:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, common.PublicMessage(err))
}

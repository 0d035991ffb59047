package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Profile images are only accepted over HTTP multipart; gRPC registration
// never carries one.
func (s *GRPCServer) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.SessionResponse, error) {
	pair, err := s.sessions.Register(ctx, models.RegisterRequest{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return s.sendTokens(ctx, pair)
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.SessionResponse, error) {
	pair, err := s.sessions.Login(ctx, models.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, toStatus(err)
	}
	return s.sendTokens(ctx, pair)
}

func (s *GRPCServer) Self(ctx context.Context, _ *rpc.Empty) (*rpc.UserResponse, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	view, err := s.sessions.Self(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.UserResponse{
		ID:              view.ID,
		UserName:        view.UserName,
		Email:           view.Email,
		Bio:             view.Bio,
		ProfileImageURL: view.ProfileImageURL,
		CreatedAt:       view.CreatedAt,
	}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, _ *rpc.Empty) (*rpc.SessionResponse, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	pair, err := s.sessions.Refresh(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.sendTokens(ctx, pair)
}

func (s *GRPCServer) Logout(ctx context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if err := s.sessions.Logout(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) sendTokens(ctx context.Context, pair *services.TokenPair) (*rpc.SessionResponse, error) {
	md := metadata.Pairs(
		common.AccessTokenHeaderName, pair.AccessToken,
		common.RefreshTokenHeaderName, pair.RefreshToken,
	)
	if err := grpc.SetHeader(ctx, md); err != nil {
		s.logger.Error(ctx, "failed to set token header", "error", err)
		return nil, status.Error(codes.Internal, common.ErrorInternal.Error())
	}
	return &rpc.SessionResponse{UserID: pair.UserID}, nil
}

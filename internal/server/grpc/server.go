package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// Sessions is the session manager as seen by the gRPC transport.
type Sessions interface {
	Register(ctx context.Context, req models.RegisterRequest) (*services.TokenPair, error)
	Login(ctx context.Context, req models.LoginRequest) (*services.TokenPair, error)
	Refresh(ctx context.Context, id auth.Identity) (*services.TokenPair, error)
	Self(ctx context.Context, id auth.Identity) (*models.UserView, error)
	Logout(ctx context.Context, id auth.Identity) error
}

// TokenVerifier is satisfied by *auth.Signer.
type TokenVerifier interface {
	Verify(token string, expected auth.Kind) (*auth.Claims, error)
}

type GRPCServer struct {
	address  string
	sessions Sessions
	verifier TokenVerifier
	metrics  *grpcprometheus.ServerMetrics
	logger   logging.Logger
}

var _ rpc.AuthServiceServer = (*GRPCServer)(nil)

// NewGRPCServer builds the server. Request metrics are registered on reg
// when it is non-nil.
func NewGRPCServer(a string, l logging.Logger, sessions Sessions, v TokenVerifier, reg prometheus.Registerer) (*GRPCServer, error) {
	m := grpcprometheus.NewServerMetrics()
	if reg != nil {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return &GRPCServer{
		address:  a,
		sessions: sessions,
		verifier: v,
		metrics:  m,
		logger:   l.With("module", "grpc_server"),
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			s.metrics.UnaryServerInterceptor(),
			s.tokenInterceptor,
		),
	)
	rpc.RegisterAuthServiceServer(srv, s)
	s.metrics.InitializeMetrics(srv)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}

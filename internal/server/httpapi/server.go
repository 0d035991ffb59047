// Package httpapi is the cookie-based HTTP transport of the session protocol.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Options struct {
	Sessions       Sessions
	Verifier       TokenVerifier
	Cookies        CookieConfig
	Limiter        *IPLimiter
	Metrics        *metrics.Metrics
	Logger         logging.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
	// Health reports readiness for /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the full handler chain: otelhttp, CORS, request log, mux.
func NewRouter(o Options) http.Handler {
	if o.Logger == nil {
		o.Logger = logging.Nop{}
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = defaultMaxUploadBytes
	}

	h := &Handler{
		sessions:       o.Sessions,
		cookies:        o.Cookies,
		log:            o.Logger,
		maxUploadBytes: o.MaxUploadBytes,
	}
	access := requireIdentity(o.Verifier, auth.KindAccess)
	refresh := requireIdentity(o.Verifier, auth.KindRefresh)
	logout := requireIdentityOr(o.Verifier, auth.KindRefresh, o.Cookies.clearTokens)

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/register", o.Limiter.middleware("register", o.Metrics)(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", o.Limiter.middleware("login", o.Metrics)(http.HandlerFunc(h.Login)))
	mux.Handle("GET /api/auth/self", access(http.HandlerFunc(h.Self)))
	mux.Handle("POST /api/auth/refresh", refresh(http.HandlerFunc(h.Refresh)))
	mux.Handle("POST /api/auth/logout", logout(http.HandlerFunc(h.Logout)))
	mux.HandleFunc("GET /healthz", healthHandler(o.Health))
	if o.Metrics != nil {
		mux.Handle("GET /metrics", o.Metrics.Handler())
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(c.Handler(logRequests(o.Logger)(mux)), "authkeeper.http")
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := check(ctx); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

type Server struct {
	srv    *http.Server
	logger logging.Logger
}

func NewServer(addr string, handler http.Handler, l logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: l.With("module", "http_server"),
	}
}

// Run serves until ctx is done, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	listen, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errCh <- s.srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())
	if err := s.srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errCh
}

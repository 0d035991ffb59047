// Package server wires the configured components together and runs the HTTP
// and gRPC transports until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/blob"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/revoker"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/tracing"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

const (
	auditBufferSize = 1024

	// shutdownGrace bounds the cleanup of a partially built App.
	shutdownGrace = 5 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	otel    *tracing.OTel
	metrics *metrics.Metrics
	audit   *audit.Dispatcher
	kafka   *audit.KafkaSink
	revoker *revoker.Revoker
	limiter *httpapi.IPLimiter
	http    *httpapi.Server
	grpc    *gs.GRPCServer
}

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	runMigrations = func(ctx context.Context, m repomanager.RepositoryManager, db *sql.DB) error {
		return m.RunMigrations(ctx, db)
	}
	newRedisClient = func(c *config.Config) *redis.Client {
		return redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
	}
)

// NewLogger builds the logger selected by LogBackend.
func NewLogger(c *config.Config) (logging.Logger, error) {
	switch c.LogBackend {
	case "zap":
		return logging.NewZap(c.LogLevel, false)
	case "", "slog":
		return logging.NewJSONSlog(os.Stdout, c.LogLevel), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", c.LogBackend)
	}
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (app *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	app = &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			cctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			app.close(cctx)
			app = nil
		}
	}()

	app.otel, err = tracing.SetupOTel(ctx, tracing.Config{Endpoint: c.OTLPEndpoint, ServiceName: "authkeeper"})
	if err != nil {
		return app, fmt.Errorf("tracing init error: %w", err)
	}

	app.db, err = openDB(c.DatabaseDSN)
	if err != nil {
		return app, fmt.Errorf("db init error: %w", err)
	}

	var opts []repomanager.Option
	if c.RefreshTokenStore == config.StoreRedis {
		app.redis = newRedisClient(c)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return app, fmt.Errorf("redis init error: %w", err)
		}
		opts = append(opts, repomanager.WithRedisRefreshTokens(app.redis, ""))
	}
	rm := repomanager.NewPostgresRepositoryManager(opts...)

	if err := runMigrations(ctx, rm, app.db); err != nil {
		return app, fmt.Errorf("migrations error: %w", err)
	}

	hasher, err := cryptox.New(c.PasswordHasher, c.BcryptCost)
	if err != nil {
		return app, err
	}

	access, refresh, err := c.SigningKeys()
	if err != nil {
		return app, err
	}
	signer, err := auth.NewSigner(auth.Keys{Access: access, Refresh: refresh}, auth.Options{
		Issuer:     c.TokenIssuer,
		AccessTTL:  c.AccessTokenValidityDuration,
		RefreshTTL: c.RefreshTokenValidityDuration,
	})
	if err != nil {
		return app, err
	}

	app.metrics = metrics.New()

	sinks := audit.MultiSink{audit.NewLogSink(logger)}
	if len(c.KafkaBrokers) > 0 {
		app.kafka = audit.NewKafkaSink(c.KafkaBrokers, c.KafkaAuditTopic)
		sinks = append(sinks, app.kafka)
	}
	app.audit = audit.NewDispatcher(sinks, auditBufferSize, logger.With("module", "audit"),
		audit.WithDropHook(app.metrics.AuditDropped))

	app.revoker = revoker.New(rm.RefreshTokens(app.db), logger, app.metrics, revoker.Options{
		Attempts:      c.RevokerRetryAttempts,
		SweepInterval: c.RevokerSweepInterval,
	})

	sessionOpts := []services.Option{
		services.WithLogger(logger),
		services.WithAuditor(app.audit),
		services.WithMetrics(app.metrics),
		services.WithRevoker(app.revoker),
	}
	if c.S3Bucket != "" {
		uploader, err := blob.NewS3Uploader(ctx, blob.Settings{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return app, fmt.Errorf("s3 init error: %w", err)
		}
		sessionOpts = append(sessionOpts, services.WithUploader(uploader))
	}

	sessions, err := services.NewSessionManager(app.db, rm, hasher, signer, sessionOpts...)
	if err != nil {
		return app, err
	}

	app.limiter = httpapi.NewIPLimiter(c.LoginRateLimit)
	router := httpapi.NewRouter(httpapi.Options{
		Sessions: sessions,
		Verifier: signer,
		Cookies: httpapi.CookieConfig{
			Domain:     c.CookieDomain,
			Secure:     c.CookieSecure,
			AccessTTL:  c.AccessTokenValidityDuration,
			RefreshTTL: c.RefreshTokenValidityDuration,
		},
		Limiter:        app.limiter,
		Metrics:        app.metrics,
		Logger:         logger,
		AllowedOrigins: c.CORSAllowedOrigins,
		Health:         app.health,
	})
	app.http = httpapi.NewServer(c.EndpointAddrHTTP, router, logger)

	app.grpc, err = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, sessions, signer, app.metrics.Registry())
	if err != nil {
		return app, err
	}

	return app, nil
}

func (app *App) health(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return err
	}
	if app.redis != nil {
		return app.redis.Ping(ctx).Err()
	}
	return nil
}

// Run blocks until SIGINT/SIGTERM/SIGQUIT or ctx cancellation, or until one
// of the components fails. Resources are released before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.revoker.Run(gctx) })
	g.Go(func() error { return app.limiter.Run(gctx) })
	g.Go(func() error { return app.http.Run(gctx, app.config.ShutdownTimeout) })
	g.Go(func() error { return app.grpc.Run(gctx) })

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	app.close(shutdownCtx)

	if err != nil {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.audit != nil {
		app.audit.Close()
	}
	if app.kafka != nil {
		if err := app.kafka.Close(); err != nil {
			app.logger.Warn(ctx, "kafka writer close failed", "error", err)
		}
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
	if err := app.otel.Shutdown(ctx); err != nil {
		app.logger.Warn(ctx, "tracing shutdown failed", "error", err)
	}
}

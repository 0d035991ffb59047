package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/filex"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	db          *sql.DB
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, filepath.Join(dir, config.DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	store := metadata.NewSessionStore(db)
	sess, err := store.Load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api, err := client.NewGRPCClient(c.ServerEndpointAddr,
		client.WithTokens(sess.AccessToken, sess.RefreshToken),
		client.WithTokenHook(func(access, refresh string) {
			if err := store.SaveTokens(context.Background(), access, refresh); err != nil {
				log.Printf("failed to persist tokens: %v", err)
			}
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:      c,
		authService: services.NewAuthService(api, store, sess),
		db:          db,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) getStatus() string {
	if s := a.authService.Session(); s.Active() {
		return fmt.Sprintf(" (%s)", s.Email)
	}
	return ""
}

// Run blocks in the REPL until the user exits, then releases the connection
// and the local database.
func (a *App) Run(ctx context.Context) {
	defer func() {
		_ = a.authService.Close(ctx)
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	fmt.Fprintln(a.out, "Welcome to authkeeper CLI (type 'help' for commands)")
	if a.isLoggedIn() {
		fmt.Fprintf(a.out, "Restored session for %s\n", a.authService.Session().Email)
	}
	runREPL(ctx, a, a.getStatus, a.reader)
}

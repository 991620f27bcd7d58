package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forumgram/forumgram/db"
	"github.com/forumgram/forumgram/internal/bindings"
	"github.com/forumgram/forumgram/internal/bridge"
	"github.com/forumgram/forumgram/internal/config"
	idb "github.com/forumgram/forumgram/internal/db"
	dbsqlc "github.com/forumgram/forumgram/internal/db/sqlc"
	"github.com/forumgram/forumgram/internal/dispatch"
	"github.com/forumgram/forumgram/internal/forum"
	"github.com/forumgram/forumgram/internal/guard"
	"github.com/forumgram/forumgram/internal/handlers"
	"github.com/forumgram/forumgram/internal/logger"
	"github.com/forumgram/forumgram/internal/server"
	"github.com/forumgram/forumgram/internal/telegram"
	"github.com/forumgram/forumgram/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,

			provideDBConn,
			provideDBQueries,

			provideGuard,
			provideNotifier,
			provideForumClient,
			bindings.NewService,
			provideDispatcher,
			provideBridge,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewBridgeHandler),
			provideServerHandler(handlers.NewForumHandler),

			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrate(args []string) {
	cfg, err := provideConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := provideLogger(cfg)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	migrationsFS, err := fs.Sub(db.MigrationsFS, "migrations")
	if err != nil {
		log.Error("migrations filesystem", slog.Any("error", err))
		os.Exit(1)
	}
	if err := idb.RunMigrate(log, cfg.Postgres, migrationsFS, command, args); err != nil {
		log.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := idb.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *dbsqlc.Queries {
	return dbsqlc.New(conn)
}

func provideGuard(log *slog.Logger, cfg config.Config) *guard.Guard {
	return guard.New(log, cfg.Access.APIToken, cfg.Access.Allowlist())
}

func provideNotifier(log *slog.Logger, cfg config.Config) *telegram.Notifier {
	return telegram.NewNotifier(log, cfg.Telegram)
}

func provideForumClient(log *slog.Logger, cfg config.Config) *forum.Client {
	return forum.NewClient(log, cfg.Forum)
}

func provideDispatcher(log *slog.Logger, store *bindings.Service, notifier *telegram.Notifier) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(log, store, notifier)
}

func provideBridge(log *slog.Logger, store *bindings.Service, client *forum.Client, dispatcher *dispatch.Dispatcher) *bridge.Service {
	return bridge.NewService(log, store, client, dispatcher)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	Guard          *guard.Guard
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Guard, params.ServerHandlers...)
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
) {
	fmt.Printf("Starting Forumgram %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

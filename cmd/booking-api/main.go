package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-booking-auth/activitymap"
	"github.com/goliatone/go-booking-auth/config"
)

type App struct {
	config *config.Config
	db     *bun.DB
	repo   auth.RepositoryManager
	auther *auth.Auther
	srv    router.Server[*fiber.App]
	rdb    *redis.Client
	logger *auth.ZapLogger
}

func (a *App) GetLogger(name string) auth.Logger {
	return a.logger.Named(name)
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.StringP("config", "c", os.Getenv("APP_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	zl, err := newZap(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer zl.Sync()

	app := &App{config: cfg, logger: auth.NewZapLogger(zl)}

	for _, warning := range cfg.Warnings() {
		app.logger.Warn("insecure configuration", "warning", warning)
	}

	if cfg.App.Debug {
		fmt.Println(print.MaybeHighlightJSON(cfg.Redacted()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		return 1
	}
	defer app.db.Close()

	WithAuthenticator(app)
	if app.rdb != nil {
		defer app.rdb.Close()
	}
	WithHTTPServer(app)

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		app.logger.Info("listening", "addr", addr, "env", cfg.App.Env)
		errc <- app.srv.Serve(addr)
	}()

	select {
	case err := <-errc:
		if err != nil {
			app.logger.Error("server stopped", "error", err)
			return 1
		}
	case <-ctx.Done():
		app.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}

func newZap(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.App.DatabaseDSN)
	if err != nil {
		return err
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	repo := auth.NewRepositoryManager(db)

	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return errors.Wrap(err, errors.CategoryInternal, "migrate")
	}

	if app.config.App.Seed {
		if err := repo.SeedRooms(ctx, auth.DefaultFixtures()); err != nil {
			db.Close()
			return errors.Wrap(err, errors.CategoryInternal, "seed rooms")
		}
	}

	app.db = db
	app.repo = repo
	return nil
}

func WithAuthenticator(app *App) {
	logger := app.GetLogger("auth")
	tokens := auth.TokenServiceFromConfig(app.config, logger)
	provider := auth.NewUserProvider(app.repo.Users()).WithLogger(logger)

	sinks := []auth.ActivitySink{auth.LoggerActivitySink{Logger: app.GetLogger("activity")}}
	if addr := app.config.App.ActivityRedisAddr; addr != "" {
		app.rdb = redis.NewClient(&redis.Options{Addr: addr})
		sinks = append(sinks, activitymap.NewRedisSink(app.rdb, app.config.App.ActivityRedisKey))
		logger.Info("activity redis sink enabled", "addr", addr)
	}

	app.auther = auth.NewAuthenticatorWithTokenService(provider, tokens).
		WithLogger(logger).
		WithActivitySink(auth.ActivitySinks(sinks...))
}

func WithHTTPServer(app *App) {
	app.srv = auth.NewServer(auth.RouteDeps{
		Auther: app.auther,
		Repo:   app.repo,
		Config: app.config,
		Logger: app.GetLogger("http"),
		Debug:  app.config.App.Debug,
	}, cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/config"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/logging"
	"github.com/JonMunkholm/csvcleaner/internal/metrics"
	"github.com/JonMunkholm/csvcleaner/internal/postgres"
	"github.com/JonMunkholm/csvcleaner/internal/tabular"
	"github.com/JonMunkholm/csvcleaner/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// stores bundles the persistence backends chosen at startup.
type stores struct {
	users   auth.UserStore
	sweeper auth.Sweeper
	history core.HistoryStore
	label   string
	ping    func(context.Context) error
	close   func()
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.Enabled(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer st.close()

	codec, err := tabular.NewCodec(tabular.ReadOptions{
		Encoding:  cfg.Upload.Encoding,
		Delimiter: cfg.Upload.DelimiterRune(),
	})
	if err != nil {
		slog.Error("failed to create codec", "error", err)
		os.Exit(1)
	}

	recorder := metrics.NewRecorder()
	service := core.NewService(core.ServiceConfig{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		HistoryLimit:  cfg.Upload.HistoryLimit,
	}, codec, st.history, recorder)

	server := web.NewServer(cfg, web.Deps{
		Service: service,
		Users:   st.users,
		Codec:   codec,
		Metrics: recorder.Handler(),
		Storage: st.label,
		Ping:    st.ping,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		return auth.RunSweeper(gctx, st.sweeper, cfg.Session.SweepInterval)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Closes the listener first, then drains in-flight cleaning runs
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown did not complete in time", "error", err)
			return err
		}
		slog.Info("all runs completed")
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStores connects to PostgreSQL when DATABASE_URL is set and falls back
// to in-memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	opts := auth.Options{SessionTTL: cfg.Session.TTL, BcryptCost: cfg.Security.BcryptCost}

	if !cfg.Database.Enabled() {
		slog.Warn("DATABASE_URL not set, accounts and history are kept in memory")
		users := auth.NewMemoryStore(opts)
		return &stores{
			users:   users,
			sweeper: users,
			history: core.NewMemoryHistory(),
			label:   "In-memory",
			close:   func() {},
		}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := postgres.New(pool, opts)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		users:   store,
		sweeper: store,
		history: store,
		label:   "PostgreSQL",
		ping:    pool.Ping,
		close:   pool.Close,
	}, nil
}

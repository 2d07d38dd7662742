package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/vi-monitor/internal/auth"
	"github.com/rickgao/vi-monitor/internal/config"
	"github.com/rickgao/vi-monitor/internal/connection"
	"github.com/rickgao/vi-monitor/internal/console"
	"github.com/rickgao/vi-monitor/internal/database"
	"github.com/rickgao/vi-monitor/internal/dispatcher"
	"github.com/rickgao/vi-monitor/internal/metrics"
	"github.com/rickgao/vi-monitor/internal/protocol"
	"github.com/rickgao/vi-monitor/internal/registry"
	"github.com/rickgao/vi-monitor/internal/scheduler"
	"github.com/rickgao/vi-monitor/internal/status"
	"github.com/rickgao/vi-monitor/internal/version"
	"github.com/rickgao/vi-monitor/internal/writer"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Log, os.Stderr)
			slog.SetDefault(logger)

			logger.Info("starting vimonitor",
				"version", version.Version,
				"commit", version.Commit,
				"config", opts.configPath,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runMonitor(ctx, cfg, logger, cmd.OutOrStdout()); err != nil {
				logger.Error("vimonitor failed", "error", err)
				return err
			}
			logger.Info("vimonitor stopped")
			return nil
		},
	}
}

// runMonitor wires the components and blocks until ctx is cancelled.
// It returns an error only for failures that prevent the monitor from
// starting or keep it from running.
func runMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	tok, err := fetchToken(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("access token acquired", "type", tok.Type(), "expiry", tok.Expiry)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	reg := registry.New()
	sched := scheduler.New(logger)

	var sinks []dispatcher.Sink
	if cfg.Console.IsEnabled() {
		sinks = append(sinks, console.New(out))
	}

	journal, err := openJournal(ctx, cfg.Journal, m, logger)
	if err != nil {
		return err
	}
	if journal != nil {
		if err := journal.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		// Registered first so it runs after the scheduler has stopped.
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			journal.Stop(stopCtx)
		}()
		sinks = append(sinks, journal)
	}
	defer sched.Stop()

	mgr := connection.NewManager(connection.ManagerConfig{
		Client: connection.ClientConfig{
			URL:                cfg.API.WSURL,
			InsecureSkipVerify: cfg.API.InsecureTLS(),
			HandshakeTimeout:   cfg.Connection.HandshakeTimeout,
			WriteTimeout:       cfg.Connection.WriteTimeout,
			PingInterval:       cfg.Connection.PingInterval,
			PingTimeout:        cfg.Connection.PingTimeout,
			BufferSize:         cfg.Connection.BufferSize,
		},
		ReconnectDelay: cfg.Connection.ReconnectDelay,
	}, m, logger)

	enc := protocol.NewEncoder(tok.AccessToken, cfg.Subscriptions.VIKey)
	disp := dispatcher.New(
		dispatcher.Config{GracePeriod: cfg.Subscriptions.GracePeriod},
		enc, mgr, reg, sched, m, logger, sinks...,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mgr.Run(gctx, disp)
	})

	if cfg.Status.Enabled {
		deps := status.Deps{
			Connection:    mgr,
			Instruments:   reg,
			Cancellations: sched,
			Dispatcher:    disp,
			Session:       status.NewMarketSession(),
			Gatherer:      promReg,
		}
		if journal != nil {
			deps.Journal = journal
		}
		srv := status.New(cfg.Status.Addr, deps, logger)
		g.Go(func() error {
			// The status server is optional; losing it must not stop the stream.
			if err := srv.Run(gctx); err != nil {
				logger.Error("status server stopped", "addr", cfg.Status.Addr, "error", err)
			}
			return nil
		})
	}

	logger.Info("vimonitor running",
		"ws_url", cfg.API.WSURL,
		"grace_period", cfg.Subscriptions.GracePeriod,
		"journal", cfg.Journal.Driver,
		"status_addr", statusAddr(cfg.Status),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	st := disp.Stats()
	logger.Info("shutting down",
		"frames", st.FramesReceived,
		"vi_events", st.VIEvents,
		"ticks_forwarded", st.TicksForwarded,
		"active_instruments", reg.Len(),
		"pending_cancellations", sched.Len(),
	)
	return nil
}

func fetchToken(ctx context.Context, cfg *config.Config) (*oauth2.Token, error) {
	creds, err := auth.LoadCredentials(cfg.Credentials.AppKey, cfg.Credentials.AppSecret)
	if err != nil {
		return nil, err
	}
	return auth.FetchToken(ctx, authConfig(cfg), creds)
}

// openJournal opens the configured journal backend. It returns nil when the
// journal is disabled.
func openJournal(ctx context.Context, cfg config.JournalConfig, m *metrics.Metrics, logger *slog.Logger) (*writer.Journal, error) {
	var store writer.Store

	switch cfg.Driver {
	case config.JournalPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect journal database: %w", err)
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("journal database connected",
			"driver", cfg.Driver,
			"host", cfg.Postgres.Host,
			"database", cfg.Postgres.Name,
		)
		store = writer.NewPostgresStore(pool)

	case config.JournalSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open journal database: %w", err)
		}
		if err := database.MigrateSQLite(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("journal database opened", "driver", cfg.Driver, "path", cfg.SQLitePath)
		store = writer.NewSQLiteStore(db)

	default:
		return nil, nil
	}

	return writer.New(writer.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		BufferSize:    cfg.BufferSize,
	}, store, m, logger), nil
}

func statusAddr(cfg config.StatusConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Addr
}

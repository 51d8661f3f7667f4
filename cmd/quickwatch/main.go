package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quickcheckhq/realtime/internal/api"
	"github.com/quickcheckhq/realtime/internal/auth"
	"github.com/quickcheckhq/realtime/internal/config"
	"github.com/quickcheckhq/realtime/internal/connection"
	"github.com/quickcheckhq/realtime/internal/database"
	"github.com/quickcheckhq/realtime/internal/dispatch"
	"github.com/quickcheckhq/realtime/internal/journal"
	"github.com/quickcheckhq/realtime/internal/model"
	"github.com/quickcheckhq/realtime/internal/notify"
	"github.com/quickcheckhq/realtime/internal/reconcile"
	"github.com/quickcheckhq/realtime/internal/snapshot"
	"github.com/quickcheckhq/realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/quickwatch.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting quickwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	token, err := auth.LoadToken(cfg.Auth)
	if err != nil {
		logger.Error("failed to load auth token", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance", cfg.Instance.Name,
		"rest_url", cfg.Server.RestURL,
		"ws_url", cfg.Server.WSURL,
	)

	// Root context cancels on shutdown signals.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Core components
	bus := dispatch.NewBus(logger)
	board := reconcile.NewBoard(logger)
	coordinator := notify.NewCoordinator(notify.Config{
		MaxVisible:  cfg.Notifications.MaxVisible,
		TTL:         cfg.Notifications.TTL,
		DedupWindow: cfg.Notifications.DedupWindow,
	}, &logSounder{logger: logger}, logger)

	apiClient := api.NewClient(
		cfg.Server.RestURL,
		token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(cfg.Server.MaxRetries, time.Second),
	)

	loader := snapshot.NewLoader(apiClient, board, logger)

	// Optional mutation journal
	var journalWriter *journal.Writer
	if cfg.Journal.Enabled {
		logger.Info("connecting to journal database",
			"host", cfg.Journal.Database.Host,
			"database", cfg.Journal.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			logger.Error("failed to connect to journal database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		journalWriter = journal.NewWriter(cfg.Journal, pool, logger)
		if err := journalWriter.Start(ctx); err != nil {
			logger.Error("failed to start journal writer", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			journalWriter.Stop(stopCtx)
		}()
	}

	// Initial snapshot before any live mutations arrive.
	if err := loader.Hydrate(ctx); err != nil {
		logger.Error("initial snapshot failed", "error", err)
		os.Exit(1)
	}

	// Live mutation path: feed event -> board -> notifications + journal.
	bus.On(dispatch.KindQuickCheckUpdate, func(ev dispatch.Event) {
		mut, err := model.ParseMutationEvent(ev.Data, ev.ReceivedAt)
		if err != nil {
			logger.Warn("dropping malformed mutation", "error", err)
			return
		}

		out := board.Apply(mut)

		if kind, subject, message, ok := notify.FromOutcome(out); ok {
			coordinator.Publish(kind, subject, message)
		}

		if journalWriter != nil && out.Kind != reconcile.OutcomeDropped {
			var rec *model.Inspection
			if out.Kind == reconcile.OutcomeCreated || out.Kind == reconcile.OutcomeUpdated {
				rec = &out.Record
			}
			journalWriter.Record(mut, rec)
		}
	})

	// Connection manager
	mgrCfg := connection.DefaultManagerConfig()
	mgrCfg.Endpoint = cfg.Server.WSURL
	mgrCfg.Token = token
	mgrCfg.ClientName = cfg.Instance.Name
	mgrCfg.ClientPage = cfg.Instance.Page
	mgrCfg.UserAgent = cfg.Instance.UserAgent
	mgrCfg.ReconnectBaseDelay = cfg.Connection.ReconnectBaseDelay
	mgrCfg.ReconnectMaxDelay = cfg.Connection.ReconnectMaxDelay
	mgrCfg.MaxReconnectAttempts = cfg.Connection.MaxReconnectAttempts
	mgrCfg.HeartbeatInterval = cfg.Connection.HeartbeatInterval
	mgrCfg.EndpointCheckInterval = cfg.Connection.EndpointCheckInterval
	mgrCfg.WriteTimeout = cfg.Connection.WriteTimeout
	mgrCfg.BufferSize = cfg.Connection.BufferSize

	manager := connection.NewManager(mgrCfg, bus, logger)

	// Mutations broadcast while the socket was down are lost, so every
	// authenticated session that follows a drop starts with a resync.
	var wasDown atomic.Bool
	manager.OnStatus(func(st connection.State) {
		if !st.Authenticated {
			wasDown.Store(true)
			return
		}
		if wasDown.CompareAndSwap(true, false) {
			go func() {
				if err := loader.Hydrate(ctx); err != nil {
					logger.Error("resync after reconnect failed", "error", err)
					wasDown.Store(true)
				}
			}()
		}
	})

	if err := manager.Connect(ctx); err != nil {
		logger.Error("initial connect failed", "error", err)
		os.Exit(1)
	}
	defer manager.Disconnect()

	// Stats server
	statsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Stats.Port),
		Handler: createStatsHandler(cfg.Stats.Path, manager, board, coordinator, journalWriter),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting stats server", "port", cfg.Stats.Port, "path", cfg.Stats.Path)
		if err := statsServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("stats server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return statsServer.Shutdown(shutdownCtx)
	})

	logger.Info("quickwatch running",
		"instance", cfg.Instance.Name,
		"stats_url", fmt.Sprintf("http://localhost:%d%s", cfg.Stats.Port, cfg.Stats.Path),
	)

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", "error", err)
		os.Exit(1)
	}

	logger.Info("quickwatch stopped")
}

// createStatsHandler serves liveness and a small operational snapshot.
func createStatsHandler(
	statsPath string,
	manager *connection.Manager,
	board *reconcile.Board,
	coordinator *notify.Coordinator,
	journalWriter *journal.Writer,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := manager.State()

		status := "healthy"
		code := http.StatusOK
		switch {
		case st.Authenticated:
		case st.Reconnecting:
			status = "degraded"
		default:
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":     status,
			"connected":  st.Connected,
			"last_error": st.LastError,
		})
	})

	mux.HandleFunc(statsPath, func(w http.ResponseWriter, r *http.Request) {
		st := manager.State()

		stats := map[string]any{
			"connection": map[string]any{
				"connected":         st.Connected,
				"authenticated":     st.Authenticated,
				"reconnecting":      st.Reconnecting,
				"last_connected_at": st.LastConnectedAt,
				"last_error":        st.LastError,
				"connected_clients": st.ConnectedClients,
			},
			"board": map[string]any{
				"in_progress":      len(board.InProgress()),
				"submitted":        len(board.Submitted()),
				"recently_updated": board.RecentlyUpdated(),
			},
			"notifications": map[string]any{
				"visible":     len(coordinator.Entries()),
				"audio_ready": coordinator.AudioReady(),
			},
		}
		if journalWriter != nil {
			stats["journal"] = journalWriter.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}

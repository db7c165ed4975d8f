package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aryannaik/nexus/internal/aggregate"
	"github.com/aryannaik/nexus/internal/config"
	"github.com/aryannaik/nexus/internal/embeddings"
	"github.com/aryannaik/nexus/internal/karakeep"
	"github.com/aryannaik/nexus/internal/logging"
	"github.com/aryannaik/nexus/internal/memory"
	"github.com/aryannaik/nexus/internal/miniflux"
	"github.com/aryannaik/nexus/internal/nexus"
	"github.com/aryannaik/nexus/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nexus",
		Short:         "Personal data aggregation: bookmarks, feeds and memories behind one API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
	cmd.AddCommand(rememberCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(forgetCmd())
	return cmd
}

// app holds everything built from one Config.
type app struct {
	cfg      *config.Config
	store    *memory.Store
	ollama   *embeddings.Client
	memory   *memory.Service
	bookmark *karakeep.Client
	feeds    *miniflux.Client
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	store, err := memory.Open(cfg.MemoryDBPath)
	if err != nil {
		return nil, err
	}

	ollama := embeddings.NewClient(cfg.OllamaHost, cfg.EmbedModel)
	embedder, err := embeddings.NewCache(ollama, cfg.EmbedCacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		store:    store,
		ollama:   ollama,
		memory:   memory.NewService(store, embedder),
		bookmark: karakeep.NewClient(cfg.KarakeepBaseURL, cfg.KarakeepAPIKey),
		feeds:    miniflux.NewClient(cfg.MinifluxBaseURL, cfg.MinifluxAPIKey),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("close memory store", "err", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	agg := aggregate.New(map[nexus.Source]aggregate.Adapter{
		nexus.SourceBookmark: a.bookmark,
		nexus.SourceFeed:     a.feeds,
		nexus.SourceMemory:   aggregate.Memory(a.memory),
	}, aggregate.WithTimeout(a.cfg.AdapterTimeout))

	handlers := server.NewHandlers(agg, a.bookmark, a.feeds, a.memory, a.ollama, a.cfg.AdapterTimeout)
	limiter := server.NewRateLimiter(a.cfg.RateLimitRPM, 0)
	srv := server.New(a.cfg.Addr(), handlers, limiter)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "err", err)
	}

	slog.Info("goodbye")
	return nil
}

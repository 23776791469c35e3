package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/gemini-image-studio/pkg/adapters"
	"github.com/shouni/gemini-image-studio/pkg/builder"
	"github.com/shouni/gemini-image-studio/pkg/config"
	"github.com/shouni/gemini-image-studio/pkg/generator"
	"github.com/shouni/gemini-image-studio/pkg/kvstore"
	"github.com/shouni/gemini-image-studio/pkg/server"
	"github.com/shouni/gemini-image-studio/pkg/session"
	"github.com/shouni/gemini-image-studio/pkg/studio"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("起動に失敗しました", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           cfg.LogLevel,
		ReportTimestamp: true,
		Prefix:          "studio",
	})
	slog.SetDefault(slog.New(handler))
	if cfg.LogLevel > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := kvstore.OpenBolt(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	store := session.NewStore(db)
	if err := store.Restore(ctx); err != nil {
		return err
	}

	models, err := adapters.NewModels(ctx, cfg.APIKey)
	if err != nil {
		return err
	}
	core := adapters.NewGeminiImageCore(
		httpkit.New(cfg.FetchTimeout),
		cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cfg.CacheTTL,
	)
	remote, err := adapters.NewGeminiClient(core, models, adapters.ModelNames{
		Image:    cfg.ImageModel,
		Edit:     cfg.EditModel,
		Analysis: cfg.AnalysisModel,
	})
	if err != nil {
		return err
	}
	dispatcher, err := generator.NewDispatcher(remote)
	if err != nil {
		return err
	}
	svc, err := studio.NewService(store, builder.NewBuilder(cfg.APIKey), dispatcher, core)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(svc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("サーバーを起動します", "addr", cfg.Addr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("サーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("サーバーを停止しました")
	return nil
}

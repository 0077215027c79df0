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

	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/formfill/internal/api"
	"github.com/kdimtricp/formfill/internal/config"
	"github.com/kdimtricp/formfill/internal/database"
	"github.com/kdimtricp/formfill/internal/download"
	"github.com/kdimtricp/formfill/internal/extraction"
	"github.com/kdimtricp/formfill/internal/session"
	"github.com/kdimtricp/formfill/internal/status"
	"github.com/kdimtricp/formfill/internal/storage"
	"github.com/kdimtricp/formfill/internal/templates"
	"github.com/kdimtricp/formfill/internal/upload"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server.fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	registry := templates.NewBuiltinRegistry()
	if cfg.Session.TemplatesFile != "" {
		registry, err = templates.LoadOverlay(registry, cfg.Session.TemplatesFile)
		if err != nil {
			return err
		}
		logger.Info("server.templates.overlay", "path", cfg.Session.TemplatesFile)
	}

	client, err := extraction.NewClient(extraction.Config{
		BaseURL: cfg.Extraction.URL,
		Timeout: cfg.Extraction.Timeout,
	}, logger)
	if err != nil {
		return err
	}

	localStorage, err := storage.NewLocalStorage(cfg.Server.UploadDir, cfg.Server.MaxUploadSize)
	if err != nil {
		return err
	}

	// History stays nil interfaces when auditing is disabled.
	var (
		recorder upload.Recorder
		lister   api.HistoryLister
	)
	if dbConfig, ok := cfg.DB(); ok {
		db, err := database.NewDB(dbConfig)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := database.NewHistoryRepository(db)
		recorder, lister = repo, repo

		if dbConfig.Type == "postgres" {
			logger.Info("server.database", "type", dbConfig.Type, "host", dbConfig.Host, "port", dbConfig.Port, "name", dbConfig.Name)
		} else {
			logger.Info("server.database", "type", dbConfig.Type, "path", dbConfig.SQLitePath)
		}
	}

	manager := session.NewManager(registry, session.Options{
		StatusInterval: cfg.Session.StatusInterval,
		Scheduler:      status.RealScheduler,
		TTL:            cfg.Session.TTL,
	}, logger)

	app := &api.App{
		Sessions: manager,
		Uploads: upload.NewController(client, localStorage, recorder, upload.Config{
			ServiceURL: client.BaseURL(),
			Timeout:    client.Timeout(),
		}, logger),
		Downloads:     download.NewController(api.DownloadPath, logger),
		Artifacts:     client,
		History:       lister,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		WebDir:        cfg.Server.WebDir,
		Logger:        logger,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server.start",
			"port", cfg.Server.Port,
			"extraction_url", client.BaseURL(),
			"extraction_timeout", client.Timeout(),
			"upload_dir", cfg.Server.UploadDir,
			"max_upload_size", cfg.Server.MaxUploadSize,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return manager.Run(gctx, sweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server.shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Command postulod serves the HTTP API: subject accounts, application
// history, and run launching with Server-Sent-Events progress.
//
// Usage:
//
//	postulod -listen :8080 -db postulo.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/postulo/postulo/dbopen"
	"github.com/postulo/postulo/ledger"
	"github.com/postulo/postulo/profile"
	"github.com/postulo/postulo/scraper"
	"github.com/postulo/postulo/webapi"
)

func main() {
	listen := flag.String("listen", env("POSTULOD_LISTEN", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", env("POSTULOD_DB", "postulo.db"), "database path")
	configPath := flag.String("config", env("POSTULOD_CONFIG", ""), "path to postulo.yaml config file")
	logLevel := flag.String("log-level", env("POSTULOD_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *listen, *dbPath, *configPath); err != nil {
		logger.Error("postulod: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, listen, dbPath, configPath string) error {
	db, err := dbopen.Open(dbPath,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(profile.Schema),
		dbopen.WithSchema(ledger.Schema),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cfg := scraper.DefaultConfig()
	if configPath != "" {
		if cfg, err = scraper.LoadFile(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	store := ledger.NewStore(db)
	engine := scraper.New(cfg,
		scraper.WithLogger(logger),
		scraper.WithLedger(scraper.NewStoreLedger(store)),
	)

	svc := webapi.New(profile.NewStore(db), store, webapi.EngineRunner{Engine: engine}, logger)

	srv := &http.Server{
		Addr:    listen,
		Handler: svc.Router(),
		// No WriteTimeout: run streams stay open for many minutes.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("postulod: listening", "addr", listen, "db", dbPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("postulod: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

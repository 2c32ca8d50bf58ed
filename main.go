package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deshhindi/config"
	"deshhindi/config/database"
	"deshhindi/internal/session/repository"
	"deshhindi/internal/transliterate"
	wpmService "deshhindi/internal/wpm/service"
	"deshhindi/pkg/logger"
	"deshhindi/router"
	"deshhindi/socket"
)

func main() {
	cfg, foundEnv, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if !foundEnv {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db, err := database.Connect(cfg.Database.DSN())
	if err != nil {
		logger.Sugar.Fatalf("Check your database settings: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to migrate database: %v", err)
	}

	translit := transliterate.NewClient(transliterate.Config{
		BaseURL:    cfg.Transliteration.BaseURL,
		InputTool:  cfg.Transliteration.InputTool,
		Candidates: cfg.Transliteration.Candidates,
		Timeout:    cfg.Transliteration.Timeout,
	})

	passages := wpmService.NewPassages(cfg.PassagesFile)
	if err := passages.Load(); err != nil {
		logger.Sugar.Warnf("Using built-in wpm passages: %v", err)
	}

	done := make(chan struct{})

	// The hub owns live editing rooms; the SaveWorker stores them periodically.
	hub := socket.NewHub(repository.NewSessionRepository(db), translit)
	go hub.Run()
	saved := make(chan struct{})
	go func() {
		hub.SaveWorker(cfg.AutosaveInterval, done)
		close(saved)
	}()

	go func() {
		if err := passages.WatchAndReload(done); err != nil {
			logger.Sugar.Warnf("Stopped watching wpm passages: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Setup(cfg, db, hub, translit, passages),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Sugar.Infof("Go Backend listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Graceful shutdown failed: %v", err)
	}

	// Store whatever the open editors have not saved yet.
	close(done)
	<-saved
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"faceid/internal/config"
	"faceid/internal/database/postgres"
	"faceid/internal/files"
	"faceid/internal/logging"
	"faceid/internal/people"
	"faceid/internal/recognition"
	"faceid/internal/web"
	"faceid/internal/web/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the faceid web server. The server exposes the JSON API for
person management, photo uploads and face identification.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	applied, err := pool.Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		log.Infow("migrations applied", "files", applied)
	}

	fileStore, err := files.NewStore(cfg.Upload, log)
	if err != nil {
		return err
	}

	personRepo := postgres.NewPersonRepository(pool, log)
	photoRepo := postgres.NewPhotoRepository(pool, log)
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	statsRepo := postgres.NewStatsRepository(pool)

	extractor := recognition.NewHTTPExtractor(cfg.Extractor.URL, log)
	peopleService := people.NewService(personRepo, photoRepo, fileStore, extractor, log)
	identifier := recognition.NewIdentifier(personRepo, photoRepo, fileStore, extractor, cfg.Recognition.Threshold, log)
	sessions := middleware.NewSessionManager(
		cfg.Session.Secret,
		time.Duration(cfg.Session.DurationHours)*time.Hour,
		sessionRepo,
		log,
	)

	server := web.NewServer(cfg, web.Dependencies{
		People:     peopleService,
		Identifier: identifier,
		Files:      fileStore,
		Users:      userRepo,
		Stats:      statsRepo,
		Sessions:   sessions,
		Log:        log,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Infow("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorw("error during shutdown", "error", err)
		}
	}()

	return server.Start()
}

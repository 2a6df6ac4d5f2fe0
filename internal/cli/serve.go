package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/drift/internal/feed"
	"github.com/lazypower/drift/internal/logger"
	"github.com/lazypower/drift/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Named("serve")

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc, err := feed.NewService(db, cfg.Scoring)
	if err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}

	slow, _ := cfg.SlowRequestDuration()
	srv := server.New(db, svc, VersionString(),
		server.WithSlowRequest(slow),
		server.WithCORS(cfg.Server.CORSOrigins...),
	)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("db", db.Path).
			Int("pool", cfg.Scoring.CandidatePoolSize).
			Float64("randomness", cfg.Scoring.Randomness).
			Msg("drift serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

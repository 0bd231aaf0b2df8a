package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"attendance-tracker/internal/config"
	"attendance-tracker/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and JSON API",
		Long: `Serve the dashboard, records and settings views plus the JSON API.
Changes made by other processes sharing the storage backend are pushed
to open pages over /events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withSession(cmd, rootOpts, func(s *session) error {
				if port != "" {
					s.cfg.HTTPPort = port
				}
				return runServe(ctx, s)
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (default $HTTP_PORT or 8081)")
	return cmd
}

func runServe(ctx context.Context, s *session) error {
	if s.cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := s.records.AttachCrossTabListener(ctx); err != nil {
		return err
	}

	srv, err := web.NewServer(s.records, web.Options{
		Logger:          s.logger,
		StorageDesc:     describeStorage(s.cfg),
		RateLimitPerMin: s.cfg.RateLimitPerMin,
		Health:          s.kv.Ping,
	})
	if err != nil {
		return fmt.Errorf("build web server: %w", err)
	}

	// WriteTimeout stays zero so /events streams are not cut off.
	httpSrv := &http.Server{
		Addr:              ":" + s.cfg.HTTPPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	httpSrv.RegisterOnShutdown(srv.CloseStreams)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("storage", s.cfg.StorageBackend),
			zap.String("key", s.records.Key()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown incomplete", zap.Error(err))
		_ = httpSrv.Close()
	}
	s.logger.Info("server exited")
	return nil
}

func describeStorage(cfg config.App) string {
	switch cfg.StorageBackend {
	case "memory":
		return "In-memory (lost on restart)"
	case "redis":
		return "Redis at " + cfg.RedisAddr
	case "postgres":
		return "PostgreSQL"
	case "sqlite":
		return "SQLite file " + cfg.SQLitePath
	default:
		return "JSON files in " + cfg.DataDir
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audit-ledger/config"
	httpHandler "audit-ledger/internal/adapter/http/handler"
	"audit-ledger/internal/core/ports"
	"audit-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "audit-ledger",
		Short:        "Audit trail store and credential history guard",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(statsCmd(&configPath))
	root.AddCommand(historyCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func statsCmd(configPath *string) *cobra.Command {
	var tenant, tz string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print audit statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			scope := ports.StatisticsScope{}
			if tenant != "" {
				scope.TenantScope = &tenant
			}
			if tz != "" {
				loc, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("loading time zone %q: %w", tz, err)
				}
				scope.Location = loc
			}

			a, err := buildApp(cmd.Context(), cfg, logger.NewWithWriter(cfg.Log.Level, cmd.ErrOrStderr()), false)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.auditSvc.Statistics(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Restrict statistics to one tenant scope")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone that defines \"today\"")
	return cmd
}

func historyCmd(configPath *string) *cobra.Command {
	var principal string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a principal's credential change history as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			principalID, err := uuid.Parse(principal)
			if err != nil {
				return fmt.Errorf("--principal must be a UUID: %w", err)
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger.NewWithWriter(cfg.Log.Level, cmd.ErrOrStderr()), false)
			if err != nil {
				return err
			}
			defer a.Close()

			changes, err := a.credSvc.History(cmd.Context(), principalID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), changes)
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "Principal ID")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret must be set to serve the API")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting audit ledger")

	a, err := buildApp(ctx, cfg, log, cfg.Redis.Enabled)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuditSvc:       a.auditSvc,
		CredentialSvc:  a.credSvc,
		TokenSvc:       a.tokenSvc,
		RateLimiter:    a.rateLimiter,
		RateLimits:     cfg.RateLimit,
		HealthCheckers: a.checkers,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Metrics:        cfg.Metrics,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	}
	return gin.ReleaseMode
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

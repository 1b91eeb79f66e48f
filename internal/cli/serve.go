package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/salespulse/internal/api"
	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/throttle"
	"github.com/opensource-finance/salespulse/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd.OutOrStdout())
		},
	}
}

func serve(ctx context.Context, cfg *domain.Config, out io.Writer) error {
	slog.Info("starting salespulse",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tracing", cfg.Tracing.Enabled,
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			slog.Error("failed to close resources", "error", err)
		}
	}()

	w := worker.NewWorker(a.bus, a.repo, a.cache, a.rules)
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	limiter := throttle.NewLimiter(a.cache, "generate", cfg.Analytics.GenerateRateLimit, cfg.Analytics.GenerateRateWindow)
	handler := api.NewHandler(a.analytics, a.repo, a.cache, a.bus, a.rules, Version)
	srv := api.NewServer(cfg.Server, handler, limiter)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("salespulse is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"generate_rate_limit", cfg.Analytics.GenerateRateLimit,
	)
	printBanner(out, cfg)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		_ = w.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	if err := w.Stop(); err != nil {
		slog.Error("failed to stop worker", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("salespulse shutdown complete")
	return nil
}

func printBanner(out io.Writer, cfg *domain.Config) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  SalesPulse - sales analytics reports")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Version:  %s\n", Version)
	fmt.Fprintf(out, "  Tier:     %s\n", cfg.Tier)
	fmt.Fprintf(out, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Endpoints:")
	fmt.Fprintln(out, "    GET    /api/analytics/generate?startDate=&endDate=  - Generate a report")
	fmt.Fprintln(out, "    GET    /api/analytics/reports                       - Report history")
	fmt.Fprintln(out, "    GET    /api/analytics/rules                         - List report rules")
	fmt.Fprintln(out, "    POST   /api/analytics/rules                         - Create or update a rule")
	fmt.Fprintln(out, "    DELETE /api/analytics/rules/{id}                    - Disable a rule")
	fmt.Fprintln(out, "    GET    /health, /ready                              - Liveness and readiness")
	fmt.Fprintln(out)
}

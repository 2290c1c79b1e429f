package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/vodcut/internal/adapters/http/api"
	"github.com/okian/vodcut/internal/adapters/mq/worker"
	service "github.com/okian/vodcut/internal/app"
	"github.com/okian/vodcut/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func buildServeCommand(st *state) *cobra.Command {
	var (
		addr        string
		autoAdvance bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP job API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				st.cfg.Addr = addr
			}
			if cmd.Flags().Changed("auto-advance") {
				st.cfg.AutoAdvance = autoAdvance
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, st)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides addr)")
	cmd.Flags().BoolVar(&autoAdvance, "auto-advance", true, "drive queued jobs in-process (overrides auto_advance)")
	return cmd
}

// isIdle reports whether an advance error only means there is nothing to do.
func isIdle(err error) bool {
	return errors.Is(err, service.ErrIdle)
}

func serve(ctx context.Context, st *state) error {
	cfg := st.cfg
	log := logger.Get()

	orch, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := orch.Close(); err != nil {
			log.Error(ctx, "close orchestrator", logger.Error(err))
		}
	}()

	if _, err := orch.Recover(ctx); err != nil {
		return err
	}

	var driver *worker.Driver
	if cfg.AutoAdvance {
		driver = worker.NewDriver(orch,
			worker.WithName("auto"),
			worker.WithInterval(cfg.AdvanceInterval()),
			worker.WithIdle(isIdle),
		)
		go driver.Run(ctx)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, orch)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(orch, orch).Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.Store),
			logger.Bool("auto_advance", cfg.AutoAdvance))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if driver != nil {
		if err := driver.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "driver shutdown failed", logger.Error(err))
		}
	}

	log.Info(ctx, "server stopped")
	return serveErr
}

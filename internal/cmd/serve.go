package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/repomotion/repomotion/internal/config"
	"github.com/repomotion/repomotion/internal/observability"
	"github.com/repomotion/repomotion/internal/server"
	"github.com/repomotion/repomotion/internal/server/handlers"
	"github.com/repomotion/repomotion/pkg/gitfetch"
	"github.com/repomotion/repomotion/pkg/history"
	"github.com/repomotion/repomotion/pkg/jobregistry"
	"github.com/repomotion/repomotion/pkg/orchestrator"
	"github.com/repomotion/repomotion/pkg/preflight"
	"github.com/repomotion/repomotion/pkg/render"
	"github.com/repomotion/repomotion/pkg/retention"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// outputDirChecker reports the artifact directory writable.
type outputDirChecker struct {
	dir string
}

func (c outputDirChecker) CheckHealth(ctx context.Context) error {
	info, err := os.Stat(c.dir)
	if err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output dir %s is not a directory", c.dir)
	}
	return nil
}

// toolsChecker reports whether the external pipeline binaries resolve.
type toolsChecker struct {
	checker *preflight.Checker
}

func (c toolsChecker) CheckHealth(ctx context.Context) error {
	results := c.checker.Check(ctx)
	if !preflight.AllAvailable(results) {
		for _, res := range results {
			if !res.Available {
				return fmt.Errorf("missing tool %s: %s", res.Binary, res.Detail)
			}
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	pf := preflight.NewChecker()
	for _, res := range pf.Check(cmd.Context()) {
		if !res.Available {
			log.Warn("pipeline tool unavailable",
				zap.String("binary", res.Binary),
				zap.String("detail", res.Detail))
		}
	}

	registry := jobregistry.New(log)
	orch := orchestrator.New(
		registry,
		gitfetch.NewCloner(log),
		history.NewAnalyzer(log),
		render.NewPipeline(log),
		orchestrator.Config{
			OutputDir:         cfg.Output.Dir,
			SecretKey:         cfg.Secret.Key,
			HideFilenamesOver: cfg.Jobs.HideFilenamesOver,
			RateLimit:         rate.Limit(cfg.Jobs.RatePerSecond),
			RateBurst:         cfg.Jobs.RateBurst,
		},
		log,
	)

	health := handlers.NewHealthManager(versionInfo.Version)
	health.RegisterChecker("output-dir", outputDirChecker{dir: cfg.Output.Dir})
	health.RegisterChecker("tools", toolsChecker{checker: pf})

	srv := server.New(server.Options{
		Registry:     registry,
		Orchestrator: orch,
		OutputDir:    cfg.Output.Dir,
		Health:       health,
		Version:      versionInfo.Version,
		Logger:       log,
	})

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	sweeper := retention.NewSweeper(cfg.Output.Dir, cfg.Retention.MaxAge, cfg.Retention.SweepInterval, log)
	go sweeper.Run(sweepCtx)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpSrv.Addr), zap.String("version", versionInfo.Version))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}

	cancelSweep()
	orch.Wait()
	return nil
}

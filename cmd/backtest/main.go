package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mohamedkhairy/tick-backtest/internal/backtest"
	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/pkg/logger"
)

var (
	configPath  string
	logLevel    string
	environment string
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "backtest",
		Short:         "Tick-level FX backtest runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest for every configured pair",
		RunE:  runBacktest,
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to the backtest YAML config (required)")
	runCmd.Flags().StringVar(&logLevel, "log-level", config.LoadEnv("TICKBT_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	runCmd.Flags().StringVar(&environment, "environment", "production", "logger environment: production or development")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics and /healthz (disabled when empty)")
	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logLevel, environment); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadBacktest(configPath)
	if err != nil {
		return err
	}

	coordinator, err := backtest.NewCoordinator(cfg, logger.Get())
	if err != nil {
		return err
	}

	logger.Info("Starting backtest run",
		logger.String("run_id", coordinator.RunID()),
		logger.String("config", configPath),
		logger.Int("pairs", len(cfg.Pairs)),
	)

	var server *http.Server
	if metricsAddr != "" {
		server = startMetricsServer(metricsAddr)
	}

	done := make(chan error, 1)
	go func() {
		done <- coordinator.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-done:
	case sig := <-sigChan:
		// The replay loop has no mid-run cancellation; an interrupt
		// abandons the run without a manifest.
		logger.Warn("Interrupt received; abandoning run", logger.String("signal", sig.String()))
		err = fmt.Errorf("run interrupted by %s", sig)
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
			logger.Error("Error shutting down metrics server", logger.ErrorField(shutdownErr))
		}
	}

	if err != nil {
		return err
	}

	if len(coordinator.PairFailures) > 0 {
		logger.Warn("Backtest run finished with pair failures",
			logger.Int("failed_pairs", len(coordinator.PairFailures)),
		)
	}
	logger.Info("Backtest run complete", logger.String("run_id", coordinator.RunID()))
	return nil
}

func startMetricsServer(addr string) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		logger.Info("Starting metrics server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", logger.ErrorField(err))
		}
	}()
	return server
}

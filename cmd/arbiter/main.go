package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"arbiter/internal/analysis"
	"arbiter/internal/config"
	"arbiter/internal/kernel"
	"arbiter/internal/metrics"
	"arbiter/internal/server"
	"arbiter/internal/store"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "arbiter - resonance and integrity pipeline for peer sessions",
	Long: `arbiter scores free-text input against a fixed library of linguistic
pressure patterns and maintains session-scoped integrity state: a
resonance value, pause decisions, and an audited suggestion block.

Detection is deterministic and CPU-only; no model writes user-facing
text in the core path.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.Verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Starts the turn pipeline behind an HTTP API:
  POST /api/turn      process one turn for a session
  POST /api/analyze   stateless pattern analysis
  GET  /api/witness   websocket stream of turn telemetry
  GET  /metrics       Prometheus metrics`,
	RunE: runServe,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Analyze text without touching any session state",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var recoverCmd = &cobra.Command{
	Use:   "recover [session-id] [shelf-id] [note...]",
	Short: "Integrate a shelved fracture with a justification note",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runRecover,
}

var resetCmd = &cobra.Command{
	Use:   "reset [session-id]",
	Short: "Purge a session's un-pinned peer tensors, preserving the spine",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func buildOrchestrator() (*kernel.Orchestrator, *store.Store, *prometheus.Registry, error) {
	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	orch := kernel.New(st, st, kernel.NewWitness(), m, kernel.Options{
		Mode:                analysis.ParseMode(cfg.Mode),
		SpineLimit:          cfg.Resonance.SpineLimit,
		PauseThreshold:      cfg.Integrity.PauseThreshold,
		ShelveThreshold:     cfg.Resonance.ShelveThreshold,
		PromoteCoherenceMin: cfg.Resonance.PromoteCoherenceMin,
	}, logger)

	if cfg.Rules.OverlayPath != "" {
		rs, err := analysis.LoadRuleset(cfg.Rules.OverlayPath)
		if err != nil {
			st.Close()
			return nil, nil, nil, err
		}
		orch.SetRuleset(rs)
	}
	return orch, st, reg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	orch, st, reg, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer st.Close()

	var watcher *analysis.Watcher
	if cfg.Rules.OverlayPath != "" && cfg.Rules.Watch {
		watcher, err = analysis.NewWatcher(cfg.Rules.OverlayPath, logger, orch.SetRuleset)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(orch, st, reg, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", zap.String("addr", cfg.Server.Addr), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	res := analysis.Analyze(text, analysis.ParseMode(cfg.Mode))

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRecover(cmd *cobra.Command, args []string) error {
	orch, st, _, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer st.Close()

	ok, err := orch.Recover(args[0], args[1], strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("not integrated: entry missing or not currently SHELVED")
		return nil
	}
	fmt.Println("integrated")
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	orch, st, _, err := buildOrchestrator()
	if err != nil {
		return err
	}
	defer st.Close()

	purged, err := orch.Reset(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("purged %d peer tensor(s)\n", purged)
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(resetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

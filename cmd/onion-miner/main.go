package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/screa/onion-vanity-miner/internal/config"
	logpkg "github.com/screa/onion-vanity-miner/internal/logger"
	minerpkg "github.com/screa/onion-vanity-miner/pkg/miner"
	"github.com/screa/onion-vanity-miner/pkg/types"
	"github.com/screa/onion-vanity-miner/pkg/worker"
)

var (
	cfg    = config.NewConfig()
	logger *logpkg.Logger
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "onion-miner -p <prefix> [-p <prefix>...]",
		Short: "Vanity Tor v3 onion address miner",
		Long: `A command line utility for mining Tor v3 onion addresses.
Candidate ed25519 keys are derived incrementally and matched against
base32 prefixes; each match is saved with its raw private scalar.`,
		Run: runMiner,
	}

	flags := rootCmd.Flags()
	flags.StringArrayVarP(&cfg.Prefixes, "prefix", "p", nil, "Address prefix to match (repeatable, a-z and 2-7)")
	flags.IntVarP(&cfg.Count, "count", "n", 0, "Stop after this many matches (0 = unlimited)")
	flags.IntVarP(&cfg.Timeout, "timeout", "t", 0, "Stop after this many seconds (0 = unlimited)")
	flags.IntVarP(&cfg.Blocks, "blocks", "b", cfg.Blocks, "Parallel blocks per invocation")
	flags.IntVarP(&cfg.Batches, "batches", "l", cfg.Batches, "Batches per invocation")
	flags.IntVar(&cfg.Threads, "threads", worker.DefaultThreadsPerBlock, "Threads per block")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of worker goroutines")
	flags.StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory for result files")
	flags.StringVar(&cfg.HSDir, "hs-dir", "", "Also write Tor hidden service directories under this path")
	flags.IntVarP(&cfg.LogInterval, "log-interval", "i", cfg.LogInterval, "Progress logging interval in seconds")
	flags.StringVar(&cfg.LogFile, "log-file", "", "Log file for progress tracking (default: stdout)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9100")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Config file (yaml, json or toml)")

	return rootCmd
}

func runMiner(cmd *cobra.Command, args []string) {
	if err := loadConfig(cmd); err != nil {
		os.Exit(exitCode(err))
	}

	// Setup logging
	closeLog := setupLogging()
	defer closeLog()

	for _, r := range cfg.Rejections() {
		logger.Warnf("Skipped prefix %s", r)
	}
	logger.Printf("Starting onion miner with %d workers...", cfg.Workers)
	logger.Printf("Target: %s", cfg.GetTargetDescription())
	logger.Printf("Geometry: %d blocks x %d threads x %d batches x %d keys",
		cfg.Blocks, cfg.Threads, cfg.Batches, worker.BatchSize)
	if cfg.ConfigFile != "" {
		logger.Printf("Config file: %s", cfg.ConfigFile)
	}

	miner, err := minerpkg.NewMiner(cfg, logger)
	if err != nil {
		logger.Errorf("Failed to create miner: %v", err)
		os.Exit(exitCode(err))
	}

	stopMetrics := startMetricsServer(cfg.MetricsAddr)
	defer stopMetrics()

	// Ctrl+C stops the loop after the current invocation
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := miner.Mine(ctx)
	logSummary(summary)
	if err != nil {
		logger.Errorf("Mining failed: %v", err)
		closeLog()
		os.Exit(exitCode(err))
	}
}

// loadConfig layers flags, environment and config file into cfg and validates it.
// Errors are reported on the command's error stream, with usage text when no
// prefix survived.
func loadConfig(cmd *cobra.Command) error {
	stderr := cmd.ErrOrStderr()

	v := config.NewViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}
	if err := cfg.Load(v); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		for _, r := range cfg.Rejections() {
			fmt.Fprintf(stderr, "Skipped prefix %s\n", r)
		}
		if errors.Is(err, config.ErrNoPrefixes) {
			_ = cmd.Usage()
		}
		return err
	}
	return nil
}

// exitCode maps a startup or mining error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func logSummary(summary *types.Summary) {
	if summary == nil {
		return
	}

	switch summary.State {
	case minerpkg.StateCancelled:
		logger.Println("Mining stopped by user.")
	case minerpkg.StateTimedOut:
		logger.Println("Timeout reached.")
	case minerpkg.StateLimitReached:
		logger.Println("Match limit reached.")
	}

	for _, rec := range summary.Records {
		logger.Printf("Found: %s", rec.Address)
	}
	logger.Printf("Matches: %d", summary.Matches)
	logger.Printf("Keys checked: %s", humanize.Comma(int64(summary.KeysChecked)))
	logger.Printf("Duration: %v", summary.Duration.Round(time.Millisecond))
	logger.Printf("Rate: %s", humanize.SIWithDigits(summary.Rate(), 2, "keys/s"))
}

func setupLogging() func() {
	closeFn := func() {}
	if cfg.LogFile != "" {
		// Log to file
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		logger = logpkg.NewWriter(file)
		closeFn = func() { _ = file.Close() }
	} else {
		// Log to stdout
		logger = logpkg.New()
	}

	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	if err := logger.SetLevel(level); err != nil {
		logger.Warnf("Unknown log level %q, using info", level)
	}
	return closeFn
}

func startMetricsServer(addr string) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Infof("Starting prometheus endpoint on %s/metrics", addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alvmarrod/graph-crawler/internal/client"
	"github.com/alvmarrod/graph-crawler/internal/config"
	"github.com/alvmarrod/graph-crawler/internal/crawler"
	"github.com/alvmarrod/graph-crawler/internal/metrics"
	"github.com/alvmarrod/graph-crawler/internal/storage"
	"github.com/alvmarrod/graph-crawler/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrArgument marks a bad command line; nothing has been crawled when it is returned.
var ErrArgument = errors.New("invalid arguments")

const usageLine = "graphcrawler [flags] <start_label> <depth> <worker_count>"

// rootFlags holds flag values that override the config file
type rootFlags struct {
	configPath  string
	strategy    string
	endpoint    string
	budget      time.Duration
	exportDB    string
	metricsFile string
	metricsAddr string
	debug       bool
}

// NewRootCmd creates the graphcrawler command
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   usageLine,
		Short: "Concurrent breadth-first crawler for a neighbor lookup service",
		Long: `graphcrawler discovers the graph around <start_label> by querying a remote
"neighbors of X" service, expanding the frontier with <worker_count> workers
until <depth> levels have been explored.

The static strategy expands one level at a time with a barrier between levels.
The dynamic strategy drains one shared queue and stops when no work is left.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("%w: expected 3 arguments, got %d\nusage: %s", ErrArgument, len(args), usageLine)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	// flags come first; everything from the start label on is positional,
	// so a negative depth or worker count reaches parseArgs
	f.SetInterspersed(false)
	f.StringVarP(&flags.configPath, "config", "c", "", "JSON or YAML config file")
	f.StringVarP(&flags.strategy, "strategy", "s", "", "frontier strategy: static or dynamic")
	f.StringVar(&flags.endpoint, "endpoint", "", "neighbor lookup endpoint")
	f.DurationVar(&flags.budget, "budget", 0, "time cap for a dynamic crawl (0 = until exhausted)")
	f.StringVar(&flags.exportDB, "export-db", "", "write the result to this SQLite file")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "write run metrics to this JSON file")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVarP(&flags.debug, "debug", "d", false, "log every request and discovered neighbor")

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseArgs validates the positional arguments
func parseArgs(args []string) (start string, depth, workers int, err error) {
	start = args[0]
	if start == "" {
		return "", 0, 0, fmt.Errorf("%w: start label must not be empty", ErrArgument)
	}

	depth, err = strconv.Atoi(args[1])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: depth must be an integer", ErrArgument)
	}
	if depth < 0 {
		return "", 0, 0, fmt.Errorf("%w: depth must be >= 0", ErrArgument)
	}

	workers, err = strconv.Atoi(args[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: worker count must be an integer", ErrArgument)
	}
	if workers < 1 {
		return "", 0, 0, fmt.Errorf("%w: worker count must be >= 1", ErrArgument)
	}

	return start, depth, workers, nil
}

// loadConfig merges the config file, flags and positional arguments
func loadConfig(cmd *cobra.Command, flags *rootFlags, depth, workers int) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("strategy") {
		cfg.Strategy = flags.strategy
	}
	if f.Changed("endpoint") {
		cfg.Endpoint = flags.endpoint
	}
	if f.Changed("budget") {
		cfg.CrawlBudgetMs = int(flags.budget.Milliseconds())
	}
	if f.Changed("export-db") {
		cfg.DBPath = flags.exportDB
	}
	if f.Changed("metrics-file") {
		cfg.MetricsPath = flags.metricsFile
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if f.Changed("debug") {
		cfg.Debug = flags.debug
	}
	cfg.MaxDepth = depth
	cfg.ConcurrentWorkers = workers

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(cmd *cobra.Command, debug bool) {
	logrus.SetOutput(cmd.ErrOrStderr())
	logrus.SetLevel(logrus.InfoLevel)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func run(cmd *cobra.Command, args []string, flags *rootFlags) error {
	start, depth, workers, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, flags, depth, workers)
	if err != nil {
		return err
	}

	setupLogging(cmd, cfg.Debug)
	logrus.Infof("Graph Crawler v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: endpoint=%s, strategy=%s, depth=%d, workers=%d",
		cfg.Endpoint, cfg.Strategy, cfg.MaxDepth, cfg.ConcurrentWorkers)

	reg := prometheus.NewRegistry()
	tracker := metrics.NewTracker(reg)

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, reg)
		defer shutdown()
	}

	newFetcher := func(id int) crawler.Fetcher {
		return client.NewNeighborClient(client.Options{
			Endpoint:       cfg.Endpoint,
			UserAgent:      cfg.UserAgent,
			RequestTimeout: cfg.RequestTimeout(),
			RetryAttempts:  cfg.RetryAttempts,
			RetryDelay:     cfg.RetryDelay(),
		})
	}

	c, err := crawler.NewCrawler(crawler.Options{
		Strategy:      storage.Strategy(cfg.Strategy),
		MaxDepth:      cfg.MaxDepth,
		Workers:       cfg.ConcurrentWorkers,
		Budget:        cfg.CrawlBudget(),
		VisitedShards: cfg.VisitedShards,
	}, newFetcher, tracker)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := c.Crawl(ctx, start)
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), res); err != nil {
		return fmt.Errorf("failed to print result: %w", err)
	}

	logrus.Info("Final stats: " + tracker.LogProgress())
	exportResult(cfg, tracker, res)

	return nil
}

// serveMetrics exposes reg over HTTP until the returned func is called
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logrus.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Metrics server failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Warnf("Metrics server shutdown: %v", err)
		}
	}
}

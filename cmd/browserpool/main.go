// Package main provides the browserpool command, which runs scripted browser
// actions against a bounded pool of idle-expiring browser sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/entrhq/browserpool/pkg/config"
	"github.com/entrhq/browserpool/pkg/engine"
	"github.com/entrhq/browserpool/pkg/logging"
	"github.com/entrhq/browserpool/pkg/sessionpool"
	"github.com/entrhq/browserpool/pkg/tools"
	"github.com/entrhq/browserpool/pkg/tools/browser"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	Script      string
	Engine      string
	Headless    bool
	Stealth     bool
	LogLevel    string
	Verbose     bool
	Metrics     bool
	ShowVersion bool

	// set records which flags were given explicitly, so only those
	// override the stored configuration.
	set map[string]bool
}

func main() {
	cfg := parseFlags(os.Args[1:])

	if cfg.ShowVersion {
		fmt.Printf("browserpool v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	failed, err := run(ctx, cfg, os.Stdin, os.Stdout)
	stop()
	if err != nil {
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(2)
	}
}

// parseFlags parses command line flags
func parseFlags(args []string) *CLIConfig {
	cfg := &CLIConfig{set: make(map[string]bool)}
	fs := flag.NewFlagSet("browserpool", flag.ExitOnError)

	fs.StringVar(&cfg.ConfigFile, "config", "", "Path to configuration file (JSON or YAML, default ~/.browserpool/config.json)")
	fs.StringVar(&cfg.Script, "script", "-", "YAML script of browser steps, or a file of XML tool calls ('-' reads tool calls from stdin)")
	fs.StringVar(&cfg.Engine, "engine", "", "Browser engine: playwright or rod (overrides config)")
	fs.BoolVar(&cfg.Headless, "headless", true, "Run the browser without a window (overrides config)")
	fs.BoolVar(&cfg.Stealth, "stealth", false, "Hide automation fingerprints, rod engine only (overrides config)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Mirror log lines to stderr")
	fs.BoolVar(&cfg.Metrics, "metrics", false, "Print pool metrics to stderr on exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "browserpool - pooled browser sessions for scripted automation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: browserpool [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run a YAML script headed with rod\n")
		fmt.Fprintf(os.Stderr, "  browserpool -script checkout.yaml -engine rod -headless=false\n\n")
		fmt.Fprintf(os.Stderr, "  # Pipe XML tool calls\n")
		fmt.Fprintf(os.Stderr, "  cat calls.xml | browserpool\n\n")
	}

	_ = fs.Parse(args)
	fs.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })
	return cfg
}

// applyOverrides copies explicitly given flags onto the browser section.
func applyOverrides(cfg *CLIConfig, section *config.BrowserSection) error {
	overrides := make(map[string]interface{})
	if cfg.set["engine"] {
		overrides["engine"] = cfg.Engine
	}
	if cfg.set["headless"] {
		overrides["headless"] = cfg.Headless
	}
	if cfg.set["stealth"] {
		overrides["stealth"] = cfg.Stealth
	}
	if len(overrides) > 0 {
		if err := section.SetData(overrides); err != nil {
			return err
		}
	}
	return section.Validate()
}

// run wires the pool and executes the script. It returns the number of
// failed steps.
func run(ctx context.Context, cfg *CLIConfig, stdin io.Reader, stdout io.Writer) (int, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return 0, err
	}
	logging.SetLevel(level)
	if cfg.Verbose {
		logging.SetMirror(os.Stderr)
	}

	if initErr := config.Initialize(cfg.ConfigFile); initErr != nil {
		return 0, fmt.Errorf("failed to initialize configuration: %w", initErr)
	}
	section := config.GetBrowser()
	if err := applyOverrides(cfg, section); err != nil {
		return 0, fmt.Errorf("invalid configuration: %w", err)
	}

	script, calls, err := loadCalls(cfg.Script, stdin)
	if err != nil {
		return 0, err
	}

	logger, logErr := logging.NewLogger("pool")
	if logErr != nil {
		log.Printf("Warning: %v", logErr)
	}
	defer logger.Close()

	provider, err := engine.New(section.GetEngine(), engine.Options{
		Headless: section.IsHeadless(),
		Stealth:  section.UseStealth(),
		Logger:   logger,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to start browser engine: %w", err)
	}

	registry := prometheus.NewRegistry()
	opts := section.PoolOptions()
	opts.Logger = logger
	opts.Metrics = sessionpool.NewMetrics(registry)

	pool, err := sessionpool.New(provider, opts)
	if err != nil {
		_ = provider.Release()
		return 0, fmt.Errorf("failed to create session pool: %w", err)
	}
	defer func() {
		if shutdownErr := pool.Shutdown(); shutdownErr != nil {
			logger.Errorf("Shutdown: %v", shutdownErr)
		}
		if cfg.Metrics {
			dumpMetrics(registry, os.Stderr)
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go pool.RunSweeper(sweepCtx, section.GetSweepInterval())

	screenshots, err := section.ResolveScreenshotsDir()
	if err != nil {
		return 0, err
	}
	tool := browser.New(pool, browser.Options{ScreenshotsDir: screenshots})
	exec := tools.NewRegistry(tool)

	logger.Infof("Starting browserpool v%s (engine %s, max sessions %d)", version, section.GetEngine(), opts.MaxSessions)

	if script != nil {
		return runScript(ctx, exec, script, stdout)
	}
	return runCalls(ctx, exec, calls, stdout)
}

// dumpMetrics writes every gathered metric family in the text exposition format.
func dumpMetrics(g prometheus.Gatherer, w io.Writer) {
	families, err := g.Gather()
	if err != nil {
		fmt.Fprintf(w, "failed to gather metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			fmt.Fprintf(w, "failed to write metric %s: %v\n", mf.GetName(), err)
		}
	}
}

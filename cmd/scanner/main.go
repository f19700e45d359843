package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/logger"
	"github.com/dpdplabs/pii-scanner/internal/privacy"
	"github.com/dpdplabs/pii-scanner/internal/report"
	"github.com/dpdplabs/pii-scanner/internal/rules"
	"github.com/dpdplabs/pii-scanner/internal/scan"
	"github.com/dpdplabs/pii-scanner/internal/server"
	"go.uber.org/zap"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		environment = flag.String("env", "", "Rule environment override (takes precedence over the environment variable and configuration)")
		outputPath  = flag.String("output", "", "Report output path (overrides configuration)")
		serve       = flag.Bool("serve", false, "Run the analyze API server instead of a filesystem scan")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("pii-scanner %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *outputPath != "" {
		cfg.Output.Path = *outputPath
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting pii-scanner",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
	)

	// Resolve the rule set once, before any scanning begins. Resolution
	// failures are fatal: a partially-resolved rule set must never be used.
	cache := rules.NewCache()
	compiler := rules.NewCompiler(cache)
	loader := rules.NewLoader(cfg.RuleEngine, compiler, log.WithComponent("rules"))

	ruleSet, err := loader.Load(*environment)
	if err != nil {
		log.Fatal("Rule resolution failed", zap.Error(err))
	}

	detector, err := privacy.New(cfg.Detector, ruleSet, compiler, log.WithComponent("privacy"))
	if err != nil {
		log.Fatal("Failed to build detector", zap.Error(err))
	}

	scanner := scan.New(cfg, detector, ruleSet, log.WithComponent("scan"))

	if *serve || cfg.Server.Enabled {
		// The resolved rule set is immutable for the lifetime of the process;
		// config edits need a restart to take effect.
		if err := config.Watch(cfg, func(*config.Config) {
			log.Warn("Configuration file changed; restart to apply new rules")
		}); err != nil {
			log.Warn("Failed to watch configuration file", zap.Error(err))
		}

		runServer(cfg, scanner, log)
		return
	}

	runScan(cfg, scanner, log)
}

// runScan executes a filesystem scan and writes the report.
func runScan(cfg *config.Config, scanner *scan.Scanner, log *logger.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := scanner.Run(ctx)
	if err != nil {
		log.Fatal("Scan failed", zap.Error(err))
	}

	if err := report.Write(cfg.Output.Path, rep, cfg.Output.Pretty); err != nil {
		log.Fatal("Failed to write report", zap.Error(err))
	}

	log.Info("Report written",
		zap.String("path", cfg.Output.Path),
		zap.Int("findings", rep.Stats.TotalFindings),
	)
}

// runServer runs the analyze API with graceful shutdown.
func runServer(cfg *config.Config, scanner *scan.Scanner, log *logger.Logger) {
	srv := server.New(cfg, scanner, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"tycho-hq/meridian/pkg/catalog"
	"tycho-hq/meridian/pkg/cli"
	"tycho-hq/meridian/pkg/config"
	"tycho-hq/meridian/pkg/failover"
	"tycho-hq/meridian/pkg/gateway"
	"tycho-hq/meridian/pkg/health"
	"tycho-hq/meridian/pkg/processing/tokens"
	"tycho-hq/meridian/pkg/providerfactory"
	"tycho-hq/meridian/pkg/providers"
	"tycho-hq/meridian/pkg/quota"
	"tycho-hq/meridian/pkg/routing"
	"tycho-hq/meridian/pkg/server"
	"tycho-hq/meridian/pkg/store"
	"tycho-hq/meridian/pkg/telemetry/logging"
	"tycho-hq/meridian/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Meridian gateway server",
	Long: `Start the Meridian gateway server with the specified configuration.

The gateway listens on the configured address, accepts OpenAI-compatible
chat completion requests, and routes each one across the configured
providers with tiered fallback.

Examples:
  # Start with the default config
  meridian run

  # Start with a custom config
  meridian run --config /etc/meridian/meridian.yaml

  # Override the listen address
  meridian run --listen 0.0.0.0:8080

  # Load and resolve the full configuration without starting the server
  meridian run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "build the catalog and exit without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, gitSource, configPath, err := resolveConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.Listen = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	slog.SetDefault(logger)

	printBanner(cfg)

	cat, err := catalog.New(cfg)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("build catalog: %w", err))
	}
	catalogs := catalog.NewHandle(cat)

	if runFlags.dryRun {
		fmt.Printf("✓ Configuration valid: %d providers (%d enabled), %d models, %d aliases\n",
			len(cat.Providers()), countEnabled(cat), len(cat.Models()), len(cat.Aliases()))
		return nil
	}

	registry, err := providerfactory.BuildRegistry(cat)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("build drivers: %w", err))
	}
	drivers := providerfactory.NewHandle(registry)
	defer func() {
		if reg := drivers.Current(); reg != nil {
			reg.Close()
		}
	}()
	fmt.Printf("✓ Providers initialized (%d drivers)\n", len(registry.Names()))

	kv, err := store.Open(cfg.Store, logger)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("open store: %w", err))
	}
	defer kv.Close()
	fmt.Printf("✓ Store ready (%s backend)\n", cfg.Store.Backend)

	// Root context: cancelled on SIGINT/SIGTERM so the background loops
	// (sweeper, config watcher, git poller) stop alongside the server.
	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	sweeper := store.NewSweeper(kv, cfg.Store.SQLite.CleanupSchedule, logger)
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("start sweeper: %w", err))
	}

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	updateCatalogMetrics(collector, cat)

	healthStore := health.New(kv, logger)
	tracker := quota.New(kv, catalogs, healthStore, logger)
	stats := routing.NewStats(cfg.Routing.StatsWindowSize)
	router := routing.New(healthStore, tracker, stats, cfg.Routing, logger)
	pipeline := failover.NewPipeline(drivers, &meteredQuota{tracker: tracker, metrics: collector}, stats, cfg.Resilience, logger)
	orchestrator := failover.New(router, pipeline, &instrumentedHealth{store: healthStore, metrics: collector}, logger)
	frontend := gateway.New(catalogs, orchestrator, tokens.NewEstimator(cfg.Estimator), logger)

	startReloading(ctx, cfg, gitSource, configPath, catalogs, drivers, collector, logger)

	srv := server.NewServer(cfg.Server, server.Deps{
		Frontend: frontend,
		Catalogs: catalogs,
		Healths:  healthStore,
		Quotas:   tracker,
		Metrics:  collector,
		Logger:   logger,
	})

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.Listen)
	fmt.Printf("✓ Chat endpoint: http://%s/v1/chat/completions\n", cfg.Server.Listen)
	if collector.Enabled() {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.Listen, collector.Path())
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

// resolveConfig loads the effective configuration. For a file source that
// is the file named by --config. For a git source, the local file only
// bootstraps: it names the repository, the gateway config is then read
// from the checkout, and the bootstrap's source settings are retained so
// polling keeps tracking the same repository.
func resolveConfig() (*config.Config, *config.GitSource, string, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, "", cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.Source.Type != "git" {
		return cfg, nil, cfgFile, nil
	}

	gitSource, err := config.NewGitSource(cfg.Source.Git, nil)
	if err != nil {
		return nil, nil, "", cli.NewConfigError("config_source.git", err.Error())
	}
	if _, err := gitSource.Sync(context.Background()); err != nil {
		return nil, nil, "", cli.NewCommandError("run", fmt.Errorf("initial config sync: %w", err))
	}

	configPath := gitSource.ConfigPath()
	effective, err := config.LoadConfigWithEnvOverrides(configPath)
	if err != nil {
		return nil, nil, "", cli.NewConfigError("", fmt.Sprintf("failed to load config from checkout: %v", err))
	}
	effective.Source = cfg.Source

	return effective, gitSource, configPath, nil
}

// startReloading arms the configured reload mechanism. Only the catalog
// sections (providers, models, aliases, pricing) take effect on reload;
// server, store, and logging changes need a restart.
func startReloading(ctx context.Context, cfg *config.Config, gitSource *config.GitSource, configPath string, catalogs *catalog.Handle, drivers *providerfactory.Handle, collector *metrics.Collector, logger *slog.Logger) {
	reload := func() error {
		next, err := config.LoadConfigWithEnvOverrides(configPath)
		if err != nil {
			collector.RecordCatalogReload("error")
			return fmt.Errorf("reload config: %w", err)
		}
		nextCat, err := catalog.New(next)
		if err != nil {
			collector.RecordCatalogReload("error")
			return fmt.Errorf("rebuild catalog: %w", err)
		}
		nextReg, err := providerfactory.BuildRegistry(nextCat)
		if err != nil {
			collector.RecordCatalogReload("error")
			return fmt.Errorf("rebuild drivers: %w", err)
		}

		catalogs.Swap(nextCat)
		if old := drivers.Swap(nextReg); old != nil {
			old.Close()
		}

		collector.RecordCatalogReload("success")
		updateCatalogMetrics(collector, nextCat)
		slog.Info("catalog reloaded",
			"providers", len(nextCat.Providers()),
			"models", len(nextCat.Models()))
		return nil
	}

	switch {
	case gitSource != nil:
		go gitSource.Poll(ctx, reload)
		fmt.Printf("✓ Config source: git %s (branch %s), polling every %s\n",
			cfg.Source.Git.Repository, cfg.Source.Git.Branch, cfg.Source.Git.PollInterval)

	case cfg.Source.Watch:
		watcherCfg := config.DefaultFileWatcherConfig()
		watcherCfg.Path = configPath
		watcher, err := config.NewFileWatcher(watcherCfg, logger)
		if err != nil {
			slog.Error("config watcher unavailable, continuing without hot reload", "error", err)
			return
		}
		go func() {
			if err := watcher.Watch(ctx, reload); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		fmt.Printf("✓ Config source: file %s (watching for changes)\n", configPath)
	}
}

// instrumentedHealth layers metric recording over the health store so each
// recorded outcome reaches both.
type instrumentedHealth struct {
	store   *health.HealthStore
	metrics *metrics.Collector
}

func (ih *instrumentedHealth) RecordSuccess(ctx context.Context, providerID string) {
	ih.store.RecordSuccess(ctx, providerID)
	ih.metrics.UpdateProviderHealth(providerID, true)
}

func (ih *instrumentedHealth) RecordFailure(ctx context.Context, providerID string, class providers.ErrorClass, retryAfterHint time.Duration) {
	ih.store.RecordFailure(ctx, providerID, class, retryAfterHint)
	ih.metrics.RecordProviderError(providerID, string(class))

	// Mirror the health store's cooldown table: client errors and "none"
	// never place a cooldown.
	switch class {
	case providers.ErrorClassRateLimited, providers.ErrorClassAuth, providers.ErrorClassServer:
		ih.metrics.RecordCooldown(providerID, string(class))
		ih.metrics.UpdateProviderHealth(providerID, false)
	}
}

// meteredQuota layers budget gauge updates over the quota tracker.
type meteredQuota struct {
	tracker *quota.Tracker
	metrics *metrics.Collector
}

func (m *meteredQuota) Reserve(ctx context.Context, providerID string, now time.Time) bool {
	ok := m.tracker.Reserve(ctx, providerID, now)
	entry := m.tracker.Snapshot(ctx, providerID)
	m.metrics.UpdateQuotaUsage(providerID, int64(entry.Requests), int64(entry.RPMLimit))
	if !ok {
		m.metrics.RecordQuotaExhausted(providerID)
	}
	return ok
}

func (m *meteredQuota) CommitTokens(ctx context.Context, providerID string, tokens int64) {
	m.tracker.CommitTokens(ctx, providerID, tokens)
}

func updateCatalogMetrics(collector *metrics.Collector, cat *catalog.Catalog) {
	collector.UpdateCatalogInfo(len(cat.Providers()), countEnabled(cat), len(cat.Models()))
}

func countEnabled(cat *catalog.Catalog) int {
	enabled := 0
	for _, p := range cat.Providers() {
		if p.Enabled {
			enabled++
		}
	}
	return enabled
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Meridian v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("configuration summary",
		"providers", len(cfg.Providers),
		"canonical_models", len(cfg.CanonicalModels),
		"aliases", len(cfg.Aliases),
		"source", cfg.Source.Type,
		"store", cfg.Store.Backend,
	)
}

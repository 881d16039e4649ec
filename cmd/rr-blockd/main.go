package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/rr-block/internal/block/common/clock"
	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/config"
	"github.com/haukened/rr-block/internal/block/gateways/browser"
	"github.com/haukened/rr-block/internal/block/gateways/httpapi"
	"github.com/haukened/rr-block/internal/block/repos/listfile"
	"github.com/haukened/rr-block/internal/block/repos/ruleset"
	"github.com/haukened/rr-block/internal/block/repos/ruleset/bloom"
	"github.com/haukened/rr-block/internal/block/repos/ruleset/lru"
	"github.com/haukened/rr-block/internal/block/repos/state/bolt"
	"github.com/haukened/rr-block/internal/block/repos/state/memstore"
	"github.com/haukened/rr-block/internal/block/services/blocklist"
	"github.com/haukened/rr-block/internal/block/services/synchronizer"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-blockd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the blocking daemon
type Application struct {
	config  *config.AppConfig
	store   blocklist.StateStore
	engine  *ruleset.Engine
	browser *browser.Gateway // nil when BrowserMode is "off"
	service *blocklist.Service
	server  *httpapi.Server
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":        version,
		"env":            cfg.Env,
		"log_level":      cfg.LogLevel,
		"http_addr":      cfg.HTTPAddr,
		"state_backend":  cfg.StateBackend,
		"rules_capacity": cfg.RulesCapacity,
		"browser_mode":   cfg.BrowserMode,
	}, "Starting "+appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Daemon failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together.
// ctx bounds the lifetime of the browser connection.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	store, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build state store: %w", err)
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build rule engine: %w", err)
	}

	gw, tabs, err := buildBrowser(ctx, cfg, engine, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build browser gateway: %w", err)
	}

	scope, err := synchronizer.ParseRefreshScope(cfg.RefreshScope)
	if err != nil {
		return nil, errors.Join(err, closeAll(gw, store))
	}

	syncer := synchronizer.New(synchronizer.Options{
		Engine:    engine,
		Refresher: synchronizer.NewRefresher(tabs, logger, cfg.RefreshWorkers),
		Logger:    logger,
		Capacity:  engine.Capacity(),
		Overflow:  cfg.Overflow(),
		Scope:     scope,
	})

	service := blocklist.NewService(blocklist.Options{
		Store:     store,
		Sync:      syncer,
		Installed: engine,
		Clock:     clock.RealClock{},
		Logger:    logger,
	})

	router := httpapi.NewRouter(service, engine, logger)

	return &Application{
		config:  cfg,
		store:   store,
		engine:  engine,
		browser: gw,
		service: service,
		server:  httpapi.NewServer(cfg.HTTPAddr, router, logger),
	}, nil
}

// buildStore opens the configured key-value backend
func buildStore(cfg *config.AppConfig) (blocklist.StateStore, error) {
	switch cfg.StateBackend {
	case "memory":
		log.Warn(nil, "Using in-memory state, the block list will not survive a restart")
		return memstore.New(), nil
	default:
		store, err := bolt.New(cfg.StateDB)
		if err != nil {
			return nil, err
		}
		log.Info(map[string]any{"path": cfg.StateDB}, "State database opened")
		return store, nil
	}
}

// buildEngine creates the rule engine with its decision cache and prefilter
func buildEngine(cfg *config.AppConfig) (*ruleset.Engine, error) {
	cache, err := lru.New(cfg.RulesCacheSize)
	if err != nil {
		return nil, err
	}
	log.Info(map[string]any{
		"capacity":   cfg.RulesCapacity,
		"cache_size": cfg.RulesCacheSize,
		"fp_rate":    cfg.RulesFPRate,
		"overflow":   cfg.RulesOverflow,
	}, "Rule engine configured")
	return ruleset.NewEngine(cfg.RulesCapacity, cache, bloom.NewFactory(), cfg.RulesFPRate), nil
}

// buildBrowser connects the tab inventory and installs request blocking.
// The returned gateway is nil in "off" mode.
func buildBrowser(ctx context.Context, cfg *config.AppConfig, engine *ruleset.Engine, logger log.Logger) (*browser.Gateway, synchronizer.TabInventory, error) {
	if cfg.BrowserMode == "off" {
		log.Warn(nil, "Browser control disabled, rules are evaluated but not enforced")
		return nil, browser.NoopInventory{}, nil
	}

	opts := browser.Options{Matcher: engine, Logger: logger}
	if cfg.BrowserMode == "remote" {
		opts.ControlURL = cfg.BrowserURL
	}

	gw, err := browser.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := gw.Intercept(); err != nil {
		_ = gw.Close()
		return nil, nil, err
	}

	log.Info(map[string]any{
		"mode": cfg.BrowserMode,
		"url":  opts.ControlURL,
	}, "Browser connected")
	return gw, gw, nil
}

// closeAll releases the browser and the store, in that order
func closeAll(gw *browser.Gateway, store blocklist.StateStore) error {
	var errs []error
	if gw != nil {
		if err := gw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: %w", err))
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// importFile merges the configured list file into the block list
func (app *Application) importFile(ctx context.Context) error {
	format, err := listfile.ParseFormat(app.config.ImportFormat)
	if err != nil {
		return err
	}
	f, err := os.Open(app.config.ImportFile)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sites, err := listfile.Parse(format, f, log.GetLogger())
	if err != nil {
		return err
	}
	added, _, err := app.service.ImportEntries(ctx, sites)
	if err != nil {
		return err
	}
	log.Info(map[string]any{
		"file":   app.config.ImportFile,
		"format": format,
		"parsed": len(sites),
		"added":  added,
	}, "Block list file imported")
	return nil
}

// Run loads state, installs rules, serves the control API, and blocks
// until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	// A failed load or install is recorded in the service status; the API
	// stays up so the user can inspect it and retry with a resync.
	if err := app.service.Start(ctx); err != nil {
		log.Error(map[string]any{"error": err}, "Initial synchronization failed")
	}
	if app.config.ImportFile != "" {
		if err := app.importFile(ctx); err != nil {
			log.Error(map[string]any{"error": err, "file": app.config.ImportFile}, "Startup import failed")
		}
	}

	if err := app.server.Start(ctx); err != nil {
		_ = closeAll(app.browser, app.store)
		return fmt.Errorf("failed to start control API: %w", err)
	}

	st := app.service.Status()
	log.Info(map[string]any{
		"address": app.server.Address(),
		"entries": len(st.Entries),
		"rules":   len(st.Rules),
		"enabled": st.Enabled,
	}, "Control API started")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during control API shutdown")
	}
	if err := closeAll(app.browser, app.store); err != nil {
		log.Warn(map[string]any{"error": err}, "Error releasing resources")
	}

	if shutdownCtx.Err() != nil {
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
	log.Info(nil, "Graceful shutdown completed")
	return nil
}

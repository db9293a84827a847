// Package app wires configuration, storage, clients and services into the
// single core shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bobmcallan/networth/internal/auth"
	"github.com/bobmcallan/networth/internal/clients/coingecko"
	"github.com/bobmcallan/networth/internal/clients/yahoo"
	"github.com/bobmcallan/networth/internal/common"
	"github.com/bobmcallan/networth/internal/interfaces"
	"github.com/bobmcallan/networth/internal/services/aggregate"
	"github.com/bobmcallan/networth/internal/services/cloudsync"
	"github.com/bobmcallan/networth/internal/services/fx"
	"github.com/bobmcallan/networth/internal/services/quote"
	"github.com/bobmcallan/networth/internal/services/search"
	"github.com/bobmcallan/networth/internal/storage/localdb"
	"github.com/bobmcallan/networth/internal/storage/surrealdb"
)

// App holds all initialized stores, clients and services.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Local       *localdb.Store
	Remote      *surrealdb.Store // nil when running local-only
	Auth        *auth.Verifier
	Data        *cloudsync.Coordinator
	Engine      *aggregate.Engine
	Prices      *quote.Service
	Search      *search.Service
	StartupTime time.Time

	logCloser       io.Closer
	schedulerCancel context.CancelFunc
	schedulerWG     sync.WaitGroup
}

func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks, in order: the given path, NETWORTH_CONFIG, a
// networth.toml next to the binary, then config/networth.toml.
func ResolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("NETWORTH_CONFIG"); env != "" {
		return env
	}
	path := filepath.Join(getBinaryDir(), "networth.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join("config", "networth.toml")
}

// NewApp loads configuration and builds the App. configPath may be empty.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := common.NewLoggerFromConfig(config.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a, err := NewAppWithConfig(ctx, config, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	a.logCloser = closer
	return a, nil
}

// NewAppWithConfig builds the App from an already loaded config.
func NewAppWithConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	verifier, err := auth.NewVerifier(config.Auth)
	if err != nil {
		return nil, err
	}

	local, err := localdb.NewStore(logger, config.Storage.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	// The coordinator treats a nil interface as local-only, so a nil
	// *surrealdb.Store must not be passed through as a typed value.
	var remote *surrealdb.Store
	var remoteStore interfaces.RemoteStore
	if config.Storage.Remote.Enabled() {
		remote, err = surrealdb.Connect(ctx, logger, config.Storage.Remote)
		if err != nil {
			local.Close()
			return nil, fmt.Errorf("failed to initialize cloud store: %w", err)
		}
		remoteStore = remote
	} else {
		logger.Info().Msg("No cloud store configured, running local-only")
	}

	yahooCfg := config.Clients.Yahoo
	stocks := yahoo.NewClient(
		yahoo.WithBaseURL(yahooCfg.BaseURL),
		yahoo.WithLogger(logger),
		yahoo.WithRateLimit(yahooCfg.RateLimit),
		yahoo.WithTimeout(yahooCfg.GetTimeout()),
	)

	geckoCfg := config.Clients.CoinGecko
	crypto := coingecko.NewClient(
		coingecko.WithBaseURL(geckoCfg.BaseURL),
		coingecko.WithAPIKey(geckoCfg.APIKey),
		coingecko.WithLogger(logger),
		coingecko.WithRateLimit(geckoCfg.RateLimit),
		coingecko.WithTimeout(geckoCfg.GetTimeout()),
	)

	table := fx.Default()
	coordinator := cloudsync.NewCoordinator(ctx, local, remoteStore, verifier, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Local:       local,
		Remote:      remote,
		Auth:        verifier,
		Data:        coordinator,
		Engine:      aggregate.NewEngine(table),
		Prices:      quote.NewService(coordinator, stocks, crypto, table, logger),
		Search:      search.NewService(stocks, crypto, config.Prices.GetSearchCacheTTL(), logger),
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// StartPriceScheduler launches the automatic price refresh. It does nothing
// when the configured interval is zero.
func (a *App) StartPriceScheduler() {
	interval := a.Config.Prices.GetRefreshInterval()
	if interval <= 0 || a.schedulerCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	a.schedulerWG.Add(1)
	go func() {
		defer a.schedulerWG.Done()
		startPriceScheduler(ctx, a.Prices, a.Logger, interval)
	}()
}

// Close releases all resources held by the App.
// Shutdown order: stop the scheduler, end the session, close the stores.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerWG.Wait()
		a.schedulerCancel = nil
	}
	if a.Data != nil {
		a.Data.Close()
	}
	if a.Remote != nil {
		if err := a.Remote.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close cloud store")
		}
		a.Remote = nil
	}
	if a.Local != nil {
		if err := a.Local.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close local store")
		}
		a.Local = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

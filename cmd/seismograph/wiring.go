package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tectoniq/seismograph/internal/application"
	"github.com/tectoniq/seismograph/internal/cache"
	"github.com/tectoniq/seismograph/internal/config"
	"github.com/tectoniq/seismograph/internal/domain/classifier"
	"github.com/tectoniq/seismograph/internal/infrastructure/db"
	"github.com/tectoniq/seismograph/internal/providers"
)

// runtime bundles everything a command needs, built from one config load.
type runtime struct {
	config  config.Config
	service *application.StateService
	manager *db.Manager
}

func (rt *runtime) Close() {
	if rt.manager != nil {
		rt.manager.Close()
	}
}

// loadConfig reads --config when given, defaults otherwise.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildRuntime wires provider, classifier, cache, and storage per config.
// wrapCache may decorate the state cache (the server uses it to attach
// hit/miss metrics); nil means no decoration.
func buildRuntime(ctx context.Context, cmd *cobra.Command, wrapCache func(cache.Cache) cache.Cache) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	cls, err := classifier.New(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	// The simulator shares the top-level classifier parameters.
	cfg.Simulator.Classifier = cfg.Classifier

	store, err := providers.NewCSVStore(cfg.Provider.CSVDir)
	if err != nil {
		return nil, err
	}
	var provider providers.Provider = store.AsProvider()
	if cfg.Provider.BaseURL != "" {
		remote := providers.NewHTTPProvider(cfg.Provider.BaseURL,
			cfg.Provider.RequestsSec, cfg.Provider.Burst)
		provider = providers.NewCaching(store, remote)
	}

	ttl := time.Duration(cfg.Storage.CacheTTLSec) * time.Second
	var stateCache cache.Cache
	if cfg.Storage.RedisAddr != "" {
		stateCache = cache.NewRedis(cfg.Storage.RedisAddr, cfg.Storage.RedisDB, ttl)
		log.Debug().Str("addr", cfg.Storage.RedisAddr).Msg("using redis state cache")
	} else {
		stateCache = cache.NewMemory(ttl)
	}
	if wrapCache != nil {
		stateCache = wrapCache(stateCache)
	}

	manager, err := db.NewManager(ctx, db.Config{
		DSN:             cfg.Storage.PostgresDSN,
		MaxOpenConns:    db.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    db.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: db.DefaultConfig().ConnMaxLifetime,
		QueryTimeout:    db.DefaultConfig().QueryTimeout,
	})
	if err != nil {
		return nil, err
	}

	service, err := application.NewStateService(provider, cls,
		cfg.Hysteresis.RequiredConfirmations, stateCache,
		manager.Repository(), cfg.Simulator)
	if err != nil {
		manager.Close()
		return nil, err
	}

	return &runtime{config: cfg, service: service, manager: manager}, nil
}

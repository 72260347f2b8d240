package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/yk-ddns/internal/cache"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/config"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-ddns/internal/dns/providers"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/health"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/shutdown"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/syncer"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/watcher"
)

var Version = "dev"

const fetchTimeout = 30 * time.Second

func main() {
	var configFile, cacheFile string
	flag.StringVar(&configFile, "config", "", "path to the configuration file (default $CONF_DIR/config.yaml)")
	flag.StringVar(&cacheFile, "cache", "", "path to the cache file (default $DATA_DIR/cache.yaml)")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if err := run(configFile, cacheFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, cacheFile string) error {
	log := ctrl.Log.WithName("setup")

	log.Info("starting yk-ddns", "version", Version)

	paths, err := config.ResolvePaths(configFile, cacheFile)
	if err != nil {
		return fmt.Errorf("unable to resolve paths: %w", err)
	}

	cfg, err := config.Load(paths.Config)
	if err != nil {
		return fmt.Errorf("unable to load config: %w", err)
	}
	log.Info("loaded config", "path", paths.Config, "provider", cfg.Provider, "zone", cfg.Zone, "domains", len(cfg.Domains))

	coordinator := shutdown.New(ctrl.SetupSignalHandler(), ctrl.Log.WithName("shutdown"))
	ctx := coordinator.Context()

	store, closeStore, err := newStore(cfg, paths)
	if err != nil {
		return err
	}
	defer closeStore()
	changes := cache.New(ctx, store, ctrl.Log.WithName("cache"))

	dir, err := dns.NewDirectory(cfg.Provider, ctrl.Log.WithName("dns-"+cfg.Provider), cfg.DirectorySettings())
	if err != nil {
		return fmt.Errorf("unable to create DNS directory: %w", err)
	}

	s, err := syncer.New(ctx, dir, syncer.Options{
		Zone:    cfg.Zone,
		Domains: cfg.Domains,
		IPv4:    cfg.IPv4(),
	}, ctrl.Log.WithName("syncer"), coordinator)
	if err != nil {
		return fmt.Errorf("unable to set up syncer: %w", err)
	}

	fetcher := watcher.NewHTTPFetcher(cfg.IPURL, &http.Client{Timeout: fetchTimeout})
	w, events := watcher.New(fetcher, changes, cfg.PollInterval(), ctrl.Log.WithName("watcher"), coordinator)

	if cfg.Listen != "" {
		srv := health.New(cfg.Listen, ctrl.Log.WithName("health"), map[string]healthz.Checker{
			"watcher": w.Check,
		})
		go func() {
			if err := srv.Run(ctx); err != nil {
				coordinator.Fail(err)
			}
		}()
	}

	go w.Run(ctx)
	go s.Run(ctx, events)

	err = coordinator.Wait()
	if err == nil {
		log.Info("shutting down")
	}
	return err
}

// newStore picks the cache backend: Redis when configured, the cache file otherwise.
func newStore(cfg *config.Config, paths *config.Paths) (cache.Store, func(), error) {
	if cfg.Redis != nil {
		rs, err := cache.NewRedisStore(cfg.Redis.Address, cfg.Redis.DB, cfg.Redis.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to redis: %w", err)
		}
		return rs, rs.Close, nil
	}
	return cache.NewFileStore(paths.Cache), func() {}, nil
}

// Command ringcache runs one node of a consistent-hash partitioned cache.
//
//	ringcache -config node.yaml
//	ringcache -listen :8081 -self http://localhost:8081 \
//	    -peers http://localhost:8081,http://localhost:8082
//
// Flags override values from the config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/ringcache/cache"
	"github.com/IvanBrykalov/ringcache/cluster"
	"github.com/IvanBrykalov/ringcache/internal/config"
	pmet "github.com/IvanBrykalov/ringcache/metrics/prom"
	"github.com/IvanBrykalov/ringcache/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ringcache:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logOut io.Writer) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}
	log, err := cfg.Log.Logger(logOut)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := pmet.New(reg, "ringcache", "", nil)

	node, err := newNode(cfg, log, metrics)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: server.New(node, server.Options{
			Logger:  log,
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"listen": cfg.Listen,
			"self":   cfg.Self,
			"peers":  node.Peers(),
			"policy": cfg.Cache.Policy,
		}).Info("ringcache node starting")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newNode builds the local cache and the router in front of it.
func newNode(cfg config.Config, log logrus.FieldLogger, metrics *pmet.Adapter) (*cluster.Router, error) {
	pol, _ := cache.NamedPolicy[string, string](cfg.Cache.Policy, cfg.Cache.Capacity, cfg.Cache.Shards)
	evictLog := log.WithFields(logrus.Fields{"component": "cache", "policy": pol.Name()})
	local := cache.New[string, string](cache.Options[string, string]{
		Capacity:   cfg.Cache.Capacity,
		Shards:     cfg.Cache.Shards,
		Policy:     pol,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Metrics:    metrics,
		OnEvict: func(k, _ string, reason cache.EvictReason) {
			evictLog.WithFields(logrus.Fields{"key": k, "reason": reason.String()}).Debug("evicted")
		},
	})

	return cluster.New(cluster.Config{
		Self:           cfg.Self,
		Peers:          cfg.Peers,
		Local:          local,
		Transport:      cluster.NewHTTPTransport(nil, cfg.Cluster.Timeout),
		Timeout:        cfg.Cluster.Timeout,
		BroadcastLimit: cfg.Cluster.BroadcastLimit,
		Logger:         log,
		Metrics:        metrics,
	})
}

// parseConfig loads -config (if any), applies the flags that were set on
// the command line and validates the result.
func parseConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("ringcache", flag.ContinueOnError)
	var (
		path      = fs.String("config", "", "YAML config file")
		listen    = fs.String("listen", "", "HTTP listen address (default :8080)")
		self      = fs.String("self", "", "this node's base URL, as listed in -peers")
		peers     = fs.String("peers", "", "comma-separated base URLs of all nodes")
		capacity  = fs.Int("capacity", 0, "cache capacity in entries (default 100)")
		shards    = fs.Int("shards", 0, "cache shards (default 1 = exact LRU)")
		policy    = fs.String("policy", "", "eviction policy: lru | 2q")
		ttl       = fs.Duration("default-ttl", 0, "TTL applied to plain puts (0 = none)")
		timeout   = fs.Duration("timeout", 0, "per peer call timeout (default 3s)")
		limit     = fs.Int("broadcast-limit", 0, "max concurrent peer deletes (0 = unlimited)")
		logLevel  = fs.String("log-level", "", "log level (default info)")
		logFormat = fs.String("log-format", "", "log format: text | json")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "self":
			cfg.Self = *self
		case "peers":
			cfg.Peers = config.SplitPeers(*peers)
		case "capacity":
			cfg.Cache.Capacity = *capacity
		case "shards":
			cfg.Cache.Shards = *shards
		case "policy":
			cfg.Cache.Policy = *policy
		case "default-ttl":
			cfg.Cache.DefaultTTL = *ttl
		case "timeout":
			cfg.Cluster.Timeout = *timeout
		case "broadcast-limit":
			cfg.Cluster.BroadcastLimit = *limit
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	return cfg, cfg.Validate()
}

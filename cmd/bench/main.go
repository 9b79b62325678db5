// Command bench runs a synthetic workload against an in-process ringcache
// cluster and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/ringcache/cache"
	"github.com/IvanBrykalov/ringcache/cluster"
	pmet "github.com/IvanBrykalov/ringcache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		nodes    = flag.Int("nodes", 3, "number of in-process nodes")
		capacity = flag.Int("cap", 100_000, "cache capacity per node (entries)")
		shards   = flag.Int("shards", 1, "shards per node cache (1 = exact LRU)")
		policy   = flag.String("policy", "lru", "eviction policy: lru | 2q")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		delPct   = flag.Int("deletes", 1, "delete percentage of writes [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2 per node)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *nodes <= 0 {
		log.Fatalf("nodes must be positive, got %d", *nodes)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cluster ----
	routers, err := buildCluster(*nodes, *capacity, *shards, *policy)
	if err != nil {
		log.Fatal(err)
	}

	// ---- Preload to get a realistic hit-rate ----
	ctx := context.Background()
	pl := *preload
	if pl == 0 {
		pl = *nodes * *capacity / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		routers[i%len(routers)].RoutePut(ctx, k, "v"+strconv.Itoa(i))
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	delPctVal := *delPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, deletes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)
			// Workers enter the cluster through different nodes.
			entry := routers[id%len(routers)]

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				switch {
				case int(localR.Int31n(100)) < readPctVal:
					atomic.AddUint64(&reads, 1)
					if _, ok := entry.RouteGet(ctx, keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				case int(localR.Int31n(100)) < delPctVal:
					atomic.AddUint64(&deletes, 1)
					entry.Delete(ctx, keyByZipf())
				default:
					atomic.AddUint64(&writes, 1)
					entry.RoutePut(ctx, keyByZipf(), "v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	deletesN := atomic.LoadUint64(&deletes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("nodes=%d policy=%s cap=%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		*nodes, *policy, *capacity, *shards, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  deletes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN, deletesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)

	resident := 0
	for _, r := range routers {
		resident += r.Len()
	}
	for _, r := range routers {
		share := 0.0
		if resident > 0 {
			share = float64(r.Len()) / float64(resident) * 100
		}
		fmt.Printf("%s Len()=%d (%.1f%% of resident keys)\n", r.Self(), r.Len(), share)
	}
}

// buildCluster starts n routers that reach each other over a MemTransport.
// Each node gets its own metrics, labelled with the node id.
func buildCluster(n, capacity, shards int, policyName string) ([]*cluster.Router, error) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "node-" + strconv.Itoa(i)
	}

	quiet := logrus.New()
	quiet.SetLevel(logrus.WarnLevel)

	tr := cluster.NewMemTransport()
	routers := make([]*cluster.Router, n)
	for i, id := range ids {
		pol, ok := cache.NamedPolicy[string, string](policyName, capacity, shards)
		if !ok {
			return nil, fmt.Errorf("unknown policy: %q (use lru or 2q)", policyName)
		}
		metrics := pmet.New(nil, "ringcache", "bench", prometheus.Labels{"node": id})
		r, err := cluster.New(cluster.Config{
			Self:  id,
			Peers: ids,
			Local: cache.New[string, string](cache.Options[string, string]{
				Capacity: capacity,
				Shards:   shards,
				Policy:   pol,
				Metrics:  metrics,
			}),
			Transport: tr,
			Logger:    quiet,
			Metrics:   metrics,
		})
		if err != nil {
			return nil, err
		}
		tr.Register(id, r)
		routers[i] = r
	}
	return routers, nil
}

// Command bench runs a synthetic pin/get/set workload against a map and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/cmap/cmap"
	pmet "github.com/IvanBrykalov/cmap/metrics/prom"
	"github.com/IvanBrykalov/cmap/policy/lru"
)

func main() {
	log := logrus.New()
	if err := run(os.Args[1:], log); err != nil {
		log.WithError(err).Fatal("bench failed")
	}
}

func run(args []string, log *logrus.Logger) error {
	// ---- Flags ----
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	flags := defaultProfile()
	bindFlags(fs, &flags)
	var (
		config      = fs.StringP("config", "c", "", "workload profile (JSON with comments)")
		out         = fs.StringP("out", "o", "", "write the JSON report to this file")
		pprofAddr   = fs.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = fs.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
		logLevel    = fs.String("log-level", "info", "log level: debug | info | warn | error")
		logJSON     = fs.Bool("log-json", false, "log as JSON")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if *logJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	p, err := resolve(fs, flags, *config)
	if err != nil {
		return err
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go serve(log, "pprof", *pprofAddr)
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	var metrics cmap.Metrics = cmap.NoopMetrics{}
	if *metricsAddr != "" {
		metrics = pmet.New(nil, "cmap", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go serve(log, "metrics", *metricsAddr)
	}

	// ---- Build map ----
	opt := cmap.Options{
		Name:       "bench",
		Buckets:    p.Buckets,
		MaxEntries: p.MaxEntries,
		Metrics:    metrics,
		Logger:     log,
	}
	if p.Policy == "lru" {
		opt.Policy = lru.New()
	}
	m, err := cmap.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	// ---- Preload half the limit to get a realistic hit-rate ----
	pl := p.Preload
	if pl == 0 {
		pl = p.MaxEntries / 2
	}
	for i := 0; i < pl; i++ {
		k := cmap.Key(i)
		if err := m.Create(k, []byte(k.String())); err != nil {
			return fmt.Errorf("preload: %w", err)
		}
		_ = m.Release(k)
	}

	log.WithFields(logrus.Fields{
		"policy": p.Policy, "max": p.MaxEntries, "workers": p.Workers,
		"keys": p.Keys, "duration": time.Duration(p.Duration), "seed": p.Seed,
	}).Info("starting workload")

	// ---- Load generation ----
	var c counters
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.Duration))
	defer cancel()

	workers := max(p.Workers, 1)
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error { return work(ctx, m, p, int64(w), &c) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	// ---- Report ----
	rep := newReport(p, workers, elapsed, &c, m)
	for _, l := range m.CheckRefcnts() {
		log.WithFields(logrus.Fields{"key": l.Key, "refcnt": l.Refcnt}).Warn("leaked pin")
	}
	rep.print(os.Stdout)
	if *out != "" {
		if err := rep.write(*out); err != nil {
			return err
		}
		log.WithField("path", *out).Info("report written")
	}
	return nil
}

// counters are shared by all workers.
type counters struct {
	ops, reads, writes, deletes, hits, misses, rejected atomic.Uint64
}

// work runs one worker until ctx expires. Every pin it takes is released
// before the next operation.
func work(ctx context.Context, m cmap.Map, p profile, id int64, c *counters) error {
	// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
	r := rand.New(rand.NewSource(p.Seed + id*9973))
	zipf := rand.NewZipf(r, p.ZipfS, p.ZipfV, uint64(p.Keys-1))

	for ctx.Err() == nil {
		k := cmap.Key(zipf.Uint64())
		c.ops.Add(1)
		switch n := int(r.Int31n(100)); {
		case n < p.Reads:
			c.reads.Add(1)
			if _, err := m.Get(k); err != nil {
				c.misses.Add(1)
				continue
			}
			c.hits.Add(1)
			if err := release(m, k); err != nil {
				return err
			}
		case n < p.Reads+p.Deletes:
			c.deletes.Add(1)
			m.Delete(k)
		default:
			c.writes.Add(1)
			_, replaced, err := m.Set(k, []byte(k.String()))
			switch {
			case errors.Is(err, cmap.ErrNoVictim):
				c.rejected.Add(1)
			case err != nil:
				return err
			case !replaced:
				if err := release(m, k); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// release drops a pin. A concurrent Delete may have removed the entry, or
// replaced it with a fresh one whose pin belongs to another worker.
func release(m cmap.Map, k cmap.Key) error {
	err := m.Release(k)
	if err == nil || errors.Is(err, cmap.ErrNotFound) || errors.Is(err, cmap.ErrUnderflow) {
		return nil
	}
	return err
}

func serve(log logrus.FieldLogger, what, addr string) {
	log.WithField("addr", addr).Infof("%s: serving", what)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.WithError(err).Errorf("%s: server stopped", what)
	}
}

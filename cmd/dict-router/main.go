// SPDX-License-Identifier: AGPL-3.0-only

// Command dict-router runs the compression dictionary retrieval service as
// a standalone process, for local testing and as a template for wiring the
// service into a larger read-router binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	consulapi "github.com/hashicorp/consul/api"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kvrouter/dictserve/pkg/dictservice"
	"github.com/kvrouter/dictserve/pkg/dictservice/compressorregistry"
	"github.com/kvrouter/dictserve/pkg/dictservice/instancedir"
	"github.com/kvrouter/dictserve/pkg/dictservice/metadata"
)

type cliConfig struct {
	dictservice.Config
	MetadataURL      string
	MetadataInterval time.Duration
	ConsulAddress    string
	HTTPListenAddr   string
}

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.AllowInfo())
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var cfg cliConfig
	cfg.Config.RegisterFlags("dict-router.", flag.CommandLine)
	flag.StringVar(&cfg.MetadataURL, "dict-router.metadata-url", "http://localhost:8080/metadata", "URL of the store/version metadata snapshot endpoint.")
	flag.DurationVar(&cfg.MetadataInterval, "dict-router.metadata-poll-interval", 15*time.Second, "Interval between metadata snapshot polls.")
	flag.StringVar(&cfg.ConsulAddress, "dict-router.consul-address", "127.0.0.1:8500", "Consul HTTP API address used as the instance directory.")
	flag.StringVar(&cfg.HTTPListenAddr, "http.listen-address", ":9191", "Address to serve /metrics and /ready on.")
	flag.Parse()

	if err := cfg.Config.Validate(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "exiting with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg cliConfig, logger log.Logger) error {
	reg := prometheus.NewRegistry()

	consulClient, err := consulapi.NewClient(&consulapi.Config{Address: cfg.ConsulAddress})
	if err != nil {
		return fmt.Errorf("building consul client: %w", err)
	}
	dir := instancedir.NewConsulDirectory(consulClient)

	httpClient := dictservice.NewHTTPClient(cfg.Config)
	repo := metadata.NewPollingRepository(cfg.MetadataURL, httpClient, cfg.MetadataInterval, logger)
	comp := compressorregistry.NewInMemory()

	svc := dictservice.New(cfg.Config, repo, dir, comp, httpClient, logger, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go repo.Run(ctx)

	var ready atomic.Bool
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Load() {
			http.Error(w, "warm-up not yet complete", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: router}
	go func() {
		level.Info(logger).Log("msg", "serving admin endpoints", "addr", cfg.HTTPListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "admin server failed", "err", err)
		}
	}()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting dictionary service: %w", err)
	}
	ready.Store(true)

	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	svc.Stop()
	return nil
}

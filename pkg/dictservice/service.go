// SPDX-License-Identifier: AGPL-3.0-only

// Package dictservice wires the compression dictionary retrieval
// subsystem together: metadata change notifications feed the candidate
// queue, a single dedicated consumer goroutine drains it through the
// orchestrator, and failed attempts are retried on a fixed delay until the
// version retires.
package dictservice

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvrouter/dictserve/pkg/dictservice/compressorregistry"
	"github.com/kvrouter/dictserve/pkg/dictservice/fetch"
	"github.com/kvrouter/dictserve/pkg/dictservice/instancedir"
	"github.com/kvrouter/dictserve/pkg/dictservice/listener"
	"github.com/kvrouter/dictserve/pkg/dictservice/metadata"
	dictmetrics "github.com/kvrouter/dictserve/pkg/dictservice/metrics"
	"github.com/kvrouter/dictserve/pkg/dictservice/orchestrator"
	"github.com/kvrouter/dictserve/pkg/dictservice/queue"
	"github.com/kvrouter/dictserve/pkg/dictservice/registry"
	"github.com/kvrouter/dictserve/pkg/dictservice/replica"
	"github.com/kvrouter/dictserve/pkg/dictservice/retry"
	"github.com/kvrouter/dictserve/pkg/dictservice/warmup"
)

// Service is the top-level compression dictionary retrieval subsystem: a
// long-running component with a startup warm-up pass and a single
// steady-state consumer goroutine, independent of the read-router's request
// path.
type Service struct {
	cfg Config

	repo       metadata.Repository
	comp       compressorregistry.Registry
	httpClient *http.Client

	queue *queue.Queue
	reg   *registry.Registry
	retry *retry.Scheduler
	orch  *orchestrator.Orchestrator
	lst   *listener.Listener

	logger  log.Logger
	metrics *dictmetrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Service from its external collaborators: a metadata
// repository, an instance directory used to resolve storage replicas, an
// HTTP client used to contact them, and the compressor registry to install
// decoded dictionaries into. metricsReg may be nil, in which case metrics
// are registered against a private registry instead of being exposed.
func New(cfg Config, repo metadata.Repository, dir instancedir.Directory, comp compressorregistry.Registry, httpClient *http.Client, logger log.Logger, metricsReg prometheus.Registerer) *Service {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	if metricsReg == nil {
		metricsReg = prometheus.NewRegistry()
	}

	m := dictmetrics.New(metricsReg)

	q := queue.New()
	reg := registry.New()
	picker := replica.NewRandomPicker(dir, logger)
	fetcher := fetch.NewHTTPFetcher(httpClient, picker, cfg.DictionaryRetrievalTimeout, cfg.SSLEnabled)
	retrySched := retry.New(retry.DefaultDelay, func(topic string) { q.Push(topic) })
	orch := orchestrator.New(reg, fetcher, comp, repo, retrySched, logger, m.ForOrchestrator())
	lst := listener.New(q, reg, comp, retrySched, logger)

	s := &Service{
		cfg:        cfg,
		repo:       repo,
		comp:       comp,
		httpClient: httpClient,
		queue:      q,
		reg:        reg,
		retry:      retrySched,
		orch:       orch,
		lst:        lst,
		logger:     logger,
		metrics:    m,
	}
	repo.AddListener(lst)
	return s
}

// Start runs the warm-up pass synchronously, then launches the single
// steady-state consumer goroutine in the background. It must be called at
// most once.
func (s *Service) Start(ctx context.Context) error {
	if err := s.repo.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing metadata snapshot before warm-up: %w", err)
	}

	warmUpCtx, cancelWarmUp := context.WithTimeout(ctx, s.cfg.DictionaryRetrievalTimeout)
	defer cancelWarmUp()

	warmUpStart := time.Now()
	warmUpErr := warmup.Run(warmUpCtx, s.repo, s.orch, s.cfg.ProcessingThreads, s.logger)
	if s.metrics.WarmUpDuration != nil {
		s.metrics.WarmUpDuration.Observe(time.Since(warmUpStart).Seconds())
	}
	if warmUpErr != nil {
		level.Error(s.logger).Log("msg", "warm-up failed, refusing to start", "err", warmUpErr)
		s.retry.Stop()
		s.reg.RetireAll(registry.FailCauseStopped)
		return fmt.Errorf("dictionary warm-up failed: %w", warmUpErr)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// A single dedicated goroutine drains the candidate queue; fetch
	// parallelism comes from each fetch attempt's own asynchronous task,
	// not from multiple consumers.
	s.wg.Add(1)
	go s.consumeLoop(runCtx)

	return nil
}

// Stop cancels all in-flight fetches, disarms all pending retries, closes
// the candidate queue, waits for the consumer goroutine to exit, and closes
// the HTTP client's idle connections.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.retry.Stop()
	s.queue.Close()
	s.reg.RetireAll(registry.FailCauseStopped)
	s.wg.Wait()
	s.httpClient.CloseIdleConnections()
}

func (s *Service) consumeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		topic, ok := s.queue.Take(ctx)
		if !ok {
			return
		}
		s.orch.EnsureFetch(ctx, topic)
	}
}

// AsDskitService wraps Service in dskit's services.Service lifecycle
// interface, for components that expect to manage it alongside other
// dskit-managed subsystems.
func (s *Service) AsDskitService() services.Service {
	return services.NewBasicService(
		func(ctx context.Context) error { return s.Start(ctx) },
		func(ctx context.Context) error { <-ctx.Done(); return nil },
		func(_ error) error { s.Stop(); return nil },
	)
}

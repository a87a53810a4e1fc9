// SPDX-License-Identifier: AGPL-3.0-only

// Package orchestrator implements the single fetch-attempt-then-install
// sequence shared by warm-up and steady-state processing: deduplicate via
// the in-flight registry, fetch, install into the compressor registry on
// success, and schedule a fixed-delay retry on failure.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kvrouter/dictserve/pkg/dictservice/compressorregistry"
	"github.com/kvrouter/dictserve/pkg/dictservice/dicttopic"
	"github.com/kvrouter/dictserve/pkg/dictservice/fetch"
	"github.com/kvrouter/dictserve/pkg/dictservice/metadata"
	"github.com/kvrouter/dictserve/pkg/dictservice/registry"
)

// RetryScheduler is the subset of retry.Scheduler the orchestrator depends
// on.
type RetryScheduler interface {
	Schedule(topic string)
}

// Metrics is the subset of prometheus counters/histograms the orchestrator
// updates. A nil *Metrics is valid and results in no-ops, which keeps unit
// tests free of prometheus wiring.
type Metrics struct {
	FetchAttempts    *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	FetchFailures    *prometheus.CounterVec
	RetriesScheduled prometheus.Counter
	Installs         prometheus.Counter
	InFlight         prometheus.Gauge
}

// Orchestrator runs the fetch-then-install-or-retry sequence for a single
// topic, keyed off the in-flight registry for deduplication.
type Orchestrator struct {
	reg     *registry.Registry
	fetcher fetch.Fetcher
	comp    compressorregistry.Registry
	repo    metadata.Repository
	retry   RetryScheduler
	logger  log.Logger
	metrics *Metrics
}

// New builds an Orchestrator.
func New(reg *registry.Registry, fetcher fetch.Fetcher, comp compressorregistry.Registry, repo metadata.Repository, retry RetryScheduler, logger log.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Orchestrator{reg: reg, fetcher: fetcher, comp: comp, repo: repo, retry: retry, logger: logger, metrics: metrics}
}

// eligible resolves topic to its Version via the metadata repository and
// reports whether that version is still dictionary-eligible (DICT +
// ONLINE). An unresolvable topic (malformed, unknown store, or version no
// longer listed) is never eligible.
func (o *Orchestrator) eligible(topic string) bool {
	storeName, versionNumber, err := dicttopic.Parse(topic)
	if err != nil {
		return false
	}
	store, ok := o.repo.Store(storeName)
	if !ok {
		return false
	}
	v, ok := store.Version(versionNumber)
	if !ok {
		return false
	}
	return v.Eligible()
}

// EnsureFetch starts a fetch attempt for topic if one is not already in
// flight or already installed, returning immediately; the attempt and any
// subsequent retry run asynchronously. It is the entry point used by
// steady-state processing: the candidate queue consumer, which also
// receives the topics that retry firing re-enqueues. Before creating a handle it resolves topic to its Version via
// the metadata repository and silently skips a topic that is no longer
// dictionary-eligible (e.g. it flapped offline while queued, with no
// handle ever registered for retirement to clean up).
func (o *Orchestrator) EnsureFetch(ctx context.Context, topic string) {
	if o.reg.Has(topic) {
		return
	}
	if o.comp.Has(topic) {
		return
	}
	if !o.eligible(topic) {
		return
	}

	handle, fetchCtx, created := o.reg.GetOrCreate(ctx, topic)
	if !created {
		return
	}

	go o.run(fetchCtx, topic, handle)
}

// EnsureFetchSync behaves like EnsureFetch but blocks until this call's own
// attempt (if it was the one that created the in-flight handle) completes
// or fails, without waiting out any subsequent retry delay. It returns
// whether the topic ended this call already installed in the compressor
// registry (either because this attempt installed it, because a
// concurrent caller already had, or because it was installed before this
// call started). It is the entry point used by warm-up, which needs to
// know whether its bounded fan-out actually installed every eligible
// topic before its deadline.
func (o *Orchestrator) EnsureFetchSync(ctx context.Context, topic string) bool {
	if o.reg.Has(topic) {
		return o.comp.Has(topic)
	}
	if o.comp.Has(topic) {
		return true
	}
	if !o.eligible(topic) {
		return false
	}

	handle, fetchCtx, created := o.reg.GetOrCreate(ctx, topic)
	if !created {
		return o.comp.Has(topic)
	}

	return o.run(fetchCtx, topic, handle)
}

func (o *Orchestrator) run(ctx context.Context, topic string, handle *registry.Handle) bool {
	storeName, versionNumber, err := dicttopic.Parse(topic)
	if err != nil {
		level.Error(o.logger).Log("msg", "refusing to fetch malformed topic", "topic", topic, "err", err)
		o.reg.RemoveIfPresent(topic, handle)
		return false
	}

	o.observeAttempt(topic)
	o.adjustInFlight(1)
	start := time.Now()
	dict, err := o.fetcher.Fetch(ctx, storeName, versionNumber)
	o.observeDuration(storeName, time.Since(start))
	o.adjustInFlight(-1)
	if err != nil {
		o.onFailure(topic, handle, err)
		return false
	}

	if !o.reg.IsCurrentPending(topic, handle) || !o.eligible(topic) {
		// Retired while the fetch was in flight, or the version's status
		// moved off ONLINE in the metadata repository before install: the
		// retirement path has already (or will shortly) remove any
		// installed dictionary, so discard these bytes rather than install
		// a dictionary for a version that's no longer eligible.
		level.Info(o.logger).Log("msg", "discarding fetch result for retired topic", "topic", topic)
		return false
	}

	if err := o.comp.Install(compressorregistry.StrategyDict, topic, dict); err != nil {
		o.onFailure(topic, handle, err)
		return false
	}

	if !o.reg.CompleteIfCurrent(topic, handle) {
		// Retired between the check above and the install completing.
		// The narrow race means we may have just installed a dictionary
		// for a topic that retirement already cleaned up; remove it so
		// nothing is left behind.
		o.comp.Remove(topic)
		level.Info(o.logger).Log("msg", "discarding fetch result for retired topic", "topic", topic)
		return false
	}

	o.observeInstall()
	level.Info(o.logger).Log("msg", "installed dictionary", "topic", topic)
	return true
}

func (o *Orchestrator) onFailure(topic string, handle *registry.Handle, err error) {
	o.observeFailure(topic, err)

	handle.Cancel(registry.FailCauseTransient)
	if !o.reg.RemoveIfPresent(topic, handle) {
		// Already retired; no retry.
		return
	}

	level.Warn(o.logger).Log("msg", "fetch attempt failed, scheduling retry", "topic", topic, "err", err)
	o.retry.Schedule(topic)
	if o.metrics != nil && o.metrics.RetriesScheduled != nil {
		o.metrics.RetriesScheduled.Inc()
	}
}

func (o *Orchestrator) observeAttempt(topic string) {
	if o.metrics == nil || o.metrics.FetchAttempts == nil {
		return
	}
	storeName, _, err := dicttopic.Parse(topic)
	if err != nil {
		return
	}
	o.metrics.FetchAttempts.WithLabelValues(storeName).Inc()
}

func (o *Orchestrator) observeInstall() {
	if o.metrics == nil || o.metrics.Installs == nil {
		return
	}
	o.metrics.Installs.Inc()
}

func (o *Orchestrator) observeDuration(storeName string, d time.Duration) {
	if o.metrics == nil || o.metrics.FetchDuration == nil {
		return
	}
	o.metrics.FetchDuration.WithLabelValues(storeName).Observe(d.Seconds())
}

func (o *Orchestrator) adjustInFlight(delta float64) {
	if o.metrics == nil || o.metrics.InFlight == nil {
		return
	}
	o.metrics.InFlight.Add(delta)
}

func (o *Orchestrator) observeFailure(topic string, err error) {
	if o.metrics == nil || o.metrics.FetchFailures == nil {
		return
	}
	storeName, _, parseErr := dicttopic.Parse(topic)
	if parseErr != nil {
		return
	}
	var fe *fetch.Error
	kind := "unknown"
	if errors.As(err, &fe) {
		kind = fe.Kind.String()
	}
	o.metrics.FetchFailures.WithLabelValues(storeName, kind).Inc()
}

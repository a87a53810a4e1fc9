// SPDX-License-Identifier: AGPL-3.0-only

// Package warmup implements the startup warm-up pass (C7): before serving
// traffic, attempt one fetch for every currently eligible (store, version)
// under a single shared deadline, bounded to a fixed concurrency.
package warmup

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/kvrouter/dictserve/pkg/dictservice/dicttopic"
	"github.com/kvrouter/dictserve/pkg/dictservice/metadata"
)

// Runner is the subset of orchestrator.Orchestrator warm-up depends on.
// EnsureFetchSync reports whether topic ended up installed.
type Runner interface {
	EnsureFetchSync(ctx context.Context, topic string) bool
}

// Run enumerates every eligible version across repo's stores and runs one
// synchronous fetch attempt per topic through runner, bounded to
// concurrency simultaneous attempts, all under ctx's deadline. A single
// slow or failing topic never blocks the others' attempts. Run waits for
// every attempt to finish and returns an error if any topic did not
// install its dictionary or if ctx was done before all attempts finished;
// otherwise it returns nil.
func Run(ctx context.Context, repo metadata.Repository, runner Runner, concurrency int, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	var topics []string
	for _, store := range repo.AllStores() {
		for _, v := range store.Versions {
			if v.Eligible() {
				topics = append(topics, dicttopic.Format(store.Name, v.Number))
			}
		}
	}

	level.Info(logger).Log("msg", "starting warm-up", "topics", len(topics), "concurrency", concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var failed []string

	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			// A failed attempt is recorded but never returned as an
			// error: returning one here would cancel gctx and abort
			// every other topic's in-flight attempt. Only the shared
			// deadline firing aborts the group.
			if !runner.EnsureFetchSync(gctx, topic) {
				mu.Lock()
				failed = append(failed, topic)
				mu.Unlock()
			}
			return gctx.Err()
		})
	}

	err := g.Wait()
	if err == nil && len(failed) > 0 {
		err = fmt.Errorf("warm-up: %d of %d eligible topics did not install a dictionary: %v", len(failed), len(topics), failed)
	}
	level.Info(logger).Log("msg", "warm-up complete", "topics", len(topics), "failed", len(failed), "err", err)
	return err
}

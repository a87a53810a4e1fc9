// SPDX-License-Identifier: AGPL-3.0-only

// Package replica picks which storage replica to contact for a dictionary
// fetch. Selection is uniform-random over the union of ready replicas
// across all of a topic's partitions; picking the "best" replica is
// explicitly out of scope.
package replica

import (
	"context"
	"math/rand/v2"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kvrouter/dictserve/pkg/dictservice/instancedir"
)

// RandomPicker implements fetch.Picker by enumerating replicas across all
// partitions of a topic, in partition order, and choosing uniformly at
// random over the union.
type RandomPicker struct {
	dir    instancedir.Directory
	logger log.Logger
}

// NewRandomPicker builds a RandomPicker over dir.
func NewRandomPicker(dir instancedir.Directory, logger log.Logger) *RandomPicker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &RandomPicker{dir: dir, logger: logger}
}

// Pick implements fetch.Picker. If the instance directory fails to
// resolve the partition count, the failure is logged and treated as "no
// replica available" rather than propagated as a distinct error: the retry
// scheduler must not distinguish directory failures from HTTP failures. A
// partition whose instances cannot be listed is logged and skipped; the
// pick is made over the remaining partitions, and "no replica available"
// results only if none of them has a ready instance.
func (p *RandomPicker) Pick(_ context.Context, topic string) (instancedir.Instance, bool) {
	numPartitions, err := p.dir.NumPartitions(topic)
	if err != nil {
		level.Warn(p.logger).Log("msg", "failed to resolve partition count; treating as no replica available", "topic", topic, "err", err)
		return instancedir.Instance{}, false
	}

	var candidates []instancedir.Instance
	for partition := 0; partition < numPartitions; partition++ {
		instances, err := p.dir.ReadyInstances(topic, partition)
		if err != nil {
			level.Warn(p.logger).Log("msg", "failed to list ready instances for partition; skipping", "topic", topic, "partition", partition, "err", err)
			continue
		}
		candidates = append(candidates, instances...)
	}

	if len(candidates) == 0 {
		return instancedir.Instance{}, false
	}
	return candidates[rand.IntN(len(candidates))], true
}

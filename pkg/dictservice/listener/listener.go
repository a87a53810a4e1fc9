// SPDX-License-Identifier: AGPL-3.0-only

// Package listener implements the change listener (C6): it subscribes to
// metadata.Repository store notifications and translates them into
// candidate-queue enqueues for newly eligible versions, and registry
// retirements for versions that are no longer eligible.
package listener

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/kvrouter/dictserve/pkg/dictservice/dicttopic"
	"github.com/kvrouter/dictserve/pkg/dictservice/metadata"
	"github.com/kvrouter/dictserve/pkg/dictservice/registry"
)

// Enqueuer is the subset of the candidate queue the listener depends on.
type Enqueuer interface {
	Push(topic string)
}

// Retirer is the subset of the in-flight registry the listener depends on
// to cancel fetches for versions that are no longer eligible.
type Retirer interface {
	Retire(topic string, cause registry.FailCause) (*registry.Handle, bool)
}

// Remover is the subset of the compressor registry the listener depends on
// to drop a dictionary once its version is no longer eligible.
type Remover interface {
	Remove(topic string)
}

// Canceller is the subset of the retry scheduler the listener depends on
// to disarm a pending retry for a version that is no longer eligible.
type Canceller interface {
	Cancel(topic string)
}

// Listener implements metadata.StoreDataChangedListener, maintaining its
// own view of which topics were eligible last time it observed each store
// so it can compute the add/drop diff on every notification.
type Listener struct {
	queue  Enqueuer
	reg    Retirer
	comp   Remover
	retry  Canceller
	logger log.Logger

	mu              sync.Mutex
	eligibleByStore map[string]map[string]struct{} // store name -> set of eligible topics
}

// New builds a Listener that enqueues newly eligible topics onto queue and
// retires topics that lose eligibility: cancelling any in-flight fetch via
// reg, disarming any pending retry timer via retry, and removing their
// installed dictionary (if any) from comp.
func New(queue Enqueuer, reg Retirer, comp Remover, retry Canceller, logger log.Logger) *Listener {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Listener{
		queue:           queue,
		reg:             reg,
		comp:            comp,
		retry:           retry,
		logger:          logger,
		eligibleByStore: make(map[string]map[string]struct{}),
	}
}

// Created implements metadata.StoreDataChangedListener.
func (l *Listener) Created(store metadata.Store) {
	l.reconcile(store)
}

// Changed implements metadata.StoreDataChangedListener.
func (l *Listener) Changed(store metadata.Store) {
	l.reconcile(store)
}

// Deleted implements metadata.StoreDataChangedListener.
func (l *Listener) Deleted(store metadata.Store) {
	l.reconcile(metadata.Store{Name: store.Name})
}

// reconcile computes the current eligible-topic set for store and diffs it
// against the previously observed set: newly eligible topics are enqueued,
// no-longer-eligible topics (whether due to a status/strategy change or
// the version disappearing, including the whole store being deleted) are
// retired. This collapses the three named transitions in the original
// description into one add set and one unified drop set.
func (l *Listener) reconcile(store metadata.Store) {
	current := make(map[string]struct{}, len(store.Versions))
	for _, v := range store.Versions {
		if v.Eligible() {
			topic := dicttopic.Format(store.Name, v.Number)
			current[topic] = struct{}{}
		}
	}

	l.mu.Lock()
	prior := l.eligibleByStore[store.Name]
	if len(current) == 0 {
		delete(l.eligibleByStore, store.Name)
	} else {
		l.eligibleByStore[store.Name] = current
	}
	l.mu.Unlock()

	for topic := range current {
		if _, wasEligible := prior[topic]; !wasEligible {
			level.Info(l.logger).Log("msg", "version became eligible", "topic", topic)
			l.queue.Push(topic)
		}
	}

	for topic := range prior {
		if _, stillEligible := current[topic]; !stillEligible {
			level.Info(l.logger).Log("msg", "version no longer eligible", "topic", topic)
			l.reg.Retire(topic, registry.FailCauseRetired)
			l.comp.Remove(topic)
			l.retry.Cancel(topic)
		}
	}
}

// SPDX-License-Identifier: AGPL-3.0-only

// Package retry implements the fixed-delay retry scheduler: after a failed
// fetch attempt, a topic is re-enqueued for another attempt once a single
// fixed delay elapses, unless the retry is cancelled first because the
// topic retired or the service is stopping.
package retry

import (
	"sync"
	"time"
)

// DefaultDelay is the fixed delay between a failed fetch attempt and its
// retry, per the fixed-delay (not exponential backoff) retry policy.
const DefaultDelay = 100 * time.Millisecond

// Scheduler schedules and cancels per-topic retry timers. At most one
// timer is outstanding per topic at a time.
type Scheduler struct {
	delay time.Duration
	fire  func(topic string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// New builds a Scheduler that invokes fire(topic) after delay has elapsed
// since Schedule(topic) was called, unless cancelled first. fire is called
// from a timer goroutine and must not block for long.
func New(delay time.Duration, fire func(topic string)) *Scheduler {
	return &Scheduler{
		delay:  delay,
		fire:   fire,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms a retry timer for topic. Any previously outstanding timer
// for the same topic is replaced. Schedule is a no-op once the scheduler
// has been stopped.
func (s *Scheduler) Schedule(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if old, ok := s.timers[topic]; ok {
		old.Stop()
		delete(s.timers, topic)
	}

	var t *time.Timer
	t = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		// If the map no longer points at this exact timer, it was
		// cancelled (or superseded) between firing and acquiring the
		// lock; do nothing.
		current, ok := s.timers[topic]
		if !ok || current != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, topic)
		s.mu.Unlock()

		s.fire(topic)
	})
	s.timers[topic] = t
}

// Cancel disarms topic's outstanding retry timer, if any. It is the
// mechanism by which retirement suppresses a pending retry.
func (s *Scheduler) Cancel(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[topic]; ok {
		t.Stop()
		delete(s.timers, topic)
	}
}

// Stop disarms every outstanding retry timer and prevents further
// scheduling. It does not wait for any in-flight fire callback to return;
// callers that need that guarantee must synchronize independently.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for topic, t := range s.timers {
		t.Stop()
		delete(s.timers, topic)
	}
}

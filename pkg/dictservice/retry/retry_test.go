// SPDX-License-Identifier: AGPL-3.0-only

package retry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFiresAfterDelay(t *testing.T) {
	fired := make(chan string, 1)
	s := New(10*time.Millisecond, func(topic string) { fired <- topic })

	s.Schedule("s_v1")

	select {
	case topic := <-fired:
		assert.Equal(t, "s_v1", topic)
	case <-time.After(time.Second):
		t.Fatal("retry did not fire")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	fired := make(chan string, 1)
	s := New(20*time.Millisecond, func(topic string) { fired <- topic })

	s.Schedule("s_v1")
	s.Cancel("s_v1")

	select {
	case topic := <-fired:
		t.Fatalf("retry fired after cancel: %s", topic)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestRescheduleReplacesPriorTimer(t *testing.T) {
	var mu sync.Mutex
	var fireCount int
	s := New(20*time.Millisecond, func(topic string) {
		mu.Lock()
		fireCount++
		mu.Unlock()
	})

	s.Schedule("s_v1")
	s.Schedule("s_v1")

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fireCount)
}

func TestStopPreventsFurtherFiresAndScheduling(t *testing.T) {
	fired := make(chan string, 1)
	s := New(20*time.Millisecond, func(topic string) { fired <- topic })

	s.Schedule("s_v1")
	s.Stop()
	s.Schedule("s_v2")

	select {
	case topic := <-fired:
		t.Fatalf("retry fired after Stop: %s", topic)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestCancelOfUnknownTopicIsNoop(t *testing.T) {
	s := New(20*time.Millisecond, func(string) {})
	require.NotPanics(t, func() { s.Cancel("nonexistent") })
}

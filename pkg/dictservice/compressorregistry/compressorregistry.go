// SPDX-License-Identifier: AGPL-3.0-only

// Package compressorregistry models the compressor registry collaborator:
// the process-wide store of decoded dictionaries that serves the query
// path. This service treats it as a write-through, concurrency-safe
// external dependency, constructor-injected rather than a singleton.
package compressorregistry

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Strategy identifies a compression strategy. Only StrategyDict is
// installable; it exists as an enum (rather than a bool) so the registry
// can reject anything else explicitly instead of silently no-op'ing.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyDict
)

// Registry is the subset of the compressor registry this service depends
// on. Implementations must be safe for concurrent use; Install must be
// idempotent for the same topic.
type Registry interface {
	Has(topic string) bool
	Install(strategy Strategy, topic string, dict []byte) error
	Remove(topic string)
}

// InMemory is a process-local reference Registry. It keeps installed
// dictionaries as ready-to-use zstd decoders, so Install is exercised by
// something real rather than a bookkeeping no-op; it never inspects or
// validates the dictionary's semantic content beyond what zstd needs to
// build a decoder.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*zstd.Decoder
}

// NewInMemory constructs an empty InMemory registry.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*zstd.Decoder)}
}

// Has implements Registry.
func (m *InMemory) Has(topic string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[topic]
	return ok
}

// Install implements Registry.
func (m *InMemory) Install(strategy Strategy, topic string, dict []byte) error {
	if strategy != StrategyDict {
		return fmt.Errorf("compressorregistry: unsupported strategy %d for topic %s", strategy, topic)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderDictRaw(0, dict))
	if err != nil {
		return fmt.Errorf("compressorregistry: building decoder for topic %s: %w", topic, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[topic]; ok {
		old.Close()
	}
	m.entries[topic] = dec
	return nil
}

// Remove implements Registry.
func (m *InMemory) Remove(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dec, ok := m.entries[topic]; ok {
		dec.Close()
		delete(m.entries, topic)
	}
}

// SPDX-License-Identifier: AGPL-3.0-only

package compressorregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryInstallHasRemove(t *testing.T) {
	r := NewInMemory()
	topic := "s_v1"

	assert.False(t, r.Has(topic))

	require.NoError(t, r.Install(StrategyDict, topic, []byte("some-raw-content-dictionary")))
	assert.True(t, r.Has(topic))

	// Install is idempotent for the same topic.
	require.NoError(t, r.Install(StrategyDict, topic, []byte("a-different-dictionary")))
	assert.True(t, r.Has(topic))

	r.Remove(topic)
	assert.False(t, r.Has(topic))

	// Remove of an absent topic is a no-op, not an error.
	r.Remove(topic)
	assert.False(t, r.Has(topic))
}

func TestInMemoryInstallRejectsUnsupportedStrategy(t *testing.T) {
	r := NewInMemory()
	err := r.Install(StrategyNone, "s_v1", []byte("bytes"))
	assert.Error(t, err)
	assert.False(t, r.Has("s_v1"))
}

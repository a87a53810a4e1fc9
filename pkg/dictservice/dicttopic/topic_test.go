// SPDX-License-Identifier: AGPL-3.0-only

package dicttopic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "s_v1", Format("s", 1))
	assert.Equal(t, "my-store_v42", Format("my-store", 42))
}

func TestParse(t *testing.T) {
	store, version, err := Parse("s_v1")
	require.NoError(t, err)
	assert.Equal(t, "s", store)
	assert.Equal(t, 1, version)

	store, version, err = Parse("my_store_name_v7")
	require.NoError(t, err)
	assert.Equal(t, "my_store_name", store)
	assert.Equal(t, 7, version)
}

func TestParseMalformed(t *testing.T) {
	for _, topic := range []string{"", "novseparator", "_v1", "s_vNaN"} {
		_, _, err := Parse(topic)
		assert.Error(t, err, topic)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	topic := Format("catalog-store", 123)
	store, version, err := Parse(topic)
	require.NoError(t, err)
	assert.Equal(t, "catalog-store", store)
	assert.Equal(t, 123, version)
}

// SPDX-License-Identifier: AGPL-3.0-only

package replica

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvrouter/dictserve/pkg/dictservice/instancedir"
)

type fakeDirectory struct {
	numPartitions int
	numErr        error
	instances     map[int][]instancedir.Instance
	instancesErr  map[int]error
}

func (d fakeDirectory) NumPartitions(string) (int, error) {
	return d.numPartitions, d.numErr
}

func (d fakeDirectory) ReadyInstances(_ string, partition int) ([]instancedir.Instance, error) {
	if err, ok := d.instancesErr[partition]; ok {
		return nil, err
	}
	return d.instances[partition], nil
}

func TestRandomPickerUnionsAcrossPartitions(t *testing.T) {
	dir := fakeDirectory{
		numPartitions: 2,
		instances: map[int][]instancedir.Instance{
			0: {{Host: "a", Port: 1}},
			1: {{Host: "b", Port: 2}},
		},
	}
	picker := NewRandomPicker(dir, nil)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		inst, ok := picker.Pick(context.Background(), "s_v1")
		require.True(t, ok)
		seen[inst.Host] = true
	}
	assert.True(t, seen["a"] && seen["b"])
}

func TestRandomPickerNoReplicaOnDirectoryError(t *testing.T) {
	dir := fakeDirectory{numErr: errors.New("boom")}
	picker := NewRandomPicker(dir, nil)
	_, ok := picker.Pick(context.Background(), "s_v1")
	assert.False(t, ok)
}

func TestRandomPickerNoReplicaWhenNoInstancesReady(t *testing.T) {
	dir := fakeDirectory{numPartitions: 1, instances: map[int][]instancedir.Instance{}}
	picker := NewRandomPicker(dir, nil)
	_, ok := picker.Pick(context.Background(), "s_v1")
	assert.False(t, ok)
}

func TestRandomPickerSkipsPartitionErrorsButUsesOthers(t *testing.T) {
	dir := fakeDirectory{
		numPartitions: 2,
		instances: map[int][]instancedir.Instance{
			1: {{Host: "b", Port: 2}},
		},
		instancesErr: map[int]error{0: errors.New("partition down")},
	}
	picker := NewRandomPicker(dir, nil)
	inst, ok := picker.Pick(context.Background(), "s_v1")
	require.True(t, ok)
	assert.Equal(t, "b", inst.Host)
}

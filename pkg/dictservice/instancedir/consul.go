// SPDX-License-Identifier: AGPL-3.0-only

package instancedir

import (
	"fmt"
	"strconv"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulDirectory is a reference Directory implementation backed by Consul
// health checks. Partition p of topic t is modeled as the tag
// "partition-<p>" on the Consul service named after the topic; an instance
// is ready iff its aggregated health check passes.
type ConsulDirectory struct {
	client *consulapi.Client
}

// NewConsulDirectory wraps an existing Consul API client.
func NewConsulDirectory(client *consulapi.Client) *ConsulDirectory {
	return &ConsulDirectory{client: client}
}

// NumPartitions implements Directory.
func (d *ConsulDirectory) NumPartitions(topic string) (int, error) {
	entries, _, err := d.client.Catalog().Service(topic, "", nil)
	if err != nil {
		return 0, fmt.Errorf("instancedir: catalog lookup for %s: %w", topic, err)
	}

	highest := -1
	for _, entry := range entries {
		for _, tag := range entry.ServiceTags {
			if n, ok := parsePartitionTag(tag); ok && n > highest {
				highest = n
			}
		}
	}
	return highest + 1, nil
}

// ReadyInstances implements Directory.
func (d *ConsulDirectory) ReadyInstances(topic string, partition int) ([]Instance, error) {
	entries, _, err := d.client.Health().Service(topic, partitionTag(partition), true, nil)
	if err != nil {
		return nil, fmt.Errorf("instancedir: health lookup for %s partition %d: %w", topic, partition, err)
	}

	out := make([]Instance, 0, len(entries))
	for _, e := range entries {
		out = append(out, Instance{
			Host: e.Service.Address,
			Port: e.Service.Port,
		})
	}
	return out, nil
}

func partitionTag(partition int) string {
	return "partition-" + strconv.Itoa(partition)
}

func parsePartitionTag(tag string) (int, bool) {
	const prefix = "partition-"
	if !strings.HasPrefix(tag, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(tag, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

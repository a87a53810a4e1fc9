// SPDX-License-Identifier: AGPL-3.0-only

// Package instancedir models the instance directory collaborator: it maps
// a version's partitions to ready-to-serve replica addresses.
package instancedir

// Instance is one replica ready to serve a partition of a topic. Whether
// it's contacted over TLS is a fetch-wide config toggle, not a
// per-instance property; see dictservice.Config.SSLEnabled.
type Instance struct {
	Host string
	Port int
}

// Directory is the subset of the instance directory this service depends
// on.
type Directory interface {
	// NumPartitions returns the number of partitions backing topic.
	NumPartitions(topic string) (int, error)
	// ReadyInstances returns the replicas currently ready to serve
	// partition of topic.
	ReadyInstances(topic string, partition int) ([]Instance, error)
}

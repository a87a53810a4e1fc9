// SPDX-License-Identifier: AGPL-3.0-only

package dictservice

import (
	"crypto/tls"
	"net/http"
	"time"
)

// defaultMaxIdleConns caps the idle (keep-alive) connections kept open
// across every storage replica this service contacts. It does not cap the
// total number of active connections; only the per-replica cap below does
// that, per host.
const defaultMaxIdleConns = 100

// defaultMaxConnsPerHost is the per-route (per-replica) connection cap.
const defaultMaxConnsPerHost = 2

// NewHTTPClient builds the *http.Client used to contact storage replicas
// when no client is supplied to New: a transport with an idle-connection
// cap across all replicas, a per-route connection cap, and TLS enabled iff
// cfg.SSLEnabled. There is no cap on the total number of active
// connections across replicas.
func NewHTTPClient(cfg Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:    defaultMaxIdleConns,
		MaxConnsPerHost: defaultMaxConnsPerHost,
		IdleConnTimeout: 90 * time.Second,
	}
	if cfg.SSLEnabled {
		transport.TLSClientConfig = &tls.Config{}
	}
	return &http.Client{Transport: transport}
}

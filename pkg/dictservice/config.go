// SPDX-License-Identifier: AGPL-3.0-only

package dictservice

import (
	"flag"
	"fmt"
	"time"
)

// Config configures a Service. Its shape is the committed external
// configuration surface: one shared deadline bounding both a single fetch
// attempt and the entire startup warm-up pass, one knob bounding warm-up
// fetch parallelism, and a toggle selecting TLS for outbound fetch
// requests. The fixed delay between a failed attempt and its retry is
// deliberately not configurable here; see retry.DefaultDelay.
type Config struct {
	// DictionaryRetrievalTimeout bounds a single fetch attempt's
	// resolve-connect-transfer sequence and, as the same shared deadline,
	// the entire startup warm-up pass.
	DictionaryRetrievalTimeout time.Duration `yaml:"dictionary_retrieval_time_ms"`
	// ProcessingThreads bounds the number of simultaneous fetch attempts
	// during warm-up fan-out.
	ProcessingThreads int `yaml:"router_dictionary_processing_threads"`
	// SSLEnabled selects TLS for outbound dictionary fetch requests.
	SSLEnabled bool `yaml:"ssl_enabled"`
}

// RegisterFlags registers Config's fields as command-line flags under
// prefix.
func (c *Config) RegisterFlags(prefix string, f *flag.FlagSet) {
	f.DurationVar(&c.DictionaryRetrievalTimeout, prefix+"dictionary-retrieval-timeout", 10*time.Second, "Deadline for a single dictionary fetch attempt, and for the entire startup warm-up pass.")
	f.IntVar(&c.ProcessingThreads, prefix+"processing-threads", 16, "Maximum number of concurrent dictionary fetch attempts during warm-up.")
	f.BoolVar(&c.SSLEnabled, prefix+"ssl-enabled", false, "Use TLS when contacting storage replicas for dictionary fetches.")
}

// Validate checks Config for internally consistent values.
func (c *Config) Validate() error {
	if c.DictionaryRetrievalTimeout <= 0 {
		return fmt.Errorf("dictionary-retrieval-timeout must be positive")
	}
	if c.ProcessingThreads <= 0 {
		return fmt.Errorf("processing-threads must be positive")
	}
	return nil
}

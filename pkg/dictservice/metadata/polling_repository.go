// SPDX-License-Identifier: AGPL-3.0-only
// Provenance-includes-location: https://github.com/grafana/mimir/blob/main/pkg/storage/tsdb/bucketindex/updater.go
// Provenance-includes-license: AGPL-3.0-only

package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
)

// PollingRepository is a reference Repository implementation backed by a
// JSON HTTP endpoint polled on a fixed interval. It diffs each new
// snapshot against the previous one to decide which listener callback to
// fire per store, the same old-vs-new approach the bucket index updater
// uses to diff discovered blocks against a previous index.
type PollingRepository struct {
	url      string
	client   *http.Client
	interval time.Duration
	logger   log.Logger

	mu        sync.RWMutex
	stores    map[string]Store
	listeners []StoreDataChangedListener
}

// NewPollingRepository builds a PollingRepository that polls url for a
// JSON-encoded store snapshot every interval.
func NewPollingRepository(url string, client *http.Client, interval time.Duration, logger log.Logger) *PollingRepository {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &PollingRepository{
		url:      url,
		client:   client,
		interval: interval,
		logger:   logger,
		stores:   make(map[string]Store),
	}
}

// AddListener implements Repository.
func (r *PollingRepository) AddListener(listener StoreDataChangedListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// AllStores implements Repository.
func (r *PollingRepository) AllStores() []Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Store, 0, len(r.stores))
	for _, s := range r.stores {
		out = append(out, s)
	}
	return out
}

// Store implements Repository.
func (r *PollingRepository) Store(name string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Refresh implements Repository: it performs one synchronous fetch-and-diff
// of the snapshot.
func (r *PollingRepository) Refresh(ctx context.Context) error {
	next, err := r.fetchSnapshot(ctx)
	if err != nil {
		return err
	}
	r.applySnapshot(next)
	return nil
}

// Run polls the snapshot endpoint on r.interval until ctx is cancelled,
// applying an exponential backoff across transient poll failures. Unlike
// the fixed T_retry used for dictionary fetch retries, backoff here is
// appropriate: polling failures are not bounded by a tight per-request
// deadline the way a single dictionary fetch attempt is.
func (r *PollingRepository) Run(ctx context.Context) {
	boff := backoff.New(ctx, backoff.Config{
		MinBackoff: 500 * time.Millisecond,
		MaxBackoff: 30 * time.Second,
		MaxRetries: 0,
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				level.Warn(r.logger).Log("msg", "failed to refresh store snapshot", "err", err)
				boff.Wait()
				continue
			}
			boff.Reset()
		}
	}
}

func (r *PollingRepository) fetchSnapshot(ctx context.Context) (map[string]Store, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building store snapshot request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching store snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching store snapshot: %d", resp.StatusCode)
	}

	var wire []wireStore
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding store snapshot: %w", err)
	}

	out := make(map[string]Store, len(wire))
	for _, ws := range wire {
		out[ws.Name] = ws.toStore()
	}
	return out, nil
}

func (r *PollingRepository) applySnapshot(next map[string]Store) {
	r.mu.Lock()
	prev := r.stores
	r.stores = next
	listeners := append([]StoreDataChangedListener(nil), r.listeners...)
	r.mu.Unlock()

	for name, store := range next {
		if _, existed := prev[name]; !existed {
			for _, l := range listeners {
				l.Created(store)
			}
			continue
		}
		for _, l := range listeners {
			l.Changed(store)
		}
	}

	for name, store := range prev {
		if _, still := next[name]; !still {
			for _, l := range listeners {
				l.Deleted(store)
			}
		}
	}
}

type wireStore struct {
	Name     string        `json:"name"`
	Versions []wireVersion `json:"versions"`
}

type wireVersion struct {
	Number   int    `json:"number"`
	Strategy string `json:"strategy"`
	Status   string `json:"status"`
}

func (ws wireStore) toStore() Store {
	versions := make(map[int]Version, len(ws.Versions))
	for _, wv := range ws.Versions {
		versions[wv.Number] = Version{
			Number:   wv.Number,
			Strategy: parseStrategy(wv.Strategy),
			Status:   parseStatus(wv.Status),
		}
	}
	return Store{Name: ws.Name, Versions: versions}
}

func parseStrategy(s string) Strategy {
	if s == "DICT" {
		return StrategyDict
	}
	return StrategyNone
}

func parseStatus(s string) Status {
	if s == "ONLINE" {
		return StatusOnline
	}
	return StatusOffline
}

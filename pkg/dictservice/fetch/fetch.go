// SPDX-License-Identifier: AGPL-3.0-only

// Package fetch issues the single HTTP GET that retrieves one dictionary
// for one (store, version) pair.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"time"

	"github.com/kvrouter/dictserve/pkg/dictservice/dicttopic"
	"github.com/kvrouter/dictserve/pkg/dictservice/dictservicepb"
	"github.com/kvrouter/dictserve/pkg/dictservice/instancedir"
)

// Picker resolves a replica to contact for a topic. It must never return
// an error to its caller: an unresolvable topic is reported as ok=false so
// the caller can translate it into a NoReplica failure rather than a hard
// transport error.
type Picker interface {
	Pick(ctx context.Context, topic string) (instancedir.Instance, bool)
}

// Fetcher retrieves the dictionary bytes for one dataset version.
type Fetcher interface {
	Fetch(ctx context.Context, storeName string, versionNumber int) ([]byte, error)
}

// HTTPFetcher is the production Fetcher: it picks a replica, issues one
// GET against it, and decodes the response.
type HTTPFetcher struct {
	client     *http.Client
	picker     Picker
	timeout    time.Duration
	sslEnabled bool
}

// NewHTTPFetcher builds an HTTPFetcher. timeout bounds the entire
// resolve-connect-transfer sequence of a single attempt. sslEnabled
// selects the scheme used to contact every replica; TLS is otherwise
// configured once, transport-wide, on client.
func NewHTTPFetcher(client *http.Client, picker Picker, timeout time.Duration, sslEnabled bool) *HTTPFetcher {
	return &HTTPFetcher{client: client, picker: picker, timeout: timeout, sslEnabled: sslEnabled}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, storeName string, versionNumber int) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	topic := dicttopic.Format(storeName, versionNumber)

	inst, ok := f.picker.Pick(fetchCtx, topic)
	if !ok {
		return nil, noReplica()
	}

	scheme := "http"
	if f.sslEnabled {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d/dictionary/%s/%d", scheme, inst.Host, inst.Port, storeName, versionNumber)
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, transportErr(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, timeoutErr(err)
		}
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, httpError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, timeoutErr(err)
		}
		return nil, badResponse(err)
	}
	if len(body) == 0 {
		return nil, badResponse(errors.New("empty response body"))
	}

	var payload dictservicepb.DictionaryPayload
	if err := dictservicepb.Unmarshal(body, &payload); err != nil {
		return nil, badResponse(fmt.Errorf("decoding dictionary payload: %w", err))
	}
	if len(payload.Bytes) == 0 {
		return nil, badResponse(errors.New("dictionary payload carries no bytes"))
	}

	return payload.Bytes, nil
}

// SPDX-License-Identifier: AGPL-3.0-only

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvrouter/dictserve/pkg/dictservice/dictservicepb"
	"github.com/kvrouter/dictserve/pkg/dictservice/instancedir"
)

type fixedPicker struct {
	inst instancedir.Instance
	ok   bool
}

func (p fixedPicker) Pick(context.Context, string) (instancedir.Instance, bool) {
	return p.inst, p.ok
}

func instanceFor(t *testing.T, srv *httptest.Server) instancedir.Instance {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return instancedir.Instance{Host: host, Port: port}
}

func TestHTTPFetcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dictionary/s/1", r.URL.Path)
		body, err := dictservicepb.Marshal(&dictservicepb.DictionaryPayload{Strategy: 1, Topic: "s_v1", Bytes: []byte{0xAA}})
		require.NoError(t, err)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), fixedPicker{inst: instanceFor(t, srv), ok: true}, time.Second, false)
	bytes, err := f.Fetch(context.Background(), "s", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, bytes)
}

func TestHTTPFetcherNoReplica(t *testing.T) {
	f := NewHTTPFetcher(http.DefaultClient, fixedPicker{ok: false}, time.Second, false)
	_, err := f.Fetch(context.Background(), "s", 1)
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNoReplica, fe.Kind)
}

func TestHTTPFetcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), fixedPicker{inst: instanceFor(t, srv), ok: true}, time.Second, false)
	_, err := f.Fetch(context.Background(), "s", 1)
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindHTTPError, fe.Kind)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
}

func TestHTTPFetcherBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 with an empty body.
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), fixedPicker{inst: instanceFor(t, srv), ok: true}, time.Second, false)
	_, err := f.Fetch(context.Background(), "s", 1)
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindBadResponse, fe.Kind)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte("too late"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client(), fixedPicker{inst: instanceFor(t, srv), ok: true}, 5*time.Millisecond, false)
	_, err := f.Fetch(context.Background(), "s", 1)
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Kind == KindTimeout || strings.Contains(fe.Error(), "timeout"))
}

// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arke-Institute/arke-metadata-service/api"
	"github.com/Arke-Institute/arke-metadata-service/arkestore"
	"github.com/Arke-Institute/arke-metadata-service/chunk"
	"github.com/Arke-Institute/arke-metadata-service/deepinfra"
	"github.com/Arke-Institute/arke-metadata-service/extract"
	"github.com/Arke-Institute/arke-metadata-service/fetcher"
	"github.com/Arke-Institute/arke-metadata-service/health"
	"github.com/Arke-Institute/arke-metadata-service/orchestrator"
)

func newAPIServer(t *testing.T) (*httptest.Server, *health.Health) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(store.Close)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	t.Cleanup(gateway.Close)
	orch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(orch.Close)

	storeClient := arkestore.New(store.URL)
	dispatcher := chunk.NewDispatcher(chunk.Config{
		AlarmInterval:     2 * time.Millisecond,
		CallbackBaseDelay: time.Millisecond,
	},
		storeClient,
		fetcher.New(storeClient, 128000, 0.5, 0),
		extract.New(deepinfra.New(gateway.URL, "test-key", "test-model")),
		orchestrator.New(orch.URL),
	)
	t.Cleanup(dispatcher.Close)

	healthStatus := health.New(func() []string { return dispatcher.ActiveChunks() })
	handler, _ := api.New(dispatcher, extract.New(deepinfra.New(gateway.URL, "test-key", "test-model")),
		healthStatus, api.Options{AllowedOrigins: "*"})

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, healthStatus
}

func TestHealthEndpoint(t *testing.T) {
	ts, healthStatus := newAPIServer(t)

	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	healthStatus.SetReady(true)

	res, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newAPIServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/process", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.arke.institute")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouting(t *testing.T) {
	ts, _ := newAPIServer(t)

	res, err := http.Get(ts.URL + "/no-such-route")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	badBody, err := http.Post(ts.URL+"/process", "application/json", strings.NewReader("{oops"))
	require.NoError(t, err)
	badBody.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badBody.StatusCode)
}

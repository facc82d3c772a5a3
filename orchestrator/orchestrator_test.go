// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Callback(t *testing.T) {
	sent := &Payload{
		BatchID: "batch-7",
		ChunkID: "batch-7-chunk-2",
		Status:  StatusPartial,
		Results: []Result{
			{PI: "pi-1", Status: "success", NewTip: "bafytip1", NewVersion: 4},
			{PI: "pi-2", Status: "error", Error: "LLM error 429"},
		},
		Summary: Summary{Total: 2, Succeeded: 1, Failed: 1, ProcessingTimeMS: 5120},
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/callback/pinax/batch-7", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, *sent, got)

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := New(ts.URL)
	assert.NoError(t, client.Callback(context.Background(), "batch-7", sent))
}

func TestClient_CallbackRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer ts.Close()

	client := New(ts.URL)
	err := client.Callback(context.Background(), "batch-7", &Payload{BatchID: "batch-7"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNot2xxStatus)
	assert.Contains(t, err.Error(), "502")
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		succeeded int
		failed    int
		globalErr string
		want      string
	}{
		{"all succeeded", 3, 0, "", StatusSuccess},
		{"empty chunk", 0, 0, "", StatusSuccess},
		{"all failed", 0, 3, "", StatusError},
		{"global failure", 0, 0, "worker panic", StatusError},
		{"mixed", 2, 1, "", StatusPartial},
		{"partial despite global error", 2, 1, "late failure", StatusPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.succeeded, tt.failed, tt.globalErr))
		})
	}
}

// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arke-Institute/arke-metadata-service/deepinfra"
	"github.com/Arke-Institute/arke-metadata-service/extract"
)

func newTestServer(t *testing.T, gatewayStatus int, content string) *httptest.Server {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if gatewayStatus != http.StatusOK {
			w.WriteHeader(gatewayStatus)
			w.Write([]byte(`{"error":{"message":"model exploded","type":"server_error"}}`))
			return
		}
		contentBytes, _ := json.Marshal(content)
		fmt.Fprintf(w, `{
			"choices": [{"message": {"role": "assistant", "content": %s}}],
			"usage": {"prompt_tokens": 321, "completion_tokens": 55}
		}`, contentBytes)
	}))
	t.Cleanup(gateway.Close)

	router := mux.NewRouter()
	New(extract.New(deepinfra.New(gateway.URL, "test-key", "test-model"))).Mount(router, "")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestExtractMetadata(t *testing.T) {
	ts := newTestServer(t, http.StatusOK,
		`{"title":"Parish ledgers","type":"document","creator":["Clerk's office"],"created":"circa 1891","language":"en","description":"Bound ledgers"}`)

	res := postJSON(t, ts.URL+"/extract-metadata",
		`{"directory_name":"box-7","files":[{"name":"notes.txt","content":"Ledger inventory"}],"institution":"Arke Institute","pi":"01ARZ3NDEKTSV4RRFFQ69G5FAV"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body ExtractResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))

	require.NotNil(t, body.Record)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", body.Record.ID)
	assert.Equal(t, "Parish ledgers", body.Record.Title)
	assert.Equal(t, "Text", body.Record.Type, "alias normalized to the DCMI term")
	assert.Equal(t, "1891", body.Record.Created)
	assert.Equal(t, "Arke Institute", body.Record.Institution)
	assert.Equal(t, "https://arke.institute/01ARZ3NDEKTSV4RRFFQ69G5FAV", body.Record.AccessURL)

	require.NotNil(t, body.Validation)
	assert.True(t, body.Validation.Valid)

	assert.Equal(t, 321, body.Usage.PromptTokens)
	assert.Equal(t, 55, body.Usage.CompletionTokens)
	assert.InDelta(t, 321.0/1e6*0.075+55.0/1e6*0.2, body.Usage.CostUSD, 1e-12)
}

func TestExtractMetadataGatewayFailure(t *testing.T) {
	ts := newTestServer(t, http.StatusInternalServerError, "")

	res := postJSON(t, ts.URL+"/extract-metadata",
		`{"files":[{"name":"notes.txt","content":"x"}]}`)
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Contains(t, body.Error, "LLM error 500")
	assert.Greater(t, body.Timestamp, int64(0))
}

func TestExtractMetadataRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, http.StatusOK, "{}")

	res := postJSON(t, ts.URL+"/extract-metadata", `{oops`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = postJSON(t, ts.URL+"/extract-metadata", `{"files":[]}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = postJSON(t, ts.URL+"/extract-metadata", `{"files":[{"content":"nameless"}]}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestValidateMetadata(t *testing.T) {
	ts := newTestServer(t, http.StatusOK, "{}")

	res := postJSON(t, ts.URL+"/validate-metadata", `{"record":{
		"id": "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"title": "Survey photographs",
		"type": "StillImage",
		"creator": "Field survey",
		"institution": "Arke Institute",
		"created": "1923",
		"access_url": "https://arke.institute/01ARZ3NDEKTSV4RRFFQ69G5FAV",
		"description": "Glass plate negatives",
		"subjects": ["surveying"],
		"language": "en",
		"source": "PINAX"
	}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var valid struct {
		Valid           bool     `json:"valid"`
		MissingRequired []string `json:"missing_required"`
		Warnings        []string `json:"warnings"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&valid))
	assert.True(t, valid.Valid)
	assert.Empty(t, valid.MissingRequired)
	assert.Empty(t, valid.Warnings)

	res = postJSON(t, ts.URL+"/validate-metadata", `{"record":{"title":"Untitled"}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&valid))
	assert.False(t, valid.Valid)
	assert.Contains(t, valid.MissingRequired, "id")
	assert.Contains(t, valid.MissingRequired, "creator")

	res = postJSON(t, ts.URL+"/validate-metadata", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = postJSON(t, ts.URL+"/validate-metadata", `{oops`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

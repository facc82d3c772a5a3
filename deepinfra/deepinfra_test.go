// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package deepinfra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func TestClient_ChatJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)
		assert.Equal(t, 1024, req.MaxTokens)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"title\":\"Box 12\"}"}}],
			"usage": {"prompt_tokens": 1200, "completion_tokens": 80}
		}`))
	}))
	defer ts.Close()

	client := New(ts.URL, "test-key", "test-model")
	content, usage, err := client.ChatJSON(context.Background(), "you are an archivist", "describe this")

	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Box 12"}`, content)
	assert.Equal(t, 1200, usage.PromptTokens)
	assert.Equal(t, 80, usage.CompletionTokens)
}

func TestClient_ChatJSONEmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [], "usage": {}}`))
	}))
	defer ts.Close()

	client := New(ts.URL, "test-key", "test-model")
	_, _, err := client.ChatJSON(context.Background(), "sys", "usr")

	assert.ErrorIs(t, err, ErrEmptyChoices)
}

func TestClient_ChatJSONGatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer ts.Close()

	client := New(ts.URL, "test-key", "test-model")
	_, _, err := client.ChatJSON(context.Background(), "sys", "usr")

	require.Error(t, err)
	status, body, ok := StatusOf(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "rate limited")
}

func TestStatusOfPlainError(t *testing.T) {
	_, _, ok := StatusOf(errors.New("dial tcp: connection refused"))
	assert.False(t, ok)
}

func TestUsageCost(t *testing.T) {
	u := Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}
	assert.InDelta(t, 0.275, u.Cost(), 1e-9)

	assert.Zero(t, Usage{}.Cost())
}

func TestNewDefaults(t *testing.T) {
	client := New("", "key", "")
	assert.Equal(t, DefaultModel, client.Model())
}

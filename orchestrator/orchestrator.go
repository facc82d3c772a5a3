// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package orchestrator notifies the batch orchestrator when a chunk has
// settled. Delivery is at-least-once: the caller retries failed callbacks,
// and the orchestrator deduplicates by chunk_id.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Chunk-level callback statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ErrNot2xxStatus is returned when the orchestrator does not acknowledge a
// callback.
var ErrNot2xxStatus = errors.New("callback not acknowledged")

// Result reports the outcome for a single PI.
type Result struct {
	PI         string `json:"pi"`
	Status     string `json:"status"`
	NewTip     string `json:"new_tip,omitempty"`
	NewVersion int64  `json:"new_version,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Summary aggregates the per-PI outcomes of a chunk.
type Summary struct {
	Total            int   `json:"total"`
	Succeeded        int   `json:"succeeded"`
	Failed           int   `json:"failed"`
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

// Payload is the callback body delivered once per chunk settlement.
type Payload struct {
	BatchID string   `json:"batch_id"`
	ChunkID string   `json:"chunk_id"`
	Status  string   `json:"status"`
	Results []Result `json:"results"`
	Summary Summary  `json:"summary"`
	Error   string   `json:"error,omitempty"`
}

// DeriveStatus maps chunk outcome counts to the callback status. A chunk
// with no failures succeeds, one with no successes fails, anything in
// between is partial.
func DeriveStatus(succeeded, failed int, globalErr string) string {
	switch {
	case failed == 0 && globalErr == "":
		return StatusSuccess
	case succeeded == 0:
		return StatusError
	default:
		return StatusPartial
	}
}

// Client posts chunk callbacks to the orchestrator.
type Client struct {
	url string
	c   *http.Client
}

// New creates a new Client for the orchestrator at the provided base URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(rawurl string, c *http.Client) *Client {
	return &Client{url: strings.TrimSuffix(rawurl, "/"), c: c}
}

// URL returns the base URL of the orchestrator.
func (c *Client) URL() string { return c.url }

// Callback delivers the chunk settlement payload for the given batch.
func (c *Client) Callback(ctx context.Context, batchID string, payload *Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("unable to marshal callback payload - %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/callback/pinax/"+url.PathEscape(batchID), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback rejected - Status Code %d - %s - %w", resp.StatusCode, body, ErrNot2xxStatus)
	}
	return nil
}

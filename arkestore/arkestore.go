// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package arkestore provides an HTTP client for the Arke object store.
// Entities are addressed by persistent identifier (PI) and carry an
// append-only version history; blobs are addressed by CID. Appending a
// version is guarded by a compare-and-swap on the entity tip.
package arkestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/Arke-Institute/arke-metadata-service/cache"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNot200Status = errors.New("not 200 status code")
	ErrTipConflict  = errors.New("tip conflict")
)

// downloadCacheLimit bounds the number of blobs kept in memory. Context
// bundles re-read the same finding-aid and sidecar blobs across PIs of a
// chunk, so even a small cache absorbs most repeat fetches.
const downloadCacheLimit = 512

// Entity is the version-controlled view of a stored object.
type Entity struct {
	PI         string            `json:"pi"`
	Tip        string            `json:"tip"`
	Version    int64             `json:"version"`
	Components map[string]string `json:"components"`
	ChildrenPI []string          `json:"children_pi,omitempty"`
	ParentPI   string            `json:"parent_pi,omitempty"`
	Label      string            `json:"label,omitempty"`
}

// UnmarshalJSON accepts both current responses carrying "tip" and older
// ones carrying "manifest_cid".
func (e *Entity) UnmarshalJSON(data []byte) error {
	type alias Entity
	raw := struct {
		*alias
		ManifestCID string `json:"manifest_cid"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if e.Tip == "" {
		e.Tip = raw.ManifestCID
	}
	return nil
}

// AppendResult reports the entity state after a successful version append.
type AppendResult struct {
	PI      string `json:"pi"`
	Tip     string `json:"tip"`
	Version int64  `json:"version"`
}

type appendRequest struct {
	ExpectTip  string            `json:"expect_tip"`
	Components map[string]string `json:"components"`
	Note       string            `json:"note,omitempty"`
}

// Client talks to the object store over HTTP. Downloads are cached by CID;
// CIDs name immutable content, so cached entries never need invalidation.
type Client struct {
	url       string
	c         *http.Client
	downloads *cache.LRU
	dlStats   cache.Stats
	sf        singleflight.Group
}

// New creates a new Client for the store at the provided base URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(rawurl string, c *http.Client) *Client {
	downloads, _ := cache.NewLRU(downloadCacheLimit)
	return &Client{
		url:       strings.TrimSuffix(rawurl, "/"),
		c:         c,
		downloads: downloads,
	}
}

// URL returns the base URL of the store.
func (c *Client) URL() string { return c.url }

// GetEntity retrieves the entity record for the given PI.
func (c *Client) GetEntity(ctx context.Context, pi string) (*Entity, error) {
	body, err := c.httpGET(ctx, c.url+"/entities/"+url.PathEscape(pi))
	if err != nil {
		countOp("entity", statusLabel(err))
		return nil, fmt.Errorf("unable to retrieve entity - %w", err)
	}
	countOp("entity", "ok")

	var entity Entity
	if err = json.Unmarshal(body, &entity); err != nil {
		return nil, fmt.Errorf("unable to unmarshal entity - %w", err)
	}
	if entity.PI == "" {
		entity.PI = pi
	}
	return &entity, nil
}

// Download fetches the blob addressed by cid. Results are served from an
// LRU cache, and concurrent fetches of the same cid are collapsed into a
// single request.
func (c *Client) Download(ctx context.Context, cid string) ([]byte, error) {
	value, cached, err := c.downloads.GetOrLoad(cid, func(interface{}) (interface{}, error) {
		data, err, _ := c.sf.Do(cid, func() (interface{}, error) {
			return c.httpGET(ctx, c.url+"/download/"+url.PathEscape(cid))
		})
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		countOp("download", statusLabel(err))
		return nil, fmt.Errorf("unable to download %s - %w", cid, err)
	}
	if cached {
		c.dlStats.Hit()
	} else {
		c.dlStats.Miss()
		countOp("download", "ok")
	}
	return value.([]byte), nil
}

// Upload stores content as an immutable blob and returns its CID. The store
// accepts a multipart form with a single "file" part.
func (c *Client) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("unable to build upload form - %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("unable to build upload form - %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("unable to build upload form - %w", err)
	}

	body, status, err := c.httpRequest(ctx, "POST", c.url+"/upload", form.FormDataContentType(), &buf)
	if err != nil {
		countOp("upload", "err")
		return "", fmt.Errorf("unable to upload - %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		countOp("upload", "err")
		return "", fmt.Errorf("unable to upload - http error - Status Code %d - %s - %w", status, body, ErrNot200Status)
	}
	countOp("upload", "ok")

	var uploaded []struct {
		CID string `json:"cid"`
	}
	if err = json.Unmarshal(body, &uploaded); err != nil {
		return "", fmt.Errorf("unable to unmarshal upload result - %w", err)
	}
	if len(uploaded) == 0 || uploaded[0].CID == "" {
		return "", errors.New("upload result carries no cid")
	}
	return uploaded[0].CID, nil
}

// AppendVersion appends a new version to the entity history, guarded by a
// compare-and-swap on the current tip. A stale expectTip yields
// ErrTipConflict; callers re-read the entity and retry.
func (c *Client) AppendVersion(ctx context.Context, pi, expectTip string, components map[string]string, note string) (*AppendResult, error) {
	data, err := json.Marshal(appendRequest{ExpectTip: expectTip, Components: components, Note: note})
	if err != nil {
		return nil, fmt.Errorf("unable to marshal version payload - %w", err)
	}

	body, status, err := c.httpRequest(ctx, "POST", c.url+"/entities/"+url.PathEscape(pi)+"/versions", "application/json", bytes.NewReader(data))
	if err != nil {
		countOp("append", "err")
		return nil, fmt.Errorf("unable to append version - %w", err)
	}
	switch {
	case status == http.StatusConflict:
		countOp("append", "conflict")
		return nil, fmt.Errorf("append rejected - %s - %w", body, ErrTipConflict)
	case status == http.StatusNotFound:
		countOp("append", "err")
		return nil, ErrNotFound
	case status != http.StatusOK && status != http.StatusCreated:
		countOp("append", "err")
		return nil, fmt.Errorf("unable to append version - http error - Status Code %d - %s - %w", status, body, ErrNot200Status)
	}
	countOp("append", "ok")

	var res AppendResult
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("unable to unmarshal version result - %w", err)
	}
	if res.PI == "" {
		res.PI = pi
	}
	return &res, nil
}

// CacheStats reports download cache effectiveness. The boolean is true when
// the hit rate changed since the last call.
func (c *Client) CacheStats() (bool, int64, int64) {
	return c.dlStats.Stats()
}

func (c *Client) httpGET(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.httpRequest(ctx, "GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status != http.StatusOK:
		return nil, fmt.Errorf("http error - Status Code %d - %s - %w", status, body, ErrNot200Status)
	}
	return body, nil
}

func (c *Client) httpRequest(ctx context.Context, method, url, contentType string, payload io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("error reading response body: %w", err)
	}
	return responseBody, resp.StatusCode, nil
}

func statusLabel(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "notfound"
	}
	return "err"
}

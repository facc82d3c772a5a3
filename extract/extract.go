// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package extract turns a context bundle into a validated PINAX record via
// a JSON-mode chat completion.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Arke-Institute/arke-metadata-service/deepinfra"
	"github.com/Arke-Institute/arke-metadata-service/fetcher"
	"github.com/Arke-Institute/arke-metadata-service/log"
	"github.com/Arke-Institute/arke-metadata-service/pinax"
)

var logger = log.WithContext("pkg", "extract")

// accessURLBase prefixes generated access URLs when the caller supplies none.
const accessURLBase = "https://arke.institute/"

// Options carry per-request inputs beyond the bundle itself. The override
// fields win over whatever the model produces.
type Options struct {
	CustomPrompt string
	ID           string // usually the PI of the entity being described
	Institution  string
	AccessURL    string
}

// Result is a finished extraction: the post-processed record, its
// validation and the tokens the completion consumed.
type Result struct {
	Record     *pinax.Record
	Validation *pinax.Validation
	Usage      deepinfra.Usage
}

// Extractor drives the model gateway.
type Extractor struct {
	llm *deepinfra.Client
}

// New creates an Extractor on top of the given gateway client.
func New(llm *deepinfra.Client) *Extractor {
	return &Extractor{llm: llm}
}

// Extract runs the three extraction steps: prompt assembly, the model call
// and post-processing. Gateway failures surface as *LLMError and undecodable
// completions as *ParseError; both are retryable by the caller.
func (e *Extractor) Extract(ctx context.Context, bundle *fetcher.Bundle, opts Options) (*Result, error) {
	system := buildSystemPrompt(opts.CustomPrompt)
	user := buildUserPrompt(bundle)

	start := time.Now()
	content, usage, err := e.llm.ChatJSON(ctx, system, user)
	metricModelCallDuration().Observe(time.Since(start).Milliseconds())
	if err != nil {
		metricModelCalls().AddWithLabel(1, map[string]string{"outcome": "llm_error"})
		status, body, ok := deepinfra.StatusOf(err)
		if !ok {
			body = err.Error()
		}
		return nil, &LLMError{Status: status, Body: body}
	}

	var rec pinax.Record
	if err := json.Unmarshal([]byte(stripFences(content)), &rec); err != nil {
		metricModelCalls().AddWithLabel(1, map[string]string{"outcome": "parse_error"})
		return nil, &ParseError{Content: content, Err: err}
	}
	metricModelCalls().AddWithLabel(1, map[string]string{"outcome": "ok"})
	metricModelTokens().AddWithLabel(int64(usage.PromptTokens), map[string]string{"kind": "prompt"})
	metricModelTokens().AddWithLabel(int64(usage.CompletionTokens), map[string]string{"kind": "completion"})

	finalize(&rec, bundle, opts)

	validation := pinax.Validate(&rec)
	if !validation.Valid {
		logger.Debug("extracted record has validation problems",
			"dir", bundle.DirectoryName,
			"missing", strings.Join(validation.MissingRequired, ","))
	}
	return &Result{
		Record:     &rec,
		Validation: validation,
		Usage:      usage,
	}, nil
}

// finalize applies the deterministic post-processing pass: overrides win,
// identity and access_url are pinned, defaults and normalization fill the
// gaps the model left.
func finalize(rec *pinax.Record, bundle *fetcher.Bundle, opts Options) {
	if opts.ID != "" {
		rec.ID = opts.ID
	}
	if opts.Institution != "" {
		rec.Institution = opts.Institution
	}
	if rec.ID == "" && bundle.ExistingPinax != nil {
		rec.ID = bundle.ExistingPinax.ID
	}
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	// The model never decides the access URL: it is the caller's or the
	// canonical one derived from the identifier.
	if opts.AccessURL != "" {
		rec.AccessURL = opts.AccessURL
	} else {
		rec.AccessURL = accessURLBase + rec.ID
	}

	if rec.Source == "" {
		rec.Source = "PINAX"
	}

	creators := rec.Creator[:0]
	for _, c := range rec.Creator {
		if strings.TrimSpace(c) != "" {
			creators = append(creators, c)
		}
	}
	if len(creators) == 0 {
		rec.Creator = nil
	} else {
		rec.Creator = creators
	}
	if len(rec.Subjects) == 0 {
		rec.Subjects = nil
	}

	rec.Created = pinax.NormalizeDate(rec.Created)
	rec.Type = pinax.NormalizeType(rec.Type)
}

// stripFences unwraps content from markdown code fences. Some models wrap
// JSON-mode output in ```json blocks.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

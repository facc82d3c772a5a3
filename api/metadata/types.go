// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metadata

import (
	"github.com/Arke-Institute/arke-metadata-service/pinax"
)

// ExtractRequest is one synchronous extraction: the caller supplies the file
// contents directly instead of pointing at a stored entity.
type ExtractRequest struct {
	DirectoryName string        `json:"directory_name,omitempty"`
	Files         []RequestFile `json:"files"`
	CustomPrompt  string        `json:"custom_prompt,omitempty"`
	Institution   string        `json:"institution,omitempty"`
	PI            string        `json:"pi,omitempty"`
	AccessURL     string        `json:"access_url,omitempty"`
}

type RequestFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ExtractResponse carries the extracted record together with its validation
// outcome and what the model call cost.
type ExtractResponse struct {
	Record     *pinax.Record     `json:"record"`
	Validation *pinax.Validation `json:"validation"`
	Usage      Usage             `json:"usage"`
}

type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// ValidateRequest wraps a record to check against the PINAX rules.
type ValidateRequest struct {
	Record *pinax.Record `json:"record"`
}

// ErrorResponse is the JSON body of an extraction failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

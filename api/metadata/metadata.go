// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metadata exposes the stateless extraction API: single-shot record
// extraction from inline files and pure record validation. Neither endpoint
// touches chunk state.
package metadata

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Arke-Institute/arke-metadata-service/api/utils"
	"github.com/Arke-Institute/arke-metadata-service/extract"
	"github.com/Arke-Institute/arke-metadata-service/fetcher"
	"github.com/Arke-Institute/arke-metadata-service/log"
	"github.com/Arke-Institute/arke-metadata-service/pinax"
)

var logger = log.WithContext("pkg", "metadata")

type Metadata struct {
	extractor *extract.Extractor
}

func New(extractor *extract.Extractor) *Metadata {
	return &Metadata{
		extractor: extractor,
	}
}

func (m *Metadata) handleExtract(w http.ResponseWriter, r *http.Request) error {
	var req ExtractRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if len(req.Files) == 0 {
		return utils.BadRequest(errors.New("files: empty"))
	}

	bundle := &fetcher.Bundle{DirectoryName: req.DirectoryName}
	for _, f := range req.Files {
		if f.Name == "" {
			return utils.BadRequest(errors.New("files: missing name"))
		}
		bundle.Files = append(bundle.Files, fetcher.File{Name: f.Name, Content: f.Content})
	}

	res, err := m.extractor.Extract(r.Context(), bundle, extract.Options{
		CustomPrompt: req.CustomPrompt,
		ID:           req.PI,
		Institution:  req.Institution,
		AccessURL:    req.AccessURL,
	})
	if err != nil {
		logger.Warn("extraction failed", "dir", req.DirectoryName, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return utils.WriteJSON(w, &ErrorResponse{
			Error:     err.Error(),
			Timestamp: time.Now().Unix(),
		})
	}

	return utils.WriteJSON(w, &ExtractResponse{
		Record:     res.Record,
		Validation: res.Validation,
		Usage: Usage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			CostUSD:          res.Usage.Cost(),
		},
	})
}

func (m *Metadata) handleValidate(w http.ResponseWriter, r *http.Request) error {
	var req ValidateRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if req.Record == nil {
		return utils.BadRequest(errors.New("record: missing"))
	}

	return utils.WriteJSON(w, pinax.Validate(req.Record))
}

func (m *Metadata) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/extract-metadata").
		Methods(http.MethodPost).
		Name("metadata_extract").
		HandlerFunc(utils.WrapHandlerFunc(m.handleExtract))
	sub.Path("/validate-metadata").
		Methods(http.MethodPost).
		Name("metadata_validate").
		HandlerFunc(utils.WrapHandlerFunc(m.handleValidate))
}

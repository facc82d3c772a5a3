// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package batches exposes the asynchronous extraction API: chunk admission
// and status polling.
package batches

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Arke-Institute/arke-metadata-service/api/utils"
	"github.com/Arke-Institute/arke-metadata-service/chunk"
)

type Batches struct {
	dispatcher *chunk.Dispatcher
}

func New(dispatcher *chunk.Dispatcher) *Batches {
	return &Batches{
		dispatcher: dispatcher,
	}
}

func (b *Batches) handleProcess(w http.ResponseWriter, r *http.Request) error {
	var req chunk.Request
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}

	adm, err := b.dispatcher.Process(&req)
	if err != nil {
		if errors.Is(err, chunk.ErrClosed) {
			return utils.HTTPError(err, http.StatusServiceUnavailable)
		}
		return utils.BadRequest(err)
	}

	if !adm.Accepted {
		return utils.WriteJSON(w, &AlreadyProcessingResponse{
			Status:  statusAlreadyProcessing,
			ChunkID: req.ChunkID,
			Phase:   adm.Phase,
		})
	}

	w.WriteHeader(http.StatusAccepted)
	return utils.WriteJSON(w, &AcceptedResponse{
		Status:   statusAccepted,
		ChunkID:  req.ChunkID,
		TotalPIs: adm.TotalPIs,
	})
}

func (b *Batches) handleGetStatus(w http.ResponseWriter, r *http.Request) error {
	chunkID := mux.Vars(r)["id"]

	res, err := b.dispatcher.Status(chunkID)
	if err != nil {
		if errors.Is(err, chunk.ErrUnknownChunk) {
			return utils.NotFound(errors.WithMessage(err, chunkID))
		}
		return err
	}

	return utils.WriteJSON(w, &StatusResponse{
		ChunkID:  chunkID,
		Phase:    res.Phase,
		Progress: res.Progress,
	})
}

func (b *Batches) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/process").
		Methods(http.MethodPost).
		Name("batches_process").
		HandlerFunc(utils.WrapHandlerFunc(b.handleProcess))
	sub.Path("/status/{id}").
		Methods(http.MethodGet).
		Name("batches_get_status").
		HandlerFunc(utils.WrapHandlerFunc(b.handleGetStatus))
}

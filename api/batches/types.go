// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package batches

import "github.com/Arke-Institute/arke-metadata-service/chunkdb"

// admission statuses
const (
	statusAccepted          = "accepted"
	statusAlreadyProcessing = "already_processing"
)

// AcceptedResponse acknowledges a freshly admitted chunk.
type AcceptedResponse struct {
	Status   string `json:"status"`
	ChunkID  string `json:"chunk_id"`
	TotalPIs int    `json:"total_pis"`
}

// AlreadyProcessingResponse reports the phase of the chunk already running
// under the requested id.
type AlreadyProcessingResponse struct {
	Status  string        `json:"status"`
	ChunkID string        `json:"chunk_id"`
	Phase   chunkdb.Phase `json:"phase"`
}

// StatusResponse is a point-in-time view of an in-flight chunk.
type StatusResponse struct {
	ChunkID  string           `json:"chunk_id"`
	Phase    chunkdb.Phase    `json:"phase"`
	Progress chunkdb.Progress `json:"progress"`
}

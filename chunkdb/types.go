// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chunkdb

// Phase is the chunk state machine phase.
type Phase string

const (
	PhaseProcessing Phase = "PROCESSING"
	PhasePublishing Phase = "PUBLISHING"
	PhaseCallback   Phase = "CALLBACK"
	PhaseDone       Phase = "DONE"
	PhaseError      Phase = "ERROR"
)

// Terminal reports whether the phase admits no further work.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

// Status is the lifecycle state of one PI within a chunk.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// ChunkState is the singleton batch_state row.
type ChunkState struct {
	BatchID      string
	ChunkID      string
	Prefix       string
	CustomPrompt string
	Institution  string
	Phase        Phase
	// StartedAt and CompletedAt are unix milliseconds. CompletedAt is zero
	// until the callback phase finishes.
	StartedAt          int64
	CompletedAt        int64
	CallbackRetryCount int
	GlobalError        string
}

// PIState is one pi_state row.
//
// RecordJSON is non-nil once extraction succeeded. PinaxCID is set after a
// successful upload, NewTip and NewVersion after a successful version append.
// Error is set when the PI reached terminal failure.
type PIState struct {
	PI         string
	Status     Status
	RetryCount int
	RecordJSON []byte
	PinaxCID   string
	NewTip     string
	NewVersion int64
	Error      string
}

// Progress counts PI rows per status.
type Progress struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// ContextFile is one cached context file in bundle order.
type ContextFile struct {
	Name    string
	Content string
}

// CachedContext is the persisted form of a PI's assembled context bundle.
type CachedContext struct {
	PI            string
	DirectoryName string
	// ExistingPinax is the serialized previous record, nil when the entity
	// had none.
	ExistingPinax []byte
	Files         []ContextFile
}

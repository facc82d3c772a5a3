// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chunk implements the batch extraction engine: a dispatcher that
// admits chunks of PIs and one single-writer worker per chunk that drives
// the PROCESSING → PUBLISHING → CALLBACK state machine over a durable
// per-chunk store.
package chunk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Arke-Institute/arke-metadata-service/arkestore"
	"github.com/Arke-Institute/arke-metadata-service/chunkdb"
	"github.com/Arke-Institute/arke-metadata-service/co"
	"github.com/Arke-Institute/arke-metadata-service/extract"
	"github.com/Arke-Institute/arke-metadata-service/fetcher"
	"github.com/Arke-Institute/arke-metadata-service/log"
	"github.com/Arke-Institute/arke-metadata-service/orchestrator"
)

var logger = log.WithContext("pkg", "chunk")

var (
	// ErrClosed rejects work after the dispatcher shut down.
	ErrClosed = errors.New("dispatcher closed")
	// ErrUnknownChunk means no live worker and no durable state exist for
	// the requested chunk.
	ErrUnknownChunk = errors.New("unknown chunk")
)

// Config tunes the chunk engine. Zero values fall back to the production
// defaults.
type Config struct {
	// DataDir holds one SQLite file per in-flight chunk. Empty means
	// in-memory stores, which do not survive a restart.
	DataDir            string
	MaxRetriesPerPI    int
	MaxCallbackRetries int
	// AlarmInterval is the pause between state machine passes.
	AlarmInterval   time.Duration
	AppendAttempts  int
	AppendBaseDelay time.Duration
	// CallbackBaseDelay scales the exponential callback backoff.
	CallbackBaseDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetriesPerPI <= 0 {
		c.MaxRetriesPerPI = 3
	}
	if c.MaxCallbackRetries <= 0 {
		c.MaxCallbackRetries = 3
	}
	if c.AlarmInterval <= 0 {
		c.AlarmInterval = 100 * time.Millisecond
	}
	if c.AppendAttempts <= 0 {
		c.AppendAttempts = 3
	}
	if c.AppendBaseDelay <= 0 {
		c.AppendBaseDelay = 500 * time.Millisecond
	}
	if c.CallbackBaseDelay <= 0 {
		c.CallbackBaseDelay = time.Second
	}
	return c
}

// Request is one inbound chunk of a batch.
type Request struct {
	BatchID      string   `json:"batch_id"`
	ChunkID      string   `json:"chunk_id"`
	PIs          []string `json:"pis"`
	Prefix       string   `json:"prefix"`
	CustomPrompt string   `json:"custom_prompt,omitempty"`
	Institution  string   `json:"institution,omitempty"`
}

func (r *Request) validate() error {
	if r.BatchID == "" {
		return errors.New("batch_id: missing")
	}
	if r.ChunkID == "" {
		return errors.New("chunk_id: missing")
	}
	if strings.ContainsAny(r.ChunkID, `/\`) {
		return errors.New("chunk_id: invalid characters")
	}
	for i, pi := range r.PIs {
		if pi == "" {
			return fmt.Errorf("pis[%d]: empty", i)
		}
	}
	return nil
}

// Admission is the outcome of Process: either a freshly started chunk or
// the phase of the one already running under the same id.
type Admission struct {
	Accepted bool
	Phase    chunkdb.Phase
	TotalPIs int
}

// StatusResult is a point-in-time view of a chunk.
type StatusResult struct {
	Phase    chunkdb.Phase    `json:"phase"`
	Progress chunkdb.Progress `json:"progress"`
}

// Dispatcher owns the worker registry. At most one worker exists per chunk
// id, so per-chunk state transitions stay single-writer.
type Dispatcher struct {
	cfg  Config
	deps deps

	mu      sync.Mutex
	workers map[string]*Worker
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	goes   co.Goes
}

// NewDispatcher wires the chunk engine to its external services.
func NewDispatcher(cfg Config, store *arkestore.Client, f *fetcher.Fetcher, x *extract.Extractor, orch *orchestrator.Client) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:     cfg.withDefaults(),
		deps:    deps{store: store, fetcher: f, extractor: x, orch: orch},
		workers: make(map[string]*Worker),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Process admits a chunk. A chunk whose previous run is still live, or
// whose durable state is non-terminal, is not restarted: the caller gets
// already_processing with the current phase. Otherwise stale state is wiped
// and a fresh worker starts in PROCESSING.
func (d *Dispatcher) Process(req *Request) (*Admission, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	if w, ok := d.workers[req.ChunkID]; ok {
		state, err := w.db.LoadChunk()
		if err != nil {
			return nil, errors.WithMessage(err, "load live chunk state")
		}
		phase := chunkdb.PhaseProcessing
		if state != nil {
			phase = state.Phase
		}
		return &Admission{Accepted: false, Phase: phase}, nil
	}

	db, err := d.openStore(req.ChunkID)
	if err != nil {
		return nil, errors.WithMessage(err, "open chunk store")
	}

	state, err := db.LoadChunk()
	if err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "load chunk state")
	}
	if state != nil && !state.Phase.Terminal() {
		// Leftover of a crashed process. Resume it rather than restart:
		// the caller's PIs are already in the store.
		if err := db.ResetProcessing(); err != nil {
			_ = db.Close()
			return nil, errors.WithMessage(err, "reset processing rows")
		}
		d.spawnLocked(req.ChunkID, db)
		logger.Info("resuming crashed chunk on admission", "chunk", req.ChunkID, "phase", state.Phase)
		return &Admission{Accepted: false, Phase: state.Phase}, nil
	}

	if err := db.Reset(&chunkdb.ChunkState{
		BatchID:      req.BatchID,
		ChunkID:      req.ChunkID,
		Prefix:       req.Prefix,
		CustomPrompt: req.CustomPrompt,
		Institution:  req.Institution,
		Phase:        chunkdb.PhaseProcessing,
		StartedAt:    time.Now().UnixMilli(),
	}, req.PIs); err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "seed chunk state")
	}

	d.spawnLocked(req.ChunkID, db)
	logger.Info("chunk admitted", "chunk", req.ChunkID, "batch", req.BatchID, "pis", len(req.PIs))
	return &Admission{Accepted: true, Phase: chunkdb.PhaseProcessing, TotalPIs: len(req.PIs)}, nil
}

// Status reports the phase and per-status progress of a chunk. Live chunks
// are read through their worker's store, settled or crashed ones through
// the leftover database file.
func (d *Dispatcher) Status(chunkID string) (*StatusResult, error) {
	d.mu.Lock()
	w, live := d.workers[chunkID]
	d.mu.Unlock()

	if live {
		return statusOf(w.db)
	}

	if d.cfg.DataDir == "" {
		return nil, ErrUnknownChunk
	}
	path := d.storePath(chunkID)
	if _, err := os.Stat(path); err != nil {
		return nil, ErrUnknownChunk
	}
	db, err := chunkdb.New(path)
	if err != nil {
		return nil, errors.WithMessage(err, "open chunk store")
	}
	res, err := statusOf(db)
	if errors.Is(err, ErrUnknownChunk) {
		// Opening created an empty store: do not leave it behind.
		_ = db.Drop()
		return nil, err
	}
	_ = db.Close()
	return res, err
}

func statusOf(db *chunkdb.Store) (*StatusResult, error) {
	state, err := db.LoadChunk()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrUnknownChunk
	}
	progress, err := db.CountStatus()
	if err != nil {
		return nil, err
	}
	return &StatusResult{Phase: state.Phase, Progress: *progress}, nil
}

// Recover scans the data directory for chunk stores left by a previous
// process and resumes every non-terminal chunk at its persisted phase.
// Processing rows are reset to pending first, since no in-flight task
// survives a restart. Terminal leftovers are removed.
func (d *Dispatcher) Recover() (int, error) {
	if d.cfg.DataDir == "" {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(d.cfg.DataDir, "chunk-*.db"))
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, path := range matches {
		chunkID := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "chunk-"), ".db")

		db, err := chunkdb.New(path)
		if err != nil {
			logger.Warn("unable to reopen chunk store", "path", path, "err", err)
			continue
		}
		state, err := db.LoadChunk()
		if err != nil || state == nil || state.Phase.Terminal() {
			if err != nil {
				logger.Warn("unable to read chunk state, dropping store", "path", path, "err", err)
			}
			if dropErr := db.Drop(); dropErr != nil {
				logger.Warn("unable to drop stale chunk store", "path", path, "err", dropErr)
			}
			continue
		}
		if err := db.ResetProcessing(); err != nil {
			logger.Warn("unable to reset processing rows", "chunk", chunkID, "err", err)
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			_ = db.Close()
			return recovered, ErrClosed
		}
		if _, ok := d.workers[chunkID]; ok {
			d.mu.Unlock()
			_ = db.Close()
			continue
		}
		d.spawnLocked(chunkID, db)
		d.mu.Unlock()

		logger.Info("resuming chunk", "chunk", chunkID, "phase", state.Phase)
		recovered++
	}
	return recovered, nil
}

// ActiveChunks lists the ids of chunks currently being driven.
func (d *Dispatcher) ActiveChunks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.workers))
	for id := range d.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every worker and waits for them to wind down. Durable chunk
// state stays on disk so the next process can resume it.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	workers := make([]*Worker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.mu.Unlock()

	d.cancel()
	d.goes.Wait()

	for _, w := range workers {
		if err := w.db.Close(); err != nil {
			logger.Warn("unable to close chunk store", "chunk", w.chunkID, "err", err)
		}
	}
	logger.Info("dispatcher closed", "stopped", len(workers))
}

func (d *Dispatcher) storePath(chunkID string) string {
	return filepath.Join(d.cfg.DataDir, "chunk-"+chunkID+".db")
}

func (d *Dispatcher) openStore(chunkID string) (*chunkdb.Store, error) {
	if d.cfg.DataDir == "" {
		return chunkdb.NewMem()
	}
	return chunkdb.New(d.storePath(chunkID))
}

// spawnLocked registers and starts a worker. Caller holds d.mu.
func (d *Dispatcher) spawnLocked(chunkID string, db *chunkdb.Store) {
	w := &Worker{
		chunkID: chunkID,
		db:      db,
		cfg:     d.cfg,
		deps:    d.deps,
		ctx:     d.ctx,
		unregister: func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.workers, chunkID)
			metricActiveChunks().Add(-1)
		},
	}
	d.workers[chunkID] = w
	metricActiveChunks().Add(1)
	d.goes.Go(w.loop)
}

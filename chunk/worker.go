// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Arke-Institute/arke-metadata-service/arkestore"
	"github.com/Arke-Institute/arke-metadata-service/chunkdb"
	"github.com/Arke-Institute/arke-metadata-service/co"
	"github.com/Arke-Institute/arke-metadata-service/extract"
	"github.com/Arke-Institute/arke-metadata-service/fetcher"
	"github.com/Arke-Institute/arke-metadata-service/orchestrator"
	"github.com/Arke-Institute/arke-metadata-service/pinax"
)

const (
	// pinaxComponent is the component name records publish under.
	pinaxComponent = "pinax.json"
	// versionNote annotates appended versions in the entity history.
	versionNote = "Added PINAX metadata"
)

// deps are the external services shared by every worker of a dispatcher.
type deps struct {
	store     *arkestore.Client
	fetcher   *fetcher.Fetcher
	extractor *extract.Extractor
	orch      *orchestrator.Client
}

// Worker drives one chunk through PROCESSING, PUBLISHING and CALLBACK until
// it settles. It is the single writer of its chunk store: per-PI tasks fan
// out as goroutines that only talk to external services, and their outcomes
// are persisted on the worker goroutine between rounds. Progress is
// materialized as row status transitions, so every pass is re-entrant and a
// restart resumes exactly where the previous process stopped.
type Worker struct {
	chunkID    string
	db         *chunkdb.Store
	cfg        Config
	deps       deps
	ctx        context.Context
	unregister func()
}

// loop runs ticks until the chunk settles or the dispatcher closes.
func (w *Worker) loop() {
	defer w.unregister()

	timer := time.NewTimer(w.cfg.AlarmInterval)
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
		}
		delay, again := w.tick()
		if !again {
			return
		}
		timer.Reset(delay)
	}
}

// tick re-reads the phase and runs one pass of it. A panicking pass sets
// global_error and short-circuits to CALLBACK so the orchestrator always
// hears the chunk's fate.
func (w *Worker) tick() (delay time.Duration, again bool) {
	state, err := w.db.LoadChunk()
	if err != nil {
		logger.Error("unable to load chunk state", "chunk", w.chunkID, "err", err)
		return 0, false
	}
	if state == nil {
		logger.Error("chunk state row is gone", "chunk", w.chunkID)
		return 0, false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pass panicked", "chunk", w.chunkID, "phase", state.Phase, "err", r)
			if err := w.db.SetGlobalError(fmt.Sprintf("%s pass panicked: %v", state.Phase, r)); err != nil {
				logger.Error("unable to record global error", "chunk", w.chunkID, "err", err)
			}
			if err := w.db.SetPhase(chunkdb.PhaseCallback); err != nil {
				logger.Error("unable to short-circuit to callback", "chunk", w.chunkID, "err", err)
				delay, again = 0, false
				return
			}
			delay, again = w.cfg.AlarmInterval, true
		}
	}()

	start := time.Now()
	defer func() {
		metricPassDuration().ObserveWithLabels(time.Since(start).Milliseconds(),
			map[string]string{"phase": string(state.Phase)})
	}()

	switch state.Phase {
	case chunkdb.PhaseProcessing:
		return w.processPass(state)
	case chunkdb.PhasePublishing:
		return w.publishPass()
	case chunkdb.PhaseCallback:
		return w.callbackPass(state)
	default:
		w.cleanup(state)
		return 0, false
	}
}

// fail records a pass-level failure and short-circuits to CALLBACK with
// global_error set.
func (w *Worker) fail(op string, err error) (time.Duration, bool) {
	logger.Error("pass failed", "chunk", w.chunkID, "op", op, "err", err)
	if dbErr := w.db.SetGlobalError(op + ": " + err.Error()); dbErr != nil {
		logger.Error("unable to record global error", "chunk", w.chunkID, "err", dbErr)
	}
	if dbErr := w.db.SetPhase(chunkdb.PhaseCallback); dbErr != nil {
		logger.Error("unable to short-circuit to callback", "chunk", w.chunkID, "err", dbErr)
		return 0, false
	}
	return w.cfg.AlarmInterval, true
}

// processPass extracts records for every pending PI. The exit condition is
// checked at entry: once nothing is pending or processing, the chunk moves
// to PUBLISHING.
func (w *Worker) processPass(state *chunkdb.ChunkState) (time.Duration, bool) {
	progress, err := w.db.CountStatus()
	if err != nil {
		return w.fail("count statuses", err)
	}
	if progress.Pending == 0 && progress.Processing == 0 {
		logger.Info("extraction finished", "chunk", w.chunkID,
			"done", progress.Done, "failed", progress.Failed)
		if err := w.db.SetPhase(chunkdb.PhasePublishing); err != nil {
			return w.fail("enter publishing", err)
		}
		return w.cfg.AlarmInterval, true
	}

	pending, err := w.db.PIsByStatus(chunkdb.StatusPending)
	if err != nil {
		return w.fail("select pending", err)
	}

	pis := make([]string, len(pending))
	for i, row := range pending {
		pis[i] = row.PI
	}
	if err := w.db.MarkProcessing(pis); err != nil {
		return w.fail("mark processing", err)
	}

	// Cached contexts are read before the fan-out so that child tasks never
	// touch the store.
	cached := make([]*chunkdb.CachedContext, len(pending))
	for i, row := range pending {
		c, err := w.db.LoadContext(row.PI)
		if err != nil {
			logger.Warn("unable to load cached context", "pi", row.PI, "err", err)
			continue
		}
		cached[i] = c
	}

	outcomes := make([]extractOutcome, len(pending))
	var goes co.Goes
	for i, row := range pending {
		goes.Go(func() {
			outcomes[i] = w.runPipeline(state, row.PI, cached[i])
		})
	}
	goes.Wait()

	for i, out := range outcomes {
		row := pending[i]
		if out.err == nil {
			if err := w.db.SetDone(row.PI, out.record); err != nil {
				return w.fail("persist extraction", err)
			}
			if err := w.db.DeleteContext(row.PI); err != nil {
				logger.Warn("unable to drop cached context", "pi", row.PI, "err", err)
			}
			metricPIOutcomes().AddWithLabel(1, map[string]string{"outcome": "extracted"})
			continue
		}

		retries := row.RetryCount + 1
		if retries >= w.cfg.MaxRetriesPerPI {
			logger.Warn("pi failed terminally", "chunk", w.chunkID, "pi", row.PI,
				"retries", retries, "err", out.err)
			if err := w.db.SetFailed(row.PI, retries, out.err.Error()); err != nil {
				return w.fail("persist pi failure", err)
			}
			if err := w.db.DeleteContext(row.PI); err != nil {
				logger.Warn("unable to drop cached context", "pi", row.PI, "err", err)
			}
			metricPIOutcomes().AddWithLabel(1, map[string]string{"outcome": "failed"})
			continue
		}

		logger.Debug("pi will retry", "chunk", w.chunkID, "pi", row.PI,
			"attempt", retries, "err", out.err)
		if out.cache != nil {
			if err := w.db.SaveContext(out.cache); err != nil {
				logger.Warn("unable to cache context", "pi", row.PI, "err", err)
			}
		}
		if err := w.db.SetRetry(row.PI, retries); err != nil {
			return w.fail("persist retry", err)
		}
	}
	return w.cfg.AlarmInterval, true
}

type extractOutcome struct {
	record []byte
	// cache carries a freshly fetched context back to the worker so a
	// retryable failure does not refetch on the next pass.
	cache *chunkdb.CachedContext
	err   error
}

// runPipeline performs fetch-then-extract for one PI. It never writes to
// the chunk store; the worker persists the outcome between rounds. A panic
// here is converted to a retryable per-PI failure.
func (w *Worker) runPipeline(state *chunkdb.ChunkState, pi string, cached *chunkdb.CachedContext) (out extractOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = extractOutcome{err: fmt.Errorf("pipeline panicked: %v", r)}
		}
	}()

	var bundle *fetcher.Bundle
	if cached != nil {
		bundle = bundleFromCache(cached)
	} else {
		fetched, err := w.deps.fetcher.Fetch(w.ctx, pi)
		if err != nil {
			out.err = err
			return
		}
		bundle = fetched
		out.cache = cacheFromBundle(pi, fetched)
	}

	res, err := w.deps.extractor.Extract(w.ctx, bundle, extract.Options{
		CustomPrompt: state.CustomPrompt,
		ID:           pi,
		Institution:  state.Institution,
	})
	if err != nil {
		out.err = err
		return
	}

	record, err := res.Record.MarshalIndent()
	if err != nil {
		out.err = errors.WithMessage(err, "marshal record")
		return
	}
	out.record = record
	out.cache = nil
	return
}

func bundleFromCache(c *chunkdb.CachedContext) *fetcher.Bundle {
	bundle := &fetcher.Bundle{DirectoryName: c.DirectoryName}
	for _, f := range c.Files {
		bundle.Files = append(bundle.Files, fetcher.File{Name: f.Name, Content: f.Content})
	}
	if len(c.ExistingPinax) > 0 {
		var prev pinax.Record
		if err := json.Unmarshal(c.ExistingPinax, &prev); err == nil {
			bundle.ExistingPinax = &prev
		}
	}
	return bundle
}

func cacheFromBundle(pi string, b *fetcher.Bundle) *chunkdb.CachedContext {
	c := &chunkdb.CachedContext{PI: pi, DirectoryName: b.DirectoryName}
	for _, f := range b.Files {
		c.Files = append(c.Files, chunkdb.ContextFile{Name: f.Name, Content: f.Content})
	}
	if b.ExistingPinax != nil {
		if data, err := json.Marshal(b.ExistingPinax); err == nil {
			c.ExistingPinax = data
		}
	}
	return c
}

// publishPass uploads extracted records and appends them to their entities'
// version histories. It runs two fan-out rounds with a persist step between
// them, so a crash after the uploads never re-uploads on resume.
func (w *Worker) publishPass() (time.Duration, bool) {
	rows, err := w.db.Unpublished()
	if err != nil {
		return w.fail("select unpublished", err)
	}
	if len(rows) == 0 {
		logger.Info("publishing finished", "chunk", w.chunkID)
		if err := w.db.SetPhase(chunkdb.PhaseCallback); err != nil {
			return w.fail("enter callback", err)
		}
		return w.cfg.AlarmInterval, true
	}

	type uploadOutcome struct {
		cid string
		err error
	}
	uploads := make([]uploadOutcome, len(rows))
	var upGoes co.Goes
	for i, row := range rows {
		if row.PinaxCID != "" {
			uploads[i] = uploadOutcome{cid: row.PinaxCID}
			continue
		}
		upGoes.Go(func() {
			cid, err := w.deps.store.Upload(w.ctx, pinaxComponent, row.RecordJSON)
			uploads[i] = uploadOutcome{cid: cid, err: err}
		})
	}
	upGoes.Wait()

	for i, up := range uploads {
		row := rows[i]
		if up.err != nil {
			logger.Warn("upload failed", "chunk", w.chunkID, "pi", row.PI, "err", up.err)
			if err := w.db.SetPublishFailed(row.PI, "upload failed: "+up.err.Error()); err != nil {
				return w.fail("persist upload failure", err)
			}
			metricPIOutcomes().AddWithLabel(1, map[string]string{"outcome": "failed"})
			continue
		}
		if row.PinaxCID == "" {
			if err := w.db.SetUploaded(row.PI, up.cid); err != nil {
				return w.fail("persist upload", err)
			}
			row.PinaxCID = up.cid
		}
	}

	type appendOutcome struct {
		res *arkestore.AppendResult
		err error
	}
	appends := make([]appendOutcome, len(rows))
	var apGoes co.Goes
	for i, row := range rows {
		if row.PinaxCID == "" {
			continue
		}
		apGoes.Go(func() {
			res, err := w.appendWithRefresh(row.PI, row.PinaxCID)
			appends[i] = appendOutcome{res: res, err: err}
		})
	}
	apGoes.Wait()

	for i, ap := range appends {
		row := rows[i]
		if row.PinaxCID == "" {
			continue
		}
		if ap.err != nil {
			logger.Warn("append failed", "chunk", w.chunkID, "pi", row.PI, "err", ap.err)
			if err := w.db.SetPublishFailed(row.PI, "append failed: "+ap.err.Error()); err != nil {
				return w.fail("persist append failure", err)
			}
			metricPIOutcomes().AddWithLabel(1, map[string]string{"outcome": "failed"})
			continue
		}
		if err := w.db.SetPublished(row.PI, row.PinaxCID, ap.res.Tip, ap.res.Version); err != nil {
			return w.fail("persist publish", err)
		}
		metricPIOutcomes().AddWithLabel(1, map[string]string{"outcome": "published"})
	}

	if should, hit, miss := w.deps.store.CacheStats(); should {
		logger.Debug("download cache stats", "hit", hit, "miss", miss)
	}
	return w.cfg.AlarmInterval, true
}

// appendWithRefresh publishes cid onto the entity's history with a
// compare-and-swap on the tip. Every attempt re-reads the entity so the
// expect_tip reflects concurrent writers; conflicts and transient store
// failures consume attempts with exponential backoff.
func (w *Worker) appendWithRefresh(pi, cid string) (*arkestore.AppendResult, error) {
	var lastErr error
	for attempt := 0; attempt < w.cfg.AppendAttempts; attempt++ {
		if attempt > 0 {
			metricCASRetries().Add(1)
			select {
			case <-w.ctx.Done():
				return nil, w.ctx.Err()
			case <-time.After(w.cfg.AppendBaseDelay << (attempt - 1)):
			}
		}

		entity, err := w.deps.store.GetEntity(w.ctx, pi)
		if err != nil {
			lastErr = err
			continue
		}
		res, err := w.deps.store.AppendVersion(w.ctx, pi, entity.Tip,
			map[string]string{pinaxComponent: cid}, versionNote)
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}
	return nil, errors.WithMessagef(lastErr, "append retries exhausted (%d)", w.cfg.AppendAttempts)
}

// callbackPass reports the chunk's fate to the orchestrator. Delivery
// failures back off exponentially; once retries are exhausted the chunk
// settles anyway, since callbacks are at-least-once and the orchestrator
// can poll status.
func (w *Worker) callbackPass(state *chunkdb.ChunkState) (time.Duration, bool) {
	rows, err := w.db.ListPIs()
	if err != nil {
		return w.fail("list pis", err)
	}

	payload := buildPayload(state, rows)

	if err := w.deps.orch.Callback(w.ctx, state.BatchID, payload); err != nil {
		retries := state.CallbackRetryCount + 1
		if retries < w.cfg.MaxCallbackRetries {
			logger.Warn("callback failed; will retry", "chunk", w.chunkID,
				"attempt", retries, "err", err)
			if err := w.db.SetCallbackRetries(retries); err != nil {
				return w.fail("persist callback retries", err)
			}
			return w.cfg.CallbackBaseDelay * (1 << retries), true
		}
		logger.Error("callback retries exhausted, settling anyway",
			"chunk", w.chunkID, "err", err)
		metricCallbacks().AddWithLabel(1, map[string]string{"outcome": "gave_up"})
	} else {
		metricCallbacks().AddWithLabel(1, map[string]string{"outcome": "delivered"})
	}

	if err := w.db.SetCompletedAt(time.Now().UnixMilli()); err != nil {
		return w.fail("persist completion", err)
	}
	if err := w.db.SetPhase(chunkdb.PhaseDone); err != nil {
		return w.fail("enter done", err)
	}
	metricChunksSettled().AddWithLabel(1, map[string]string{"status": payload.Status})
	logger.Info("chunk settled", "chunk", w.chunkID, "status", payload.Status,
		"succeeded", payload.Summary.Succeeded, "failed", payload.Summary.Failed)
	return w.cfg.AlarmInterval, true
}

// buildPayload assembles the callback body from a consistent snapshot of
// the PI rows. Published rows report success; everything else carries its
// error message.
func buildPayload(state *chunkdb.ChunkState, rows []*chunkdb.PIState) *orchestrator.Payload {
	results := make([]orchestrator.Result, 0, len(rows))
	succeeded := 0
	for _, row := range rows {
		if row.Status == chunkdb.StatusDone && row.NewTip != "" {
			succeeded++
			results = append(results, orchestrator.Result{
				PI:         row.PI,
				Status:     orchestrator.StatusSuccess,
				NewTip:     row.NewTip,
				NewVersion: row.NewVersion,
			})
			continue
		}
		msg := row.Error
		if msg == "" {
			msg = "not published"
		}
		results = append(results, orchestrator.Result{
			PI:     row.PI,
			Status: orchestrator.StatusError,
			Error:  msg,
		})
	}
	failed := len(rows) - succeeded

	return &orchestrator.Payload{
		BatchID: state.BatchID,
		ChunkID: state.ChunkID,
		Status:  orchestrator.DeriveStatus(succeeded, failed, state.GlobalError),
		Results: results,
		Summary: orchestrator.Summary{
			Total:            len(rows),
			Succeeded:        succeeded,
			Failed:           failed,
			ProcessingTimeMS: time.Now().UnixMilli() - state.StartedAt,
		},
		Error: state.GlobalError,
	}
}

// cleanup runs on the first tick in a terminal phase: all rows are deleted
// and the database file is removed. The chunk releases every byte it held.
func (w *Worker) cleanup(state *chunkdb.ChunkState) {
	logger.Debug("cleaning up chunk", "chunk", w.chunkID, "phase", state.Phase)
	if err := w.db.Purge(); err != nil {
		logger.Warn("unable to purge chunk rows", "chunk", w.chunkID, "err", err)
	}
	if err := w.db.Drop(); err != nil {
		logger.Warn("unable to drop chunk store", "chunk", w.chunkID, "err", err)
	}
}

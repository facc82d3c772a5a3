// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chunkdb persists the durable state of one chunk worker in an
// embedded SQLite database: the singleton chunk row, the PI list and per-PI
// state, and the cached context bundles. Every chunk owns a private database
// file so cleanup is a file removal and no cross-chunk contention exists.
//
// The store expects a single writer (the chunk worker goroutine). Concurrent
// readers, e.g. status queries, are safe.
package chunkdb

import (
	"database/sql"
	"os"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps one chunk database.
type Store struct {
	path string
	db   *sql.DB
}

// New creates or opens a chunk database at the given path.
func New(path string) (store *Store, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if store == nil {
			db.Close()
		}
	}()
	schema := batchStateSchema + piListSchema + piStateSchema + contextFilesSchema + contextMetaSchema
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{path, db}, nil
}

// NewMem creates a chunk database in ram.
func NewMem() (*Store, error) {
	return New(":memory:")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Drop closes the store and removes its file from disk.
func (s *Store) Drop() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	if s.path == ":memory:" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) execInTx(proc func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := proc(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Reset wipes any stale rows and admits a fresh chunk: the singleton chunk
// row plus one pending PI row per input, preserving input order.
func (s *Store) Reset(cs *ChunkState, pis []string) error {
	return s.execInTx(func(tx *sql.Tx) error {
		for _, table := range []string{"batch_state", "pi_list", "pi_state", "context_files", "context_meta"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO batch_state(id, batch_id, chunk_id, prefix, custom_prompt, institution, phase, started_at, callback_retry_count) VALUES (0, ?, ?, ?, ?, ?, ?, ?, 0)",
			cs.BatchID, cs.ChunkID, cs.Prefix, cs.CustomPrompt, cs.Institution, string(cs.Phase), cs.StartedAt,
		); err != nil {
			return err
		}
		for i, pi := range pis {
			if _, err := tx.Exec("INSERT INTO pi_list(idx, pi) VALUES (?, ?)", i, pi); err != nil {
				return err
			}
			if _, err := tx.Exec("INSERT INTO pi_state(pi, status) VALUES (?, ?)", pi, string(StatusPending)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadChunk reads the singleton chunk row, or nil when the store holds none.
func (s *Store) LoadChunk() (*ChunkState, error) {
	row := s.db.QueryRow("SELECT batch_id, chunk_id, prefix, custom_prompt, institution, phase, started_at, completed_at, callback_retry_count, global_error FROM batch_state WHERE id = 0")

	var (
		cs          ChunkState
		phase       string
		completedAt sql.NullInt64
		globalErr   sql.NullString
	)
	err := row.Scan(&cs.BatchID, &cs.ChunkID, &cs.Prefix, &cs.CustomPrompt, &cs.Institution,
		&phase, &cs.StartedAt, &completedAt, &cs.CallbackRetryCount, &globalErr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cs.Phase = Phase(phase)
	cs.CompletedAt = completedAt.Int64
	cs.GlobalError = globalErr.String
	return &cs, nil
}

// SetPhase transitions the chunk to the given phase.
func (s *Store) SetPhase(p Phase) error {
	_, err := s.db.Exec("UPDATE batch_state SET phase = ? WHERE id = 0", string(p))
	return err
}

// SetGlobalError records a chunk-level failure message.
func (s *Store) SetGlobalError(msg string) error {
	_, err := s.db.Exec("UPDATE batch_state SET global_error = ? WHERE id = 0", msg)
	return err
}

// SetCompletedAt stamps the chunk completion time in unix milliseconds.
func (s *Store) SetCompletedAt(ms int64) error {
	_, err := s.db.Exec("UPDATE batch_state SET completed_at = ? WHERE id = 0", ms)
	return err
}

// SetCallbackRetries persists the callback attempt counter.
func (s *Store) SetCallbackRetries(n int) error {
	_, err := s.db.Exec("UPDATE batch_state SET callback_retry_count = ? WHERE id = 0", n)
	return err
}

const piStateColumns = "p.pi, p.status, p.retry_count, p.pinax_record, p.pinax_cid, p.new_tip, p.new_version, p.error"

func scanPIState(rows *sql.Rows) (*PIState, error) {
	var (
		st      PIState
		status  string
		record  sql.NullString
		cid     sql.NullString
		tip     sql.NullString
		version sql.NullInt64
		errMsg  sql.NullString
	)
	if err := rows.Scan(&st.PI, &status, &st.RetryCount, &record, &cid, &tip, &version, &errMsg); err != nil {
		return nil, err
	}
	st.Status = Status(status)
	if record.Valid {
		st.RecordJSON = []byte(record.String)
	}
	st.PinaxCID = cid.String
	st.NewTip = tip.String
	st.NewVersion = version.Int64
	st.Error = errMsg.String
	return &st, nil
}

func (s *Store) queryPIs(stmt string, args ...any) ([]*PIState, error) {
	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*PIState
	for rows.Next() {
		st, err := scanPIState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// ListPIs returns every PI row in admission order.
func (s *Store) ListPIs() ([]*PIState, error) {
	return s.queryPIs("SELECT " + piStateColumns + " FROM pi_state p JOIN pi_list l ON l.pi = p.pi ORDER BY l.idx")
}

// PIsByStatus returns the PI rows currently in the given status, in admission order.
func (s *Store) PIsByStatus(status Status) ([]*PIState, error) {
	return s.queryPIs("SELECT "+piStateColumns+" FROM pi_state p JOIN pi_list l ON l.pi = p.pi WHERE p.status = ? ORDER BY l.idx", string(status))
}

// Unpublished returns done PIs that still lack an appended version.
func (s *Store) Unpublished() ([]*PIState, error) {
	return s.queryPIs("SELECT "+piStateColumns+" FROM pi_state p JOIN pi_list l ON l.pi = p.pi WHERE p.status = ? AND p.new_tip IS NULL ORDER BY l.idx", string(StatusDone))
}

// CountStatus tallies PI rows per status.
func (s *Store) CountStatus() (*Progress, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM pi_state GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress Progress
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		progress.Total += n
		switch Status(status) {
		case StatusPending:
			progress.Pending = n
		case StatusProcessing:
			progress.Processing = n
		case StatusDone:
			progress.Done = n
		case StatusError:
			progress.Failed = n
		}
	}
	return &progress, rows.Err()
}

// MarkProcessing flips the given PIs to processing in one transaction.
func (s *Store) MarkProcessing(pis []string) error {
	return s.execInTx(func(tx *sql.Tx) error {
		for _, pi := range pis {
			if _, err := tx.Exec("UPDATE pi_state SET status = ? WHERE pi = ?", string(StatusProcessing), pi); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetProcessing flips processing rows back to pending. Used on restart
// recovery: no in-flight task survives a crash.
func (s *Store) ResetProcessing() error {
	_, err := s.db.Exec("UPDATE pi_state SET status = ? WHERE status = ?", string(StatusPending), string(StatusProcessing))
	return err
}

// SetDone stores the extracted record and marks the PI done.
func (s *Store) SetDone(pi string, recordJSON []byte) error {
	_, err := s.db.Exec("UPDATE pi_state SET status = ?, pinax_record = ?, error = NULL WHERE pi = ?",
		string(StatusDone), string(recordJSON), pi)
	return err
}

// SetRetry returns the PI to pending with the new retry count.
func (s *Store) SetRetry(pi string, retries int) error {
	_, err := s.db.Exec("UPDATE pi_state SET status = ?, retry_count = ? WHERE pi = ?",
		string(StatusPending), retries, pi)
	return err
}

// SetFailed marks the PI terminally failed with the reason.
func (s *Store) SetFailed(pi string, retries int, msg string) error {
	_, err := s.db.Exec("UPDATE pi_state SET status = ?, retry_count = ?, error = ? WHERE pi = ?",
		string(StatusError), retries, msg, pi)
	return err
}

// SetPublishFailed marks a previously done PI terminally failed during
// publishing, keeping its record for the callback report.
func (s *Store) SetPublishFailed(pi string, msg string) error {
	_, err := s.db.Exec("UPDATE pi_state SET status = ?, error = ? WHERE pi = ?",
		string(StatusError), msg, pi)
	return err
}

// SetPublished records the upload CID and the appended version.
func (s *Store) SetPublished(pi, cid, tip string, version int64) error {
	_, err := s.db.Exec("UPDATE pi_state SET pinax_cid = ?, new_tip = ?, new_version = ? WHERE pi = ?",
		cid, tip, version, pi)
	return err
}

// SetUploaded records the upload CID alone, for re-entrant publishing where
// the append has not happened yet.
func (s *Store) SetUploaded(pi, cid string) error {
	_, err := s.db.Exec("UPDATE pi_state SET pinax_cid = ? WHERE pi = ?", cid, pi)
	return err
}

// SaveContext persists a PI's assembled context bundle, replacing any
// previous copy.
func (s *Store) SaveContext(c *CachedContext) error {
	return s.execInTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM context_files WHERE pi = ?", c.PI); err != nil {
			return err
		}
		var existing any
		if c.ExistingPinax != nil {
			existing = string(c.ExistingPinax)
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO context_meta(pi, directory_name, existing_pinax_json) VALUES (?, ?, ?)",
			c.PI, c.DirectoryName, existing); err != nil {
			return err
		}
		for i, f := range c.Files {
			if _, err := tx.Exec("INSERT INTO context_files(pi, idx, filename, content) VALUES (?, ?, ?, ?)",
				c.PI, i, f.Name, f.Content); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadContext returns the cached bundle for a PI, or nil when none is cached.
func (s *Store) LoadContext(pi string) (*CachedContext, error) {
	row := s.db.QueryRow("SELECT directory_name, existing_pinax_json FROM context_meta WHERE pi = ?", pi)

	c := CachedContext{PI: pi}
	var existing sql.NullString
	err := row.Scan(&c.DirectoryName, &existing)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.Valid {
		c.ExistingPinax = []byte(existing.String)
	}

	rows, err := s.db.Query("SELECT filename, content FROM context_files WHERE pi = ? ORDER BY idx", pi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f ContextFile
		if err := rows.Scan(&f.Name, &f.Content); err != nil {
			return nil, err
		}
		c.Files = append(c.Files, f)
	}
	return &c, rows.Err()
}

// DeleteContext drops the cached bundle of a PI.
func (s *Store) DeleteContext(pi string) error {
	return s.execInTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM context_files WHERE pi = ?", pi); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM context_meta WHERE pi = ?", pi)
		return err
	})
}

// Purge deletes every row belonging to the chunk.
func (s *Store) Purge() error {
	return s.execInTx(func(tx *sql.Tx) error {
		for _, table := range []string{"batch_state", "pi_list", "pi_state", "context_files", "context_meta"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return err
			}
		}
		return nil
	})
}

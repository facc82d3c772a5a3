// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health tracks service readiness for the health endpoints.
package health

import (
	"sync"
	"time"
)

type Status struct {
	Healthy      bool   `json:"healthy"`
	Uptime       string `json:"uptime"`
	ActiveChunks int    `json:"active_chunks"`
}

// Health reports readiness: the service is healthy once its API listener is
// up and crash recovery has finished.
type Health struct {
	lock         sync.RWMutex
	startedAt    time.Time
	ready        bool
	activeChunks func() []string
}

// New creates a Health fed by the dispatcher's active chunk listing.
func New(activeChunks func() []string) *Health {
	return &Health{
		startedAt:    time.Now(),
		activeChunks: activeChunks,
	}
}

// SetReady flips the readiness state.
func (h *Health) SetReady(ready bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.ready = ready
}

func (h *Health) Status() (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	active := 0
	if h.activeChunks != nil {
		active = len(h.activeChunks())
	}

	return &Status{
		Healthy:      h.ready,
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		ActiveChunks: active,
	}, nil
}

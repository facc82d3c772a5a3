// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_Readiness(t *testing.T) {
	h := New(nil)

	status, err := h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)

	h.SetReady(true)
	status, err = h.Status()
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	h.SetReady(false)
	status, err = h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)
}

func TestHealth_Status(t *testing.T) {
	h := New(func() []string { return []string{"chunk-a", "chunk-b"} })
	h.SetReady(true)

	status, err := h.Status()
	require.NoError(t, err)

	assert.True(t, status.Healthy)
	assert.Equal(t, 2, status.ActiveChunks)
	assert.NotEmpty(t, status.Uptime)
}

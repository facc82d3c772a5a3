// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUGetOrLoad(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	loads := 0
	loader := func(key interface{}) (interface{}, error) {
		loads++
		return "v:" + key.(string), nil
	}

	v, cached, err := c.GetOrLoad("a", loader)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "v:a", v)
	assert.Equal(t, 1, loads)

	v, cached, err = c.GetOrLoad("a", loader)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "v:a", v)
	assert.Equal(t, 1, loads, "cached value must not reload")
}

func TestLRUGetOrLoadError(t *testing.T) {
	c, err := NewLRU(8)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, cached, err := c.GetOrLoad("a", func(interface{}) (interface{}, error) {
		return nil, boom
	})
	assert.False(t, cached)
	assert.ErrorIs(t, err, boom)

	// a failed load is not cached
	_, ok := c.Get("a")
	assert.False(t, ok)
}

// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(slog.LevelInfo)

	l := NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false))
	l.Debug("dropped")
	assert.Zero(t, buf.Len())

	l.Info("kept", "key", "value")
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "INFO "), "got %q", out)
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "key=value")
}

func TestJSONHandlerLevelKey(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(JSONHandler(&buf))
	l.Warn("watch out", "pi", "01ARZ3NDEK")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warn", rec["lvl"])
	assert.Equal(t, "watch out", rec["msg"])
	assert.Equal(t, "01ARZ3NDEK", rec["pi"])
}

func TestWithContextFollowsRoot(t *testing.T) {
	// package loggers are created before SetDefault runs
	ctxLogger := WithContext("pkg", "test")

	var buf bytes.Buffer
	old := Root()
	SetDefault(NewLogger(LogfmtHandler(&buf)))
	defer SetDefault(old)

	ctxLogger.Info("hello")
	assert.Contains(t, buf.String(), "pkg=test")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestFromLegacyLevel(t *testing.T) {
	assert.Equal(t, LevelCrit, FromLegacyLevel(0))
	assert.Equal(t, slog.LevelInfo, FromLegacyLevel(3))
	assert.Equal(t, LevelTrace, FromLegacyLevel(5))
	assert.Equal(t, LevelTrace, FromLegacyLevel(9))
}

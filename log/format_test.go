// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

var sink []byte

func BenchmarkPrettyInt64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for b.Loop() {
		sink = appendInt64(buf, rand.Int64()) //#nosec G404
	}
}

func BenchmarkPrettyUint64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for b.Loop() {
		sink = appendUint64(buf, rand.Uint64(), false) //#nosec G404
	}
}

func TestAppendUint64(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{0, "0"},
		{99999, "99999"},
		{100000, "100,000"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(appendUint64(nil, tt.n, false)))
	}
	assert.Equal(t, "-1,234,567", string(appendInt64(nil, -1234567)))
}

func TestEscapeMessage(t *testing.T) {
	assert.Equal(t, "plain text message", escapeMessage("plain text message"))
	assert.Equal(t, "multi\nline", escapeMessage("multi\nline"))
	assert.Equal(t, `"key=value"`, escapeMessage("key=value"))
}

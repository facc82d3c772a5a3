// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pinax_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Arke-Institute/arke-metadata-service/pinax"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo", "StillImage"},
		{"Photograph", "StillImage"},
		{"MOVINGIMAGE", "MovingImage"},
		{"stillimage", "StillImage"},
		{"manuscript", "Text"},
		{"artifact", "PhysicalObject"},
		{"Collection", "Collection"},
		{"widget", "widget"}, // unknown values pass through for the validator to flag
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pinax.NormalizeType(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeTypeIdempotent(t *testing.T) {
	inputs := []string{"photo", "IMG", "widget", "MovingImage", "audio", "x"}
	for _, v := range pinax.DCMITypes {
		assert.Equal(t, v, pinax.NormalizeType(v))
		inputs = append(inputs, v)
	}
	for _, in := range inputs {
		once := pinax.NormalizeType(in)
		assert.Equal(t, once, pinax.NormalizeType(once), "input %q", in)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1927", "1927"},
		{"1927-03-15", "1927-03-15"},
		{"circa 1927", "1927"},
		{"March 2024", "2024"},
		{"late 19th century", "late 19th century"},
		{"unknown", "unknown"},
		// malformed but shaped like a date: passes through, validator flags it
		{"2024-13-45", "2024-13-45"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pinax.NormalizeDate(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	for year := 1900; year <= 2099; year++ {
		s := fmt.Sprintf("%d", year)
		assert.Equal(t, s, pinax.NormalizeDate(s))
	}
	inputs := []string{"circa 1927", "March 2024", "unknown", "1927-03-15", "born 1850 died 1920"}
	for _, in := range inputs {
		once := pinax.NormalizeDate(in)
		assert.Equal(t, once, pinax.NormalizeDate(once), "input %q", in)
	}
}

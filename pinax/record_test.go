// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pinax_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arke-Institute/arke-metadata-service/pinax"
)

func TestRecordCreatorShapes(t *testing.T) {
	var rec pinax.Record
	require.NoError(t, json.Unmarshal([]byte(`{"title":"T","creator":"Jane Doe"}`), &rec))
	assert.Equal(t, pinax.StringList{"Jane Doe"}, rec.Creator)

	require.NoError(t, json.Unmarshal([]byte(`{"creator":["A","B"],"place":["Athens"]}`), &rec))
	assert.Equal(t, pinax.StringList{"A", "B"}, rec.Creator)
	assert.Equal(t, pinax.StringList{"Athens"}, rec.Place)
}

func TestRecordMarshalSingleCreatorAsString(t *testing.T) {
	rec := pinax.Record{Title: "T", Creator: pinax.StringList{"Jane Doe"}}
	out, err := json.Marshal(&rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"creator":"Jane Doe"`)

	rec.Creator = pinax.StringList{"A", "B"}
	out, err = json.Marshal(&rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"creator":["A","B"]`)
}

func TestRecordMarshalIndent(t *testing.T) {
	rec := pinax.Record{
		ID:    "01HABCDEF0123456789JKMNPQR",
		Title: "Dig Season 1962",
		Type:  "Collection",
	}
	out, err := rec.MarshalIndent()
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  \"id\"")
	// optional zero fields stay out of the published record
	assert.NotContains(t, string(out), "language")
	assert.NotContains(t, string(out), "creator")
}

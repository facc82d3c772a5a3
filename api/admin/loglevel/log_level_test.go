// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package loglevel

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arke-Institute/arke-metadata-service/log"
)

func serve(t *testing.T, logLevel *slog.LevelVar, method string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, "/admin/loglevel", bytes.NewBuffer(body))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router := mux.NewRouter()
	New(logLevel).Mount(router, "/admin/loglevel")
	router.ServeHTTP(rr, req)
	return rr
}

func TestGetLogLevel(t *testing.T) {
	var logLevel slog.LevelVar
	logLevel.Set(log.LevelInfo)

	rr := serve(t, &logLevel, "GET", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var res Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "INFO", res.CurrentLevel)
}

func TestPostLogLevel(t *testing.T) {
	tests := []struct {
		name         string
		level        string
		expectedHTTP int
		expectedEnd  slog.Level
	}{
		{name: "switch to debug", level: "debug", expectedHTTP: http.StatusOK, expectedEnd: log.LevelDebug},
		{name: "switch to error", level: "error", expectedHTTP: http.StatusOK, expectedEnd: log.LevelError},
		{name: "switch to trace", level: "trace", expectedHTTP: http.StatusOK, expectedEnd: log.LevelTrace},
		{name: "unknown level rejected", level: "loud", expectedHTTP: http.StatusBadRequest, expectedEnd: log.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logLevel slog.LevelVar
			logLevel.Set(log.LevelInfo)

			body, err := json.Marshal(Request{Level: tt.level})
			require.NoError(t, err)

			rr := serve(t, &logLevel, "POST", body)

			assert.Equal(t, tt.expectedHTTP, rr.Code)
			assert.Equal(t, tt.expectedEnd, logLevel.Level())
		})
	}
}

func TestPostLogLevelMalformedBody(t *testing.T) {
	var logLevel slog.LevelVar
	rr := serve(t, &logLevel, "POST", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

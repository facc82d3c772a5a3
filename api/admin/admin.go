// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package admin assembles the operator-facing HTTP handler: runtime log
// level, request-log toggling and readiness.
package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Arke-Institute/arke-metadata-service/api/admin/apilogs"
	healthAPI "github.com/Arke-Institute/arke-metadata-service/api/admin/health"
	"github.com/Arke-Institute/arke-metadata-service/api/admin/loglevel"
	"github.com/Arke-Institute/arke-metadata-service/health"
)

func New(logLevel *slog.LevelVar, healthStatus *health.Health, apiLogsEnabled *atomic.Bool) http.HandlerFunc {
	router := mux.NewRouter()

	loglevel.New(logLevel).Mount(router, "/admin/loglevel")
	apilogs.New(apiLogsEnabled).Mount(router, "/admin/apilogs")
	healthAPI.New(healthStatus).Mount(router, "/admin/health")

	handler := handlers.CompressHandler(router)

	return handler.ServeHTTP
}

// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the public HTTP surface: chunk admission and status,
// stateless extraction and validation, and the health endpoint.
package api

import (
	"net/http"
	"net/http/pprof"
	"strings"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Arke-Institute/arke-metadata-service/api/batches"
	healthAPI "github.com/Arke-Institute/arke-metadata-service/api/admin/health"
	"github.com/Arke-Institute/arke-metadata-service/api/metadata"
	"github.com/Arke-Institute/arke-metadata-service/chunk"
	"github.com/Arke-Institute/arke-metadata-service/extract"
	"github.com/Arke-Institute/arke-metadata-service/health"
	"github.com/Arke-Institute/arke-metadata-service/log"
)

var logger = log.WithContext("pkg", "api")

// LogStatus is the request-logging toggle exchanged with the admin server.
type LogStatus struct {
	Enabled bool `json:"enabled"`
}

type Options struct {
	AllowedOrigins  string
	PprofOn         bool
	EnableReqLogger bool
	EnableMetrics   bool
}

// New returns the API handler and the atomic request-logging toggle it
// observes, so the admin server can flip logging at runtime.
func New(
	dispatcher *chunk.Dispatcher,
	extractor *extract.Extractor,
	healthStatus *health.Health,
	opts Options,
) (http.HandlerFunc, *atomic.Bool) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	batches.New(dispatcher).
		Mount(router, "")
	metadata.New(extractor).
		Mount(router, "")
	healthAPI.New(healthStatus).
		Mount(router, "/health")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
	)(handler)

	logsEnabled := new(atomic.Bool)
	logsEnabled.Store(opts.EnableReqLogger)
	handler = RequestLoggerMiddleware(logger, logsEnabled)(handler)

	return handler.ServeHTTP, logsEnabled
}

// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthAPI "github.com/Arke-Institute/arke-metadata-service/api/admin/health"
	"github.com/Arke-Institute/arke-metadata-service/health"
	"github.com/Arke-Institute/arke-metadata-service/metrics"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)

	r, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	res.Body.Close()
	return r, res.StatusCode
}

func TestMetricsMiddleware(t *testing.T) {
	healthStatus := health.New(func() []string { return nil })

	router := mux.NewRouter()
	healthAPI.New(healthStatus).Mount(router, "/health")
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	router.Use(metricsMiddleware)
	ts := httptest.NewServer(router)
	defer ts.Close()

	// not ready yet, counted under 503
	_, code := httpGet(t, ts.URL+"/health")
	assert.Equal(t, 503, code)

	healthStatus.SetReady(true)
	httpGet(t, ts.URL+"/health")
	httpGet(t, ts.URL+"/health")

	body, _ := httpGet(t, ts.URL+"/metrics")
	parser := expfmt.TextParser{}
	metricFamilies, err := parser.TextToMetricFamilies(bytes.NewReader(body))
	assert.Nil(t, err)

	m := metricFamilies["pinax_metrics_api_request_count"].GetMetric()
	assert.Equal(t, 2, len(m), "should be 2 metric entries")
	assert.Equal(t, float64(2), m[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), m[1].GetCounter().GetValue())

	labels := m[0].GetLabel()
	assert.Equal(t, 3, len(labels))
	assert.Equal(t, "code", labels[0].GetName())
	assert.Equal(t, "200", labels[0].GetValue())
	assert.Equal(t, "method", labels[1].GetName())
	assert.Equal(t, "GET", labels[1].GetValue())
	assert.Equal(t, "path", labels[2].GetName())
	assert.Equal(t, "health", labels[2].GetValue())

	labels = m[1].GetLabel()
	assert.Equal(t, 3, len(labels))
	assert.Equal(t, "code", labels[0].GetName())
	assert.Equal(t, "503", labels[0].GetValue())
	assert.Equal(t, "method", labels[1].GetName())
	assert.Equal(t, "GET", labels[1].GetValue())
	assert.Equal(t, "path", labels[2].GetName())
	assert.Equal(t, "health", labels[2].GetValue())

	d := metricFamilies["pinax_metrics_api_duration_ms"].GetMetric()
	assert.Equal(t, 2, len(d), "should be 2 duration entries")
	assert.Equal(t, uint64(2), d[0].GetHistogram().GetSampleCount())
}

// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chunk

import "github.com/Arke-Institute/arke-metadata-service/metrics"

var (
	metricActiveChunks  = metrics.LazyLoadGauge("chunk_active_count")
	metricChunksSettled = metrics.LazyLoadCounterVec("chunk_settled_count", []string{"status"})
	metricPIOutcomes    = metrics.LazyLoadCounterVec("chunk_pi_count", []string{"outcome"})
	metricCASRetries    = metrics.LazyLoadCounter("chunk_cas_retry_count")
	metricCallbacks     = metrics.LazyLoadCounterVec("chunk_callback_count", []string{"outcome"})
	metricPassDuration  = metrics.LazyLoadHistogramVec("chunk_pass_duration_ms", []string{"phase"}, metrics.Bucket10s)
)

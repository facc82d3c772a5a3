// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package extract

import "github.com/Arke-Institute/arke-metadata-service/metrics"

var (
	metricModelCalls        = metrics.LazyLoadCounterVec("model_call_count", []string{"outcome"})
	metricModelTokens       = metrics.LazyLoadCounterVec("model_token_count", []string{"kind"})
	metricModelCallDuration = metrics.LazyLoadHistogram("model_call_duration_ms", metrics.BucketModelCalls)
)

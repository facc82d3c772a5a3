// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package arkestore

import "github.com/Arke-Institute/arke-metadata-service/metrics"

var metricStoreRequests = metrics.LazyLoadCounterVec("store_request_count", []string{"op", "status"})

func countOp(op, status string) {
	metricStoreRequests().AddWithLabel(1, map[string]string{"op": op, "status": status})
}

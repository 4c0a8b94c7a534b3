// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package metrics holds the Prometheus instrumentation for a TSP node:
// envelope throughput, HPKE operation cost, relationship-state transitions
// and routed-message forwarding.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tsp"

// Registry is the Prometheus registry all metrics in this package attach
// to. A node embeds it in its own HTTP mux rather than defaulting to the
// global registry, so multiple nodes in one process don't collide.
var Registry = prometheus.NewRegistry()

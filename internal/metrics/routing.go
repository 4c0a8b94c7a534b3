// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoutedForwards tracks RoutedMessage frames forwarded by an
	// intermediary VID, by hop role.
	RoutedForwards = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "forwarded_total",
			Help:      "Total number of routed messages forwarded",
		},
		[]string{"role"}, // intermediary, final_delivery
	)

	// RoutedHopCount tracks the remaining hop count observed at each
	// forwarding decision, useful for spotting misconfigured long routes.
	RoutedHopCount = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "remaining_hops",
			Help:      "Remaining hop count observed when forwarding a routed message",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		},
	)

	// AnycastFanout tracks the receiver-set size of SendAnycast calls.
	AnycastFanout = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "anycast_fanout",
			Help:      "Number of receivers targeted by an anycast send",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		},
	)

	// ReceiveQueueDepth tracks the number of buffered-but-undelivered
	// results on a Node.Receive channel.
	ReceiveQueueDepth = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "receive_queue_depth",
			Help:      "Current depth of a VID's inbound receive channel",
		},
		[]string{"vid"},
	)
)

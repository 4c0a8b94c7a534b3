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
	// RelationshipsRequested tracks RequestRelationship envelopes sent or
	// received, by role.
	RelationshipsRequested = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relationships",
			Name:      "requested_total",
			Help:      "Total number of relationship requests",
		},
		[]string{"role"}, // proposer, recipient
	)

	// RelationshipsCompleted tracks relationships that reached Bidirectional.
	RelationshipsCompleted = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relationships",
			Name:      "completed_total",
			Help:      "Total number of relationships that became bidirectional",
		},
	)

	// RelationshipsRejected tracks accept/cancel frames rejected by thread
	// id mismatch or unknown proposal.
	RelationshipsRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relationships",
			Name:      "rejected_total",
			Help:      "Total number of rejected relationship control frames",
		},
		[]string{"reason"}, // unknown_thread, thread_mismatch
	)

	// RelationshipsCancelled tracks relationships torn down.
	RelationshipsCancelled = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relationships",
			Name:      "cancelled_total",
			Help:      "Total number of relationships cancelled",
		},
	)

	// RelationshipStageDuration tracks the time from a relationship
	// request's send to the accept frame's arrival.
	RelationshipStageDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relationships",
			Name:      "stage_duration_seconds",
			Help:      "Relationship negotiation stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 2.048s
		},
		[]string{"stage"}, // request, accept
	)
)

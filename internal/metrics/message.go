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
	// EnvelopesSealed tracks envelopes produced by Store.SealMessage and
	// its relatives, by transform kind.
	EnvelopesSealed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "sealed_total",
			Help:      "Total number of envelopes sealed",
		},
		[]string{"transform"}, // direct, nested, routed, signed
	)

	// EnvelopesOpened tracks envelopes successfully opened.
	EnvelopesOpened = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "opened_total",
			Help:      "Total number of envelopes opened",
		},
		[]string{"kind"}, // content, nested, routed, relationship
	)

	// EnvelopesRejected tracks envelopes that failed to open, by reason.
	EnvelopesRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "rejected_total",
			Help:      "Total number of envelopes rejected while opening",
		},
		[]string{"reason"}, // signature, unexpected_recipient, decode, decrypt
	)

	// EnvelopeProcessingDuration tracks OpenMessage latency end to end,
	// including any nested-layer unwrapping.
	EnvelopeProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "processing_duration_seconds",
			Help:      "Envelope open/dispatch duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to 204.8ms
		},
	)

	// EnvelopeSize tracks the wire size of sealed envelopes.
	EnvelopeSize = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "envelopes",
			Name:      "size_bytes",
			Help:      "Envelope size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MB
		},
	)
)

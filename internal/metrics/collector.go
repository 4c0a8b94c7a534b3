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
	"sync"
	"time"
)

// MetricsCollector accumulates in-process counters and timing samples for a
// TSP node, separate from the Prometheus vectors in this package: it backs
// a cheap GetSnapshot() call a CLI or health endpoint can print without
// scraping /metrics.
type MetricsCollector struct {
	mu sync.RWMutex

	// Counters
	EnvelopesSealed   int64
	EnvelopesOpened   int64
	SignatureFailures int64
	RelationshipsOK   int64
	RelationshipsBad  int64
	RoutedForwards    int64
	ResolverCalls     int64
	ResolverCacheHits int64

	// Timing metrics (in microseconds)
	SealTimes   []int64
	OpenTimes   []int64
	ResolveTimes []int64

	// Start time for uptime calculation
	startTime time.Time

	// Configuration
	maxTimingSamples int
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		startTime:        time.Now(),
		maxTimingSamples: 1000, // Keep last 1000 samples for each timing metric
	}
}

// RecordSeal records an envelope-sealing operation
func (mc *MetricsCollector) RecordSeal(duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.EnvelopesSealed++
	mc.recordTiming(&mc.SealTimes, duration)
}

// RecordOpen records an envelope-opening operation
func (mc *MetricsCollector) RecordOpen(signatureOK bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.EnvelopesOpened++
	if !signatureOK {
		mc.SignatureFailures++
	}
	mc.recordTiming(&mc.OpenTimes, duration)
}

// RecordRelationshipOutcome records an accept/cancel dispatch outcome
func (mc *MetricsCollector) RecordRelationshipOutcome(ok bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if ok {
		mc.RelationshipsOK++
	} else {
		mc.RelationshipsBad++
	}
}

// RecordRoutedForward records a routed-message forward
func (mc *MetricsCollector) RecordRoutedForward() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.RoutedForwards++
}

// RecordResolve records a VID resolution, cached or not
func (mc *MetricsCollector) RecordResolve(cached bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ResolverCalls++
	if cached {
		mc.ResolverCacheHits++
	}
	mc.recordTiming(&mc.ResolveTimes, duration)
}

// recordTiming records a timing sample
func (mc *MetricsCollector) recordTiming(timings *[]int64, duration time.Duration) {
	microseconds := duration.Microseconds()
	*timings = append(*timings, microseconds)

	// Keep only last N samples
	if len(*timings) > mc.maxTimingSamples {
		*timings = (*timings)[len(*timings)-mc.maxTimingSamples:]
	}
}

// GetSnapshot returns a snapshot of current metrics
func (mc *MetricsCollector) GetSnapshot() *MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return &MetricsSnapshot{
		Timestamp:         time.Now(),
		Uptime:            time.Since(mc.startTime),
		EnvelopesSealed:   mc.EnvelopesSealed,
		EnvelopesOpened:   mc.EnvelopesOpened,
		SignatureFailures: mc.SignatureFailures,
		RelationshipsOK:   mc.RelationshipsOK,
		RelationshipsBad:  mc.RelationshipsBad,
		RoutedForwards:    mc.RoutedForwards,
		ResolverCalls:     mc.ResolverCalls,
		ResolverCacheHits: mc.ResolverCacheHits,
		AvgSealTime:       calculateAverage(mc.SealTimes),
		AvgOpenTime:       calculateAverage(mc.OpenTimes),
		AvgResolveTime:    calculateAverage(mc.ResolveTimes),
		P95SealTime:       calculatePercentile(mc.SealTimes, 95),
		P95OpenTime:       calculatePercentile(mc.OpenTimes, 95),
		P95ResolveTime:    calculatePercentile(mc.ResolveTimes, 95),
	}
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.EnvelopesSealed = 0
	mc.EnvelopesOpened = 0
	mc.SignatureFailures = 0
	mc.RelationshipsOK = 0
	mc.RelationshipsBad = 0
	mc.RoutedForwards = 0
	mc.ResolverCalls = 0
	mc.ResolverCacheHits = 0

	mc.SealTimes = nil
	mc.OpenTimes = nil
	mc.ResolveTimes = nil

	mc.startTime = time.Now()
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	// Counters
	EnvelopesSealed   int64
	EnvelopesOpened   int64
	SignatureFailures int64
	RelationshipsOK   int64
	RelationshipsBad  int64
	RoutedForwards    int64
	ResolverCalls     int64
	ResolverCacheHits int64

	// Timing averages (microseconds)
	AvgSealTime    float64
	AvgOpenTime    float64
	AvgResolveTime float64

	// 95th percentile timings (microseconds)
	P95SealTime    int64
	P95OpenTime    int64
	P95ResolveTime int64
}

// GetResolverCacheHitRate returns the resolver cache hit rate as a percentage
func (ms *MetricsSnapshot) GetResolverCacheHitRate() float64 {
	if ms.ResolverCalls == 0 {
		return 0
	}
	return float64(ms.ResolverCacheHits) / float64(ms.ResolverCalls) * 100
}

// GetRelationshipSuccessRate returns the relationship-negotiation success
// rate as a percentage.
func (ms *MetricsSnapshot) GetRelationshipSuccessRate() float64 {
	total := ms.RelationshipsOK + ms.RelationshipsBad
	if total == 0 {
		return 0
	}
	return float64(ms.RelationshipsOK) / float64(total) * 100
}

// Helper functions

func calculateAverage(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func calculatePercentile(values []int64, percentile int) int64 {
	if len(values) == 0 {
		return 0
	}

	index := len(values) * percentile / 100
	if index >= len(values) {
		index = len(values) - 1
	}

	sorted := make([]int64, len(values))
	copy(sorted, values)

	for i := 0; i < len(sorted)-1; i++ {
		for j := 0; j < len(sorted)-i-1; j++ {
			if sorted[j] > sorted[j+1] {
				sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
			}
		}
	}

	return sorted[index]
}

// Global metrics collector instance
var globalCollector = NewMetricsCollector()

// GetGlobalCollector returns the global metrics collector
func GetGlobalCollector() *MetricsCollector {
	return globalCollector
}

package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seedchain/core/events"
	"seedchain/core/types"
)

// SeedsMetrics tracks the dispute and seed lifecycle of a node.
type SeedsMetrics struct {
	txTotal    *prometheus.CounterVec
	txDuration *prometheus.HistogramVec
	lifecycle  *prometheus.CounterVec
	payouts    *prometheus.CounterVec
	harvests   *prometheus.CounterVec
	candidates prometheus.Gauge
	roundNonce prometheus.Gauge
}

var (
	seedsOnce     sync.Once
	seedsRegistry *SeedsMetrics
)

// Seeds returns the lazily registered metrics singleton.
func Seeds() *SeedsMetrics {
	seedsOnce.Do(func() {
		seedsRegistry = &SeedsMetrics{
			txTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seedchain",
				Subsystem: "node",
				Name:      "tx_total",
				Help:      "Executed transactions by operation and outcome.",
			}, []string{"op", "outcome"}),
			txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "seedchain",
				Subsystem: "node",
				Name:      "tx_duration_seconds",
				Help:      "Transaction execution latency by operation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seedchain",
				Subsystem: "challenge",
				Name:      "lifecycle_total",
				Help:      "Committed challenge lifecycle events by app and event type.",
			}, []string{"app", "event"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seedchain",
				Subsystem: "challenge",
				Name:      "harvest_total",
				Help:      "Harvested challenge records by beneficiary.",
			}, []string{"beneficiary"}),
			harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "seedchain",
				Subsystem: "seeds",
				Name:      "harvested_total",
				Help:      "Harvested candidates by result.",
			}, []string{"result"}),
			candidates: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "seedchain",
				Subsystem: "seeds",
				Name:      "candidates",
				Help:      "Live candidates after the last committed transaction.",
			}),
			roundNonce: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "seedchain",
				Subsystem: "seeds",
				Name:      "round_nonce",
				Help:      "Nonce of the current seed round.",
			}),
		}
		prometheus.MustRegister(
			seedsRegistry.txTotal,
			seedsRegistry.txDuration,
			seedsRegistry.lifecycle,
			seedsRegistry.payouts,
			seedsRegistry.harvests,
			seedsRegistry.candidates,
			seedsRegistry.roundNonce,
		)
	})
	return seedsRegistry
}

// ObserveTx records the outcome of one executed transaction.
func (m *SeedsMetrics) ObserveTx(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
	}
	m.txTotal.WithLabelValues(op, outcome).Inc()
	m.txDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *SeedsMetrics) SetCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Set(float64(n))
}

func (m *SeedsMetrics) SetRoundNonce(nonce uint64) {
	if m == nil {
		return
	}
	m.roundNonce.Set(float64(nonce))
}

// Emit implements events.Emitter so committed events drive the counters.
func (m *SeedsMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	kind := evt.EventType()
	attrs := attributesOf(evt)
	switch {
	case kind == "challenge.harvested":
		m.payouts.WithLabelValues(labelOr(attrs["beneficiary"])).Inc()
		m.lifecycle.WithLabelValues(labelOr(attrs["app"]), kind).Inc()
	case strings.HasPrefix(kind, "challenge."):
		m.lifecycle.WithLabelValues(labelOr(attrs["app"]), kind).Inc()
	case kind == "seeds.harvested":
		result := "rejected"
		if attrs["confirmed"] == "true" {
			result = "confirmed"
		}
		m.harvests.WithLabelValues(result).Inc()
	}
}

func attributesOf(evt events.Event) map[string]string {
	if typed, ok := evt.(*types.Event); ok && typed != nil {
		return typed.Attributes
	}
	return nil
}

func labelOr(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded in the requests counter.
const (
	outcomeCompleted     = "completed"
	outcomeLimiterError  = "limiter_error"
	outcomeUpstreamError = "upstream_error"
	outcomeStreamError   = "stream_error"
	outcomeClientGone    = "client_gone"
)

// Limiter scopes recorded in the wait histogram.
const (
	scopeGlobal = "global"
	scopeClient = "client"
)

// Metrics are the relay's Prometheus collectors.
type Metrics struct {
	Requests        *prometheus.CounterVec
	LimiterWait     *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	FramesForwarded prometheus.Counter
}

// NewMetrics creates the collectors and registers them with
// registerer. A nil registerer leaves them unregistered.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beak",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relayed chat completion requests by outcome.",
		}, []string{"outcome"}),
		LimiterWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beak",
			Subsystem: "relay",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting for a rate limiter slot.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"scope"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beak",
			Subsystem: "relay",
			Name:      "in_flight_requests",
			Help:      "Upstream calls currently streaming.",
		}),
		FramesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beak",
			Subsystem: "relay",
			Name:      "frames_forwarded_total",
			Help:      "Stream frames written to clients.",
		}),
	}

	if registerer != nil {
		for _, collector := range []prometheus.Collector{
			metrics.Requests, metrics.LimiterWait, metrics.InFlight, metrics.FramesForwarded,
		} {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return metrics, nil
}

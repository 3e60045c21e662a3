/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics records placement decisions as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edge_placer"

// Label values of the outcome label.
const (
	OutcomePlaced                = "placed"
	OutcomeNoNodes               = "no_nodes"
	OutcomeStopped               = "stopped"
	OutcomeApplicationNotFound   = "application_not_found"
	OutcomeCategoryNotRecognized = "category_not_recognized"
	OutcomeUnknownAction         = "unknown_action"
	OutcomeInvalidArguments      = "invalid_arguments"
)

// Recorder defines the interface for recording decision metrics.
type Recorder interface {
	// ObserveDecision counts one dispatched call and its latency.
	ObserveDecision(action, outcome string, elapsed time.Duration)
	// SetInventoryNodes records the number of nodes in the live inventory.
	SetInventoryNodes(count int)
}

// prometheusRecorder implements Recorder using Prometheus metrics.
type prometheusRecorder struct {
	decisions      *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	inventoryNodes prometheus.Gauge
}

// NewPrometheusRecorder creates a recorder and registers its collectors on registerer.
// A nil registerer leaves the collectors unregistered.
func NewPrometheusRecorder(registerer prometheus.Registerer) Recorder {
	recorder := &prometheusRecorder{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of dispatched calls by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Time taken to dispatch a call",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"action"},
		),
		inventoryNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inventory_nodes",
			Help:      "Number of edge nodes in the live inventory",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			recorder.decisions,
			recorder.duration,
			recorder.inventoryNodes,
		)
	}
	return recorder
}

func (m *prometheusRecorder) ObserveDecision(action, outcome string, elapsed time.Duration) {
	m.decisions.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *prometheusRecorder) SetInventoryNodes(count int) {
	m.inventoryNodes.Set(float64(count))
}

// noopRecorder is used when metrics are disabled.
type noopRecorder struct{}

// NewNoopRecorder creates a recorder that doesn't record anything.
func NewNoopRecorder() Recorder {
	return noopRecorder{}
}

func (noopRecorder) ObserveDecision(string, string, time.Duration) {}

func (noopRecorder) SetInventoryNodes(int) {}

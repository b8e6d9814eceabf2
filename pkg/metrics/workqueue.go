/*
Copyright 2021 Stefan Prodan

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

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/client-go/util/workqueue"
)

// WorkqueueProvider implements workqueue.MetricsProvider with Prometheus
// collectors labeled by queue name.
type WorkqueueProvider struct {
	reg prometheus.Registerer
}

// NewWorkqueueProvider returns a provider registering the collectors with reg.
func NewWorkqueueProvider(reg prometheus.Registerer) *WorkqueueProvider {
	return &WorkqueueProvider{reg: reg}
}

var _ workqueue.MetricsProvider = &WorkqueueProvider{}

func (p *WorkqueueProvider) NewDepthMetric(queue string) workqueue.GaugeMetric {
	return p.gauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "workqueue_depth",
		Help:        "Current depth of workqueue.",
		ConstLabels: prometheus.Labels{"name": queue},
	})
}

func (p *WorkqueueProvider) NewAddsMetric(queue string) workqueue.CounterMetric {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "workqueue_adds_total",
		Help:        "Total number of adds handled by workqueue.",
		ConstLabels: prometheus.Labels{"name": queue},
	})
	return register(p.reg, c)
}

func (p *WorkqueueProvider) NewLatencyMetric(queue string) workqueue.HistogramMetric {
	return p.histogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "workqueue_queue_duration_seconds",
		Help:        "How long in seconds an item stays in workqueue before being requested.",
		ConstLabels: prometheus.Labels{"name": queue},
		Buckets:     prometheus.ExponentialBuckets(10e-9, 10, 12),
	})
}

func (p *WorkqueueProvider) NewWorkDurationMetric(queue string) workqueue.HistogramMetric {
	return p.histogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Name:        "workqueue_work_duration_seconds",
		Help:        "How long in seconds processing an item from workqueue takes.",
		ConstLabels: prometheus.Labels{"name": queue},
		Buckets:     prometheus.ExponentialBuckets(10e-3, 2, 15),
	})
}

func (p *WorkqueueProvider) NewUnfinishedWorkSecondsMetric(queue string) workqueue.SettableGaugeMetric {
	return p.gauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workqueue_unfinished_work_seconds",
		Help: "How many seconds of work has been done that is in progress " +
			"and hasn't been observed by work_duration.",
		ConstLabels: prometheus.Labels{"name": queue},
	})
}

func (p *WorkqueueProvider) NewLongestRunningProcessorSecondsMetric(queue string) workqueue.SettableGaugeMetric {
	return p.gauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "workqueue_longest_running_processor_seconds",
		Help:        "How many seconds has the longest running processor for workqueue been running.",
		ConstLabels: prometheus.Labels{"name": queue},
	})
}

func (p *WorkqueueProvider) NewRetriesMetric(queue string) workqueue.CounterMetric {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "workqueue_retries_total",
		Help:        "Total number of retries handled by workqueue.",
		ConstLabels: prometheus.Labels{"name": queue},
	})
	return register(p.reg, c)
}

func (p *WorkqueueProvider) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	return register(p.reg, prometheus.NewGauge(opts))
}

func (p *WorkqueueProvider) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	return register(p.reg, prometheus.NewHistogram(opts))
}

// register returns the already registered collector when an identical
// one exists in the registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

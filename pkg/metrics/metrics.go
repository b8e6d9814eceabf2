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

// Package metrics defines the Prometheus collectors of the broker.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kubebroker"

var (
	// Operations counts the completed asynchronous operations by type and final state.
	Operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of completed provision and deprovision operations.",
	}, []string{"operation", "state"})

	// OperationDuration observes the duration of the asynchronous operations.
	OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration in seconds of provision and deprovision operations.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"operation"})

	// ReadinessChecks counts the workload pod status checks by result.
	ReadinessChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "readiness_checks_total",
		Help:      "Total number of workload readiness checks.",
	}, []string{"result"})
)

// Register adds the broker collectors to the registry.
// Collectors already registered are ignored.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{Operations, OperationDuration, ReadinessChecks} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

/*
Copyright 2021 Stefan Prodan
Copyright 2021 The Flux authors

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
package resmgr

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/json"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/rest"

	"github.com/stefanprodan/kubebroker/pkg/metrics"
	"github.com/stefanprodan/kubebroker/pkg/params"
)

// ReadinessChecks is the maximum number of pod status checks,
// the first check plus three retries.
const ReadinessChecks = 4

// WaitReady polls the status of the first workload pod until its phase is
// Running. The checks are spaced by the parameters service timeout.
// It returns false without an error when the pod is not running after
// ReadinessChecks attempts. API errors, like a missing pod, count as not
// running while transport errors stop the polling and are returned.
func (m *ResourceManager) WaitReady(ctx context.Context, p *params.InstanceParameters) (bool, error) {
	c, err := m.clientFor(p)
	if err != nil {
		return false, fmt.Errorf("client init failed: %w", err)
	}

	backoff := wait.Backoff{
		Duration: p.Timeout(),
		Factor:   1,
		Steps:    ReadinessChecks,
	}

	attempt := 0
	err = wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		attempt++
		running, err := m.isRunning(ctx, c, p)
		switch {
		case err != nil:
			metrics.ReadinessChecks.WithLabelValues("error").Inc()
		case running:
			metrics.ReadinessChecks.WithLabelValues("running").Inc()
		default:
			metrics.ReadinessChecks.WithLabelValues("pending").Inc()
		}
		m.log.Debugw("readiness check", "namespace", p.Namespace, "workload", p.Name,
			"attempt", attempt, "running", running)
		return running, err
	})

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case wait.Interrupted(err):
		return false, nil
	default:
		return false, fmt.Errorf("%s status query failed, error: %w", WorkloadKind.Subject(p), err)
	}
}

func (m *ResourceManager) isRunning(ctx context.Context, c rest.Interface, p *params.InstanceParameters) (bool, error) {
	data, err := c.Get().AbsPath(PodStatusPath(p)).Do(ctx).Raw()
	if err != nil {
		if isAPIStatus(err) {
			return false, nil
		}
		return false, err
	}

	pod := &corev1.Pod{}
	if err := json.Unmarshal(data, pod); err != nil {
		return false, fmt.Errorf("decoding pod status failed, error: %w", err)
	}

	return pod.Status.Phase == corev1.PodRunning, nil
}

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

package params

import (
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InstanceParameters holds everything needed to create, wait for and delete
// the Kubernetes resources backing a service instance. It is built once per
// provisioning request and persisted with the instance record so that
// deprovisioning replays the exact values used at creation.
type InstanceParameters struct {
	Namespace          string          `json:"namespace"`
	Name               string          `json:"service_name"`
	AccessToken        string          `json:"token"`
	URL                string          `json:"master_url"`
	ExposePort         int             `json:"expose_port"`
	Storage            string          `json:"storage"`
	Replicas           int             `json:"replicas"`
	ServiceTimeout     metav1.Duration `json:"service_timeout"`
	Image              string          `json:"image"`
	Version            string          `json:"version,omitempty"`
	StorageProvisioner string          `json:"storage_provisioner"`

	ClusterName    string `json:"cluster_name,omitempty"`
	Identity       string `json:"identity,omitempty"`
	RegistryURL    string `json:"registry_url,omitempty"`
	ServiceKeyGUID string `json:"service_key_guid,omitempty"`
	AutoMode       bool   `json:"auto_mode,omitempty"`
}

// Delegated reports whether the cluster credentials must be obtained from
// the instance registry instead of being supplied by the caller.
func (p *InstanceParameters) Delegated() bool {
	return p.ClusterName != "" && p.Identity != ""
}

// Validate returns a *ValidationError naming the first required field
// that is empty.
func (p *InstanceParameters) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"token", p.AccessToken},
		{"master_url", p.URL},
		{"namespace", p.Namespace},
		{"service_name", p.Name},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}
	if p.ExposePort < 0 || p.ExposePort > 65535 {
		return &ValidationError{Field: "expose_port", Reason: fmt.Sprintf("%d is not a valid port", p.ExposePort)}
	}
	return nil
}

// Timeout returns the interval between readiness checks.
func (p *InstanceParameters) Timeout() time.Duration {
	return p.ServiceTimeout.Duration
}

// DeepCopy returns a copy of the parameters.
func (p *InstanceParameters) DeepCopy() *InstanceParameters {
	out := *p
	return &out
}

// ValidationError reports a missing or malformed parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %s %s", e.Field, e.Reason)
}

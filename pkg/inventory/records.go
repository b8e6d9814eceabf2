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

package inventory

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

// InstanceRecord is the persisted state of a provisioned service instance.
type InstanceRecord struct {
	ID               string                    `json:"id"`
	ServiceID        string                    `json:"service_id"`
	PlanID           string                    `json:"plan_id"`
	OrganizationGUID string                    `json:"organization_guid,omitempty"`
	SpaceGUID        string                    `json:"space_guid,omitempty"`
	Parameters       map[string]interface{}    `json:"parameters,omitempty"`
	Instance         params.InstanceParameters `json:"instance"`
	CreatedAt        metav1.Time               `json:"created_at"`
	UpdatedAt        *metav1.Time              `json:"updated_at,omitempty"`
}

// NewInstanceRecord returns a record created now.
func NewInstanceRecord(id string) *InstanceRecord {
	return &InstanceRecord{
		ID:        id,
		CreatedAt: metav1.NewTime(time.Now().UTC().Truncate(time.Second)),
	}
}

// BindingRecord is the persisted state of a service binding.
type BindingRecord struct {
	ID            string      `json:"id"`
	InstanceID    string      `json:"instance_id"`
	AppGUID       string      `json:"app_guid,omitempty"`
	CredentialRef string      `json:"credential_ref"`
	CreatedAt     metav1.Time `json:"created_at"`
}

// NewBindingRecord returns a record created now.
func NewBindingRecord(id, instanceID string) *BindingRecord {
	return &BindingRecord{
		ID:         id,
		InstanceID: instanceID,
		CreatedAt:  metav1.NewTime(time.Now().UTC().Truncate(time.Second)),
	}
}

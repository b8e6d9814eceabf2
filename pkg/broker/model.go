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

package broker

// ProvisionRequest is the body of a provision request.
type ProvisionRequest struct {
	InstanceID       string                 `json:"-"`
	ServiceID        string                 `json:"service_id"`
	PlanID           string                 `json:"plan_id"`
	OrganizationGUID string                 `json:"organization_guid,omitempty"`
	SpaceGUID        string                 `json:"space_guid,omitempty"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`

	// APIInfoLocation is the platform API info location used to derive
	// the registry URL of delegated requests.
	APIInfoLocation string `json:"-"`
}

// UpdateRequest is the body of an update request.
type UpdateRequest struct {
	InstanceID string                 `json:"-"`
	ServiceID  string                 `json:"service_id"`
	PlanID     string                 `json:"plan_id,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// DeprovisionRequest identifies the instance to deprovision.
type DeprovisionRequest struct {
	InstanceID string
	ServiceID  string
	PlanID     string
}

// BindResource identifies the application of a binding.
type BindResource struct {
	AppGUID string `json:"app_guid,omitempty"`
	Route   string `json:"route,omitempty"`
}

// BindRequest is the body of a bind request.
type BindRequest struct {
	InstanceID   string                 `json:"-"`
	BindingID    string                 `json:"-"`
	ServiceID    string                 `json:"service_id"`
	PlanID       string                 `json:"plan_id"`
	AppGUID      string                 `json:"app_guid,omitempty"`
	BindResource *BindResource          `json:"bind_resource,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
}

// ApplicationGUID returns the app GUID from the bind resource or from the
// deprecated top level field.
func (r *BindRequest) ApplicationGUID() string {
	if r.BindResource != nil && r.BindResource.AppGUID != "" {
		return r.BindResource.AppGUID
	}
	return r.AppGUID
}

// BindResponse is returned on a successful bind.
type BindResponse struct {
	Credentials map[string]interface{} `json:"credentials"`
}

// UnbindRequest identifies the binding to remove.
type UnbindRequest struct {
	InstanceID string
	BindingID  string
	ServiceID  string
	PlanID     string
}

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

package resmgr

import (
	"fmt"

	"github.com/stefanprodan/kubebroker/pkg/objectutil"
	"github.com/stefanprodan/kubebroker/pkg/params"
)

// ResourceKind identifies one of the resources created for an instance.
type ResourceKind string

const (
	NamespaceKind        ResourceKind = "Namespace"
	StorageClassKind     ResourceKind = "StorageClass"
	ConfigMapKind        ResourceKind = "ConfigMap"
	DiscoveryServiceKind ResourceKind = "DiscoveryService"
	HeadlessServiceKind  ResourceKind = "HeadlessService"
	WorkloadKind         ResourceKind = "Workload"
)

// CreationOrder is the order in which the resources are created.
var CreationOrder = []ResourceKind{
	NamespaceKind,
	StorageClassKind,
	ConfigMapKind,
	DiscoveryServiceKind,
	HeadlessServiceKind,
	WorkloadKind,
}

// DeletionOrder is the order in which the resources are deleted,
// the exact reverse of CreationOrder.
var DeletionOrder = []ResourceKind{
	WorkloadKind,
	HeadlessServiceKind,
	DiscoveryServiceKind,
	ConfigMapKind,
	StorageClassKind,
	NamespaceKind,
}

// kindSpec maps a resource kind to its template and API endpoints.
type kindSpec struct {
	template string
	apiKind  string
	// collection returns the path used to create the object.
	collection func(p *params.InstanceParameters) string
	// name returns the object name.
	name func(p *params.InstanceParameters) string
	// namespaced is false for cluster scoped kinds.
	namespaced bool
}

var kindSpecs = map[ResourceKind]kindSpec{
	NamespaceKind: {
		template:   "namespace.yaml",
		apiKind:    "Namespace",
		collection: func(p *params.InstanceParameters) string { return "/api/v1/namespaces" },
		name:       func(p *params.InstanceParameters) string { return p.Namespace },
	},
	StorageClassKind: {
		template:   "storageclass.yaml",
		apiKind:    "StorageClass",
		collection: func(p *params.InstanceParameters) string { return "/apis/storage.k8s.io/v1/storageclasses" },
		name:       func(p *params.InstanceParameters) string { return p.Name + "-storage" },
	},
	ConfigMapKind: {
		template:   "configmap.yaml",
		apiKind:    "ConfigMap",
		collection: namespacedCollection("/api/v1", "configmaps"),
		name:       func(p *params.InstanceParameters) string { return p.Name + "-config" },
		namespaced: true,
	},
	DiscoveryServiceKind: {
		template:   "discovery-service.yaml",
		apiKind:    "Service",
		collection: namespacedCollection("/api/v1", "services"),
		name:       func(p *params.InstanceParameters) string { return p.Name + "-discovery" },
		namespaced: true,
	},
	HeadlessServiceKind: {
		template:   "headless-service.yaml",
		apiKind:    "Service",
		collection: namespacedCollection("/api/v1", "services"),
		name:       func(p *params.InstanceParameters) string { return p.Name + "-service" },
		namespaced: true,
	},
	WorkloadKind: {
		template:   "statefulset.yaml",
		apiKind:    "StatefulSet",
		collection: namespacedCollection("/apis/apps/v1", "statefulsets"),
		name:       func(p *params.InstanceParameters) string { return p.Name },
		namespaced: true,
	},
}

func (s kindSpec) objectPath(p *params.InstanceParameters) string {
	return s.collection(p) + "/" + s.name(p)
}

func namespacedCollection(prefix, resource string) func(p *params.InstanceParameters) string {
	return func(p *params.InstanceParameters) string {
		return fmt.Sprintf("%s/namespaces/%s/%s", prefix, p.Namespace, resource)
	}
}

// Template returns the manifest template name of the kind.
func (k ResourceKind) Template() string {
	return kindSpecs[k].template
}

// CreatePath returns the API path used to create the resource.
func (k ResourceKind) CreatePath(p *params.InstanceParameters) string {
	return kindSpecs[k].collection(p)
}

// ObjectPath returns the API path used to read and delete the resource.
func (k ResourceKind) ObjectPath(p *params.InstanceParameters) string {
	return kindSpecs[k].objectPath(p)
}

// Subject returns the resource ID in the format <kind>/<namespace>/<name>.
func (k ResourceKind) Subject(p *params.InstanceParameters) string {
	spec := kindSpecs[k]
	namespace := ""
	if spec.namespaced {
		namespace = p.Namespace
	}
	return objectutil.FmtSubject(spec.apiKind, namespace, spec.name(p))
}

// Templates returns the template names in creation order.
func Templates() []string {
	names := make([]string, 0, len(CreationOrder))
	for _, kind := range CreationOrder {
		names = append(names, kind.Template())
	}
	return names
}

// PodStatusPath returns the API path of the status of the first workload pod.
func PodStatusPath(p *params.InstanceParameters) string {
	return fmt.Sprintf("/api/v1/namespaces/%s/pods/%s-0/status", p.Namespace, p.Name)
}

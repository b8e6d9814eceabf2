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

// Package resmgr manages the Kubernetes resources backing a service instance.
//
// The ResourceManager performs the following actions:
// - renders the manifests of every resource kind from the instance parameters
// - creates the resources in a fixed order, rolling back on the first failure
// - waits for the first workload pod to reach the Running phase
// - deletes the resources in the reverse order, ignoring missing objects
package resmgr

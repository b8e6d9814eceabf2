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

import "errors"

var (
	// ErrInstanceExists is returned when provisioning an instance that has a record.
	ErrInstanceExists = errors.New("instance already exists")
	// ErrInstanceNotFound is returned for operations on an instance without a record.
	ErrInstanceNotFound = errors.New("instance does not exist")
	// ErrBindingExists is returned when binding with an ID that has a record.
	ErrBindingExists = errors.New("binding already exists")
	// ErrBindingNotFound is returned when unbinding an ID without a record.
	ErrBindingNotFound = errors.New("binding does not exist")
	// ErrOperationNotFound is returned when the instance has no tracked operation.
	ErrOperationNotFound = errors.New("operation does not exist")
	// ErrUnknownPlan is returned when the service or plan is not in the catalog.
	ErrUnknownPlan = errors.New("unknown service or plan")
	// ErrNotReady is returned when the workload didn't reach the running phase.
	ErrNotReady = errors.New("workload is not running")
)

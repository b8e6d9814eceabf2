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

// Package operation tracks the state of asynchronous broker operations.
package operation

import "sync"

// State is the state of an asynchronous operation, as reported to the platform.
type State string

const (
	InProgress State = "in progress"
	Succeeded  State = "succeeded"
	Failed     State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Status is the last known state of an operation with an optional
// human readable description.
type Status struct {
	State       State  `json:"state"`
	Description string `json:"description,omitempty"`
}

// Store records the state of operations by instance ID.
type Store interface {
	// Begin marks the operation of the given instance as in progress.
	Begin(id string)
	// Complete records the final status of the operation.
	Complete(id string, status Status)
	// Get returns the status of the operation. In progress entries are
	// retained, terminal entries are returned once and then removed.
	Get(id string) (Status, bool)
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Status
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Status)}
}

func (s *MemoryStore) Begin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Status{State: InProgress}
}

func (s *MemoryStore) Complete(id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = status
}

func (s *MemoryStore) Get(id string) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.entries[id]
	if !ok {
		return Status{}, false
	}
	if status.State.Terminal() {
		delete(s.entries, id)
	}
	return status, true
}

// Len returns the number of tracked operations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

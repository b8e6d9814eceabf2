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
	"fmt"
	"strings"
)

// Action represents the action type performed on a resource kind.
type Action string

const (
	CreatedAction   Action = "created"
	UnchangedAction Action = "unchanged"
	DeletedAction   Action = "deleted"
	SkippedAction   Action = "skipped"
	FailedAction    Action = "failed"
)

// ChangeSet holds the result of the actions performed on the resources of an instance.
type ChangeSet struct {
	Entries []ChangeSetEntry
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{Entries: []ChangeSetEntry{}}
}

func (c *ChangeSet) Add(e ChangeSetEntry) {
	c.Entries = append(c.Entries, e)
}

func (c *ChangeSet) AddAll(e []ChangeSetEntry) {
	c.Entries = append(c.Entries, e...)
}

// ChangeSetEntry defines the result of an action performed on an object.
type ChangeSetEntry struct {
	// Subject represents the Object ID in the format 'kind/namespace/name'.
	Subject string
	// Action represents the action type taken for this object.
	Action string
	// Error holds the failure message when Action is 'failed'.
	Error string
}

func (e ChangeSetEntry) String() string {
	if e.Error != "" {
		return fmt.Sprintf("%s %s: %s", e.Subject, e.Action, e.Error)
	}
	return fmt.Sprintf("%s %s", e.Subject, e.Action)
}

// Subjects returns the subjects that had the given action applied.
func (c *ChangeSet) Subjects(action Action) []string {
	var subjects []string
	for _, e := range c.Entries {
		if e.Action == string(action) {
			subjects = append(subjects, e.Subject)
		}
	}
	return subjects
}

// String returns the entries one per line.
func (c *ChangeSet) String() string {
	var b strings.Builder
	for _, e := range c.Entries {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

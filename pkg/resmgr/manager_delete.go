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

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/rest"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

// DeleteAll deletes the resources in DeletionOrder (not found errors are ignored).
// The namespace is deleted only when it was generated for the instance.
// Each kind is attempted regardless of the outcome of the previous ones,
// failures are recorded in the returned change set.
func (m *ResourceManager) DeleteAll(ctx context.Context, p *params.InstanceParameters) *ChangeSet {
	changeSet := NewChangeSet()

	c, err := m.clientFor(p)
	if err != nil {
		m.log.Errorw("client init failed", "namespace", p.Namespace, "error", err)
		for _, kind := range DeletionOrder {
			changeSet.Add(*m.failedEntry(kind, p, err))
		}
		return changeSet
	}

	for _, kind := range DeletionOrder {
		if kind == NamespaceKind && !p.AutoMode {
			changeSet.Add(*m.changeSetEntry(kind, p, SkippedAction))
			continue
		}

		entry, err := m.delete(ctx, c, kind, p)
		if err != nil {
			m.log.Errorw("resource deletion failed", "kind", kind, "namespace", p.Namespace, "error", err)
			changeSet.Add(*m.failedEntry(kind, p, err))
			continue
		}
		m.log.Debugw(entry.String(), "kind", kind)
		changeSet.Add(*entry)
	}

	return changeSet
}

// delete deletes the given kind (not found errors are ignored).
func (m *ResourceManager) delete(ctx context.Context, c rest.Interface, kind ResourceKind, p *params.InstanceParameters) (*ChangeSetEntry, error) {
	err := c.Delete().AbsPath(kind.ObjectPath(p)).Do(ctx).Error()
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("%s delete failed, error: %w", kind.Subject(p), err)
	}
	return m.changeSetEntry(kind, p, DeletedAction), nil
}

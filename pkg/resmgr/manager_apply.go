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

// CreateAll creates the resources in CreationOrder. The namespace is
// created only if it doesn't exist. On the first failure, the resources
// created by this call are deleted in DeletionOrder and the creation
// error is returned together with the change set.
func (m *ResourceManager) CreateAll(ctx context.Context, p *params.InstanceParameters) (*ChangeSet, error) {
	c, err := m.clientFor(p)
	if err != nil {
		return nil, fmt.Errorf("client init failed: %w", err)
	}

	changeSet := NewChangeSet()
	created := make(map[ResourceKind]bool)

	for _, kind := range CreationOrder {
		entry, err := m.create(ctx, c, kind, p)
		if err != nil {
			changeSet.Add(*m.failedEntry(kind, p, err))
			m.log.Errorw("resource creation failed, rolling back",
				"kind", kind, "namespace", p.Namespace, "error", err)
			changeSet.AddAll(m.rollback(ctx, c, p, created).Entries)
			return changeSet, err
		}

		changeSet.Add(*entry)
		if entry.Action == string(CreatedAction) {
			created[kind] = true
		}
		m.log.Debugw(entry.String(), "kind", kind)
	}

	return changeSet, nil
}

// create posts the rendered manifest of the given kind.
func (m *ResourceManager) create(ctx context.Context, c rest.Interface, kind ResourceKind, p *params.InstanceParameters) (*ChangeSetEntry, error) {
	if kind == NamespaceKind {
		err := c.Get().AbsPath(kind.ObjectPath(p)).Do(ctx).Error()
		switch {
		case err == nil:
			return m.changeSetEntry(kind, p, UnchangedAction), nil
		case !apierrors.IsNotFound(err):
			return nil, kindError(kind, p, "query", err)
		}
	}

	body, err := m.renderer.Render(kind.Template(), p)
	if err != nil {
		return nil, kindError(kind, p, "render", err)
	}

	err = c.Post().
		AbsPath(kind.CreatePath(p)).
		SetHeader("Content-Type", "application/yaml").
		Body(body).
		Do(ctx).
		Error()
	if err != nil {
		return nil, kindError(kind, p, "create", err)
	}

	return m.changeSetEntry(kind, p, CreatedAction), nil
}

// rollback deletes the created kinds in DeletionOrder. Failures are
// logged and recorded in the change set.
func (m *ResourceManager) rollback(ctx context.Context, c rest.Interface, p *params.InstanceParameters, created map[ResourceKind]bool) *ChangeSet {
	changeSet := NewChangeSet()
	for _, kind := range DeletionOrder {
		if !created[kind] {
			continue
		}
		entry, err := m.delete(ctx, c, kind, p)
		if err != nil {
			m.log.Errorw("rollback failed", "kind", kind, "namespace", p.Namespace, "error", err)
			changeSet.Add(*m.failedEntry(kind, p, err))
			continue
		}
		changeSet.Add(*entry)
	}
	return changeSet
}

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
	"errors"
	"fmt"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/stefanprodan/kubebroker/pkg/manifest"
	"github.com/stefanprodan/kubebroker/pkg/params"
)

// ResourceManager creates, waits for and deletes the resources of a
// service instance on the cluster described by its parameters.
type ResourceManager struct {
	renderer  *manifest.Renderer
	clientFor ClientFactory
	log       *zap.SugaredLogger
}

// NewResourceManager creates a ResourceManager that renders manifests with
// the given renderer and connects to clusters with the given factory.
func NewResourceManager(renderer *manifest.Renderer, clientFor ClientFactory, log *zap.SugaredLogger) *ResourceManager {
	return &ResourceManager{
		renderer:  renderer,
		clientFor: clientFor,
		log:       log,
	}
}

func (m *ResourceManager) changeSetEntry(kind ResourceKind, p *params.InstanceParameters, action Action) *ChangeSetEntry {
	return &ChangeSetEntry{
		Subject: kind.Subject(p),
		Action:  string(action),
	}
}

func (m *ResourceManager) failedEntry(kind ResourceKind, p *params.InstanceParameters, err error) *ChangeSetEntry {
	entry := m.changeSetEntry(kind, p, FailedAction)
	entry.Error = err.Error()
	return entry
}

// isAPIStatus reports whether the error was returned by the API server,
// as opposed to a transport or client side failure.
func isAPIStatus(err error) bool {
	var status apierrors.APIStatus
	return errors.As(err, &status)
}

func kindError(kind ResourceKind, p *params.InstanceParameters, op string, err error) error {
	return fmt.Errorf("%s %s failed, error: %w", kind.Subject(p), op, err)
}

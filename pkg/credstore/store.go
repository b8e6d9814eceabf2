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

// Package credstore keeps the binding credentials in Kubernetes Secrets.
package credstore

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	SecretPrefix = "kb-cred-"

	componentLabelKey = "app.kubernetes.io/component"
	createdByLabelKey = "app.kubernetes.io/created-by"
	appGUIDKey        = "kubebroker.dev/app-guid"
)

// Store writes credentials to Secrets in a single namespace.
type Store struct {
	Client    client.Client
	Namespace string
	Owner     string
}

// SecretName returns the name of the Secret holding the credentials of a binding.
func SecretName(bindingID string) string {
	return SecretPrefix + bindingID
}

// Put replaces the credentials of the given binding and returns the
// reference of the Secret in the format <namespace>/<name>.
func (s *Store) Put(ctx context.Context, bindingID, appGUID string, values map[string]string) (string, error) {
	secret := &corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      SecretName(bindingID),
			Namespace: s.Namespace,
			Labels: map[string]string{
				componentLabelKey: "credentials",
				createdByLabelKey: s.Owner,
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: make(map[string][]byte, len(values)),
	}
	if appGUID != "" {
		secret.Annotations = map[string]string{appGUIDKey: appGUID}
	}
	for k, v := range values {
		secret.Data[k] = []byte(v)
	}

	if err := s.delete(ctx, secret.Name); err != nil {
		return "", err
	}
	if err := s.Client.Create(ctx, secret); err != nil {
		return "", fmt.Errorf("failed to create Secret/%s/%s, error: %w", secret.Namespace, secret.Name, err)
	}

	return Ref(secret.Namespace, secret.Name), nil
}

// Get returns the credentials of the given binding.
func (s *Store) Get(ctx context.Context, bindingID string) (map[string]string, error) {
	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: s.Namespace, Name: SecretName(bindingID)}
	if err := s.Client.Get(ctx, key, secret); err != nil {
		return nil, fmt.Errorf("failed to get Secret/%s, error: %w", key, err)
	}

	values := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		values[k] = string(v)
	}
	return values, nil
}

// Delete removes the credentials of the given binding (not found errors are ignored).
func (s *Store) Delete(ctx context.Context, bindingID string) error {
	return s.delete(ctx, SecretName(bindingID))
}

func (s *Store) delete(ctx context.Context, name string) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: s.Namespace,
		},
	}
	if err := s.Client.Delete(ctx, secret); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete Secret/%s/%s, error: %w", s.Namespace, name, err)
	}
	return nil
}

// Ref formats a Secret reference.
func Ref(namespace, name string) string {
	return namespace + "/" + name
}

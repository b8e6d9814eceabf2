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

package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"filippo.io/age"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/json"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	InstanceKindName = "instance"
	BindingKindName  = "binding"
	RecordPrefix     = "kb-"
	recordDataKey    = "record"

	nameLabelKey      = "app.kubernetes.io/name"
	componentLabelKey = "app.kubernetes.io/component"
	createdByLabelKey = "app.kubernetes.io/created-by"
	encryptionKey     = "kubebroker.dev/encryption"
	encryptionAge     = "age"
)

// ErrNotFound is returned when a record doesn't exist.
var ErrNotFound = errors.New("record not found")

// Storage manages the instance and binding records in-cluster storage.
// Each record is stored as JSON in a ConfigMap, optionally encrypted
// with age.
type Storage struct {
	Client    client.Client
	Namespace string
	Owner     string

	// Recipients enables the encryption of the records when not empty.
	Recipients []age.Recipient
	// Identities are required to read encrypted records.
	Identities []age.Identity
}

// GetOwnerLabels returns the storage common labels for the given kind.
func (m *Storage) GetOwnerLabels(kind string) client.MatchingLabels {
	return client.MatchingLabels{
		componentLabelKey: kind,
		createdByLabelKey: m.Owner,
	}
}

// SaveInstance creates or updates the record of the given instance.
func (m *Storage) SaveInstance(ctx context.Context, r *InstanceRecord) error {
	return m.save(ctx, InstanceKindName, r.ID, r)
}

// GetInstance retrieves the record of the given instance ID.
func (m *Storage) GetInstance(ctx context.Context, id string) (*InstanceRecord, error) {
	r := &InstanceRecord{}
	if err := m.get(ctx, InstanceKindName, id, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListInstances returns the instance records ordered by creation time.
func (m *Storage) ListInstances(ctx context.Context) ([]*InstanceRecord, error) {
	cms := &corev1.ConfigMapList{}
	if err := m.Client.List(ctx, cms, client.InNamespace(m.Namespace), m.GetOwnerLabels(InstanceKindName)); err != nil {
		return nil, fmt.Errorf("listing instance records failed, error: %w", err)
	}

	records := make([]*InstanceRecord, 0, len(cms.Items))
	for i := range cms.Items {
		r := &InstanceRecord{}
		if err := m.decode(&cms.Items[i], r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(&records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(&records[j].CreatedAt)
	})
	return records, nil
}

// DeleteInstance removes the record of the given instance ID.
func (m *Storage) DeleteInstance(ctx context.Context, id string) error {
	return m.delete(ctx, InstanceKindName, id)
}

// SaveBinding creates or updates the record of the given binding.
func (m *Storage) SaveBinding(ctx context.Context, r *BindingRecord) error {
	return m.save(ctx, BindingKindName, r.ID, r)
}

// GetBinding retrieves the record of the given binding ID.
func (m *Storage) GetBinding(ctx context.Context, id string) (*BindingRecord, error) {
	r := &BindingRecord{}
	if err := m.get(ctx, BindingKindName, id, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteBinding removes the record of the given binding ID.
func (m *Storage) DeleteBinding(ctx context.Context, id string) error {
	return m.delete(ctx, BindingKindName, id)
}

func (m *Storage) save(ctx context.Context, kind, id string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	cm := m.newConfigMap(kind, id)
	if len(m.Recipients) > 0 {
		data, err = encrypt(data, m.Recipients)
		if err != nil {
			return fmt.Errorf("encrypting %s record failed, error: %w", kind, err)
		}
		cm.Annotations = map[string]string{encryptionKey: encryptionAge}
	}
	cm.Data = map[string]string{
		recordDataKey: string(data),
	}

	existing := &corev1.ConfigMap{}
	err = m.Client.Get(ctx, client.ObjectKeyFromObject(cm), existing)
	switch {
	case apierrors.IsNotFound(err):
		if err := m.Client.Create(ctx, cm); err != nil {
			return fmt.Errorf("failed to create ConfigMap/%s/%s, error: %w", cm.Namespace, cm.Name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to get ConfigMap/%s/%s, error: %w", cm.Namespace, cm.Name, err)
	}

	existing.Labels = cm.Labels
	existing.Annotations = cm.Annotations
	existing.Data = cm.Data
	if err := m.Client.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update ConfigMap/%s/%s, error: %w", cm.Namespace, cm.Name, err)
	}
	return nil
}

func (m *Storage) get(ctx context.Context, kind, id string, record interface{}) error {
	cm := m.newConfigMap(kind, id)
	cmKey := client.ObjectKeyFromObject(cm)
	if err := m.Client.Get(ctx, cmKey, cm); err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return fmt.Errorf("failed to get ConfigMap/%s, error: %w", cmKey, err)
	}
	return m.decode(cm, record)
}

func (m *Storage) decode(cm *corev1.ConfigMap, record interface{}) error {
	payload, ok := cm.Data[recordDataKey]
	if !ok {
		return fmt.Errorf("record data not found in ConfigMap/%s/%s", cm.Namespace, cm.Name)
	}

	data := []byte(payload)
	if cm.Annotations[encryptionKey] == encryptionAge {
		if len(m.Identities) == 0 {
			return fmt.Errorf("ConfigMap/%s/%s is encrypted and no age identities were provided", cm.Namespace, cm.Name)
		}
		var err error
		data, err = decrypt(data, m.Identities)
		if err != nil {
			return fmt.Errorf("decrypting ConfigMap/%s/%s failed, error: %w", cm.Namespace, cm.Name, err)
		}
	}

	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("decoding ConfigMap/%s/%s failed, error: %w", cm.Namespace, cm.Name, err)
	}
	return nil
}

func (m *Storage) delete(ctx context.Context, kind, id string) error {
	cm := m.newConfigMap(kind, id)
	cmKey := client.ObjectKeyFromObject(cm)
	err := m.Client.Delete(ctx, cm)
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete ConfigMap/%s, error: %w", cmKey, err)
	}
	return nil
}

func (m *Storage) newConfigMap(kind, id string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "v1",
			Kind:       "ConfigMap",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s%s-%s", RecordPrefix, kind, id),
			Namespace: m.Namespace,
			Labels: map[string]string{
				nameLabelKey:      id,
				componentLabelKey: kind,
				createdByLabelKey: m.Owner,
			},
		},
	}
}

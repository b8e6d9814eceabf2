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
	"strings"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

func newTestStorage() *Storage {
	return &Storage{
		Client:    fake.NewClientBuilder().Build(),
		Namespace: "kubebroker-system",
		Owner:     "kubebroker",
	}
}

func testInstance(id string) *InstanceRecord {
	r := NewInstanceRecord(id)
	r.ServiceID = "mongodb"
	r.PlanID = "mongodbdefault"
	r.Parameters = map[string]interface{}{"namespace": "tenant"}
	r.Instance = params.InstanceParameters{
		Namespace:      "tenant",
		Name:           "mongo",
		AccessToken:    "token",
		URL:            "https://k8s.example.com",
		ExposePort:     31000,
		Storage:        "128Mi",
		Replicas:       1,
		ServiceTimeout: metav1.Duration{Duration: 30 * time.Second},
	}
	return r
}

func TestStorage_Instance(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	s := newTestStorage()

	_, err := s.GetInstance(ctx, "a")
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

	record := testInstance("a")
	g.Expect(s.SaveInstance(ctx, record)).To(Succeed())

	cm := &corev1.ConfigMap{}
	g.Expect(s.Client.Get(ctx, client.ObjectKey{Namespace: "kubebroker-system", Name: "kb-instance-a"}, cm)).To(Succeed())
	g.Expect(cm.Labels).To(HaveKeyWithValue(componentLabelKey, InstanceKindName))
	g.Expect(cm.Data).To(HaveKey(recordDataKey))

	result, err := s.GetInstance(ctx, "a")
	g.Expect(err).ToNot(HaveOccurred())
	if diff := cmp.Diff(record, result); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}

	record.PlanID = "mongodbgold"
	g.Expect(s.SaveInstance(ctx, record)).To(Succeed())
	result, err = s.GetInstance(ctx, "a")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result.PlanID).To(Equal("mongodbgold"))

	g.Expect(s.DeleteInstance(ctx, "a")).To(Succeed())
	_, err = s.GetInstance(ctx, "a")
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

	err = s.DeleteInstance(ctx, "a")
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
}

func TestStorage_ListInstances(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	s := newTestStorage()

	first := testInstance("b")
	first.CreatedAt = metav1.NewTime(time.Now().Add(-time.Hour).UTC().Truncate(time.Second))
	g.Expect(s.SaveInstance(ctx, testInstance("c"))).To(Succeed())
	g.Expect(s.SaveInstance(ctx, first)).To(Succeed())
	g.Expect(s.SaveBinding(ctx, NewBindingRecord("x", "b"))).To(Succeed())

	records, err := s.ListInstances(ctx)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(2))
	g.Expect(records[0].ID).To(Equal("b"))
	g.Expect(records[1].ID).To(Equal("c"))
}

func TestStorage_Binding(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	s := newTestStorage()

	record := NewBindingRecord("x", "a")
	record.AppGUID = "app"
	record.CredentialRef = "kubebroker-system/kb-cred-x"
	g.Expect(s.SaveBinding(ctx, record)).To(Succeed())

	result, err := s.GetBinding(ctx, "x")
	g.Expect(err).ToNot(HaveOccurred())
	if diff := cmp.Diff(record, result); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}

	_, err = s.GetInstance(ctx, "x")
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

	g.Expect(s.DeleteBinding(ctx, "x")).To(Succeed())
	_, err = s.GetBinding(ctx, "x")
	g.Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
}

func TestStorage_Encryption(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	identity, err := age.GenerateX25519Identity()
	g.Expect(err).ToNot(HaveOccurred())

	s := newTestStorage()
	s.Recipients = []age.Recipient{identity.Recipient()}
	s.Identities = []age.Identity{identity}

	record := testInstance("a")
	g.Expect(s.SaveInstance(ctx, record)).To(Succeed())

	cm := &corev1.ConfigMap{}
	g.Expect(s.Client.Get(ctx, client.ObjectKey{Namespace: "kubebroker-system", Name: "kb-instance-a"}, cm)).To(Succeed())
	g.Expect(cm.Annotations).To(HaveKeyWithValue(encryptionKey, encryptionAge))
	g.Expect(strings.HasPrefix(cm.Data[recordDataKey], "-----BEGIN AGE ENCRYPTED FILE-----")).To(BeTrue())
	g.Expect(cm.Data[recordDataKey]).ToNot(ContainSubstring("k8s.example.com"))

	result, err := s.GetInstance(ctx, "a")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result.Instance.URL).To(Equal("https://k8s.example.com"))

	s.Identities = nil
	_, err = s.GetInstance(ctx, "a")
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("no age identities"))
}

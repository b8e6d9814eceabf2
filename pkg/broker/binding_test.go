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

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/stefanprodan/kubebroker/pkg/credstore"
	"github.com/stefanprodan/kubebroker/pkg/inventory"
)

func provisionedInstance(g *WithT, tb *testBroker, id string) {
	g.Expect(tb.records.SaveInstance(ctx, inventory.NewInstanceRecord(id))).To(Succeed())
	g.Expect(tb.db.CreateDatabase(ctx, id)).To(Succeed())
}

func TestBind(t *testing.T) {
	g := NewWithT(t)
	tb := newTestBroker(t)
	provisionedInstance(g, tb, "inst-1")

	resp, err := tb.Bind(ctx, &BindRequest{
		InstanceID:   "inst-1",
		BindingID:    "bind-1",
		ServiceID:    "mongodb",
		PlanID:       defaultPlanID,
		BindResource: &BindResource{AppGUID: "app-1"},
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(resp.Credentials).To(HaveKeyWithValue(SecretRefKey, brokerNamespace+"/kb-cred-bind-1"))

	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: brokerNamespace, Name: credstore.SecretName("bind-1")}
	g.Expect(tb.kube.Get(ctx, key, secret)).To(Succeed())
	g.Expect(secret.Annotations).To(HaveKeyWithValue("kubebroker.dev/app-guid", "app-1"))

	uri := string(secret.Data[CredentialsURIKey])
	g.Expect(uri).To(HavePrefix("mongodb://bind-1:"))
	g.Expect(uri).To(ContainSubstring("@mongo.example.com:27017/inst-1"))

	tb.db.mu.Lock()
	password := tb.db.users["inst-1/bind-1"]
	tb.db.mu.Unlock()
	g.Expect(password).To(HaveLen(passwordLength))
	g.Expect(strings.Contains(uri, password)).To(BeTrue())

	record, err := tb.records.GetBinding(ctx, "bind-1")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(record.InstanceID).To(Equal("inst-1"))
	g.Expect(record.AppGUID).To(Equal("app-1"))
	g.Expect(record.CredentialRef).To(Equal(brokerNamespace + "/kb-cred-bind-1"))
}

func TestBind_Conflicts(t *testing.T) {
	g := NewWithT(t)
	tb := newTestBroker(t)

	_, err := tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(errors.Is(err, ErrInstanceNotFound)).To(BeTrue())

	provisionedInstance(g, tb, "inst-1")
	_, err = tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1", AppGUID: "app-1"})
	g.Expect(err).ToNot(HaveOccurred())

	_, err = tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1", AppGUID: "app-1"})
	g.Expect(errors.Is(err, ErrBindingExists)).To(BeTrue())
}

// failingCreates returns a fake client rejecting the creation of objects
// matched by fail while enabled is set.
func failingCreates(enabled *atomic.Bool, fail func(obj client.Object) bool) client.WithWatch {
	return fake.NewClientBuilder().WithInterceptorFuncs(interceptor.Funcs{
		Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
			if enabled.Load() && fail(obj) {
				return errors.New("etcd unavailable")
			}
			return c.Create(ctx, obj, opts...)
		},
	}).Build()
}

func TestBind_CredentialsFailure(t *testing.T) {
	g := NewWithT(t)
	var enabled atomic.Bool
	enabled.Store(true)
	tb := newTestBrokerWithClient(t, failingCreates(&enabled, func(obj client.Object) bool {
		_, ok := obj.(*corev1.Secret)
		return ok
	}))
	provisionedInstance(g, tb, "inst-1")

	_, err := tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("etcd unavailable"))
	g.Expect(tb.db.Users()).To(BeZero())

	_, err = tb.records.GetBinding(ctx, "bind-1")
	g.Expect(errors.Is(err, inventory.ErrNotFound)).To(BeTrue())

	// the bind can be retried once the API server recovers
	enabled.Store(false)
	resp, err := tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(resp.Credentials).To(HaveKey(SecretRefKey))
	g.Expect(tb.db.Users()).To(Equal(1))
}

func TestBind_RecordFailure(t *testing.T) {
	g := NewWithT(t)
	var enabled atomic.Bool
	enabled.Store(true)
	tb := newTestBrokerWithClient(t, failingCreates(&enabled, func(obj client.Object) bool {
		return obj.GetLabels()["app.kubernetes.io/component"] == inventory.BindingKindName
	}))
	provisionedInstance(g, tb, "inst-1")

	_, err := tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(ContainSubstring("saving binding record failed"))
	g.Expect(tb.db.Users()).To(BeZero())

	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: brokerNamespace, Name: credstore.SecretName("bind-1")}
	g.Expect(tb.kube.Get(ctx, key, secret)).ToNot(Succeed())

	enabled.Store(false)
	_, err = tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(err).ToNot(HaveOccurred())
}

func TestUnbind(t *testing.T) {
	g := NewWithT(t)
	tb := newTestBroker(t)
	provisionedInstance(g, tb, "inst-1")

	_, err := tb.Bind(ctx, &BindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(err).ToNot(HaveOccurred())

	err = tb.Unbind(ctx, &UnbindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(err).ToNot(HaveOccurred())

	tb.db.mu.Lock()
	g.Expect(tb.db.users).To(BeEmpty())
	tb.db.mu.Unlock()

	_, err = tb.records.GetBinding(ctx, "bind-1")
	g.Expect(errors.Is(err, inventory.ErrNotFound)).To(BeTrue())

	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: brokerNamespace, Name: credstore.SecretName("bind-1")}
	g.Expect(tb.kube.Get(ctx, key, secret)).ToNot(Succeed())

	err = tb.Unbind(ctx, &UnbindRequest{InstanceID: "inst-1", BindingID: "bind-1"})
	g.Expect(errors.Is(err, ErrBindingNotFound)).To(BeTrue())
}

func TestBindRequest_ApplicationGUID(t *testing.T) {
	g := NewWithT(t)

	r := &BindRequest{AppGUID: "legacy"}
	g.Expect(r.ApplicationGUID()).To(Equal("legacy"))

	r.BindResource = &BindResource{AppGUID: "app"}
	g.Expect(r.ApplicationGUID()).To(Equal("app"))
}

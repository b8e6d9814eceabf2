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
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/gomega"
)

func TestDeleteAll(t *testing.T) {
	g := NewWithT(t)
	server := newAPIServer(t)
	server.respond = func(method, path, body string) int {
		switch {
		case strings.HasSuffix(path, "/mongo-discovery"):
			return http.StatusNotFound
		case strings.HasSuffix(path, "/mongo-config"):
			return http.StatusInternalServerError
		}
		return 0
	}

	manager := newTestManager(t)
	changeSet := manager.DeleteAll(ctx, testParameters(server.URL))

	expected := []string{
		"DELETE /apis/apps/v1/namespaces/tenant/statefulsets/mongo",
		"DELETE /api/v1/namespaces/tenant/services/mongo-service",
		"DELETE /api/v1/namespaces/tenant/services/mongo-discovery",
		"DELETE /api/v1/namespaces/tenant/configmaps/mongo-config",
		"DELETE /apis/storage.k8s.io/v1/storageclasses/mongo-storage",
	}
	if diff := cmp.Diff(expected, server.Calls()); diff != "" {
		t.Errorf("Mismatch from expected value (-want +got):\n%s", diff)
	}

	g.Expect(changeSet.Subjects(DeletedAction)).To(Equal([]string{
		"StatefulSet/tenant/mongo",
		"Service/tenant/mongo-service",
		"Service/tenant/mongo-discovery",
		"StorageClass/mongo-storage",
	}))
	g.Expect(changeSet.Subjects(FailedAction)).To(Equal([]string{"ConfigMap/tenant/mongo-config"}))
	g.Expect(changeSet.Subjects(SkippedAction)).To(Equal([]string{"Namespace/tenant"}))
}

func TestDeleteAll_AutoMode(t *testing.T) {
	g := NewWithT(t)
	server := newAPIServer(t)

	p := testParameters(server.URL)
	p.AutoMode = true

	manager := newTestManager(t)
	changeSet := manager.DeleteAll(ctx, p)

	calls := server.Calls()
	g.Expect(calls).To(HaveLen(len(DeletionOrder)))
	g.Expect(calls[len(calls)-1]).To(Equal("DELETE /api/v1/namespaces/tenant"))
	g.Expect(changeSet.Subjects(DeletedAction)).To(HaveLen(len(DeletionOrder)))
}

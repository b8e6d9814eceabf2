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

package main

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"
)

func TestRender(t *testing.T) {
	g := NewWithT(t)

	output, err := executeCommand("render --plan gold --set namespace=apps --set service_name=orders")
	g.Expect(err).NotTo(HaveOccurred())
	t.Logf("\n%s", output)

	g.Expect(output).To(ContainSubstring("kind: Namespace"))
	g.Expect(output).To(ContainSubstring("kind: StorageClass"))
	g.Expect(output).To(ContainSubstring("name: orders-config"))
	g.Expect(output).To(ContainSubstring("kind: StatefulSet"))
	g.Expect(output).To(ContainSubstring("replicas: 3"))
	g.Expect(output).To(ContainSubstring("storage: 1Gi"))
}

func TestRender_JSON(t *testing.T) {
	g := NewWithT(t)

	output, err := executeCommand("render --set namespace=apps -o json")
	g.Expect(err).NotTo(HaveOccurred())

	list := struct {
		Kind  string                   `json:"kind"`
		Items []map[string]interface{} `json:"items"`
	}{}
	g.Expect(json.Unmarshal([]byte(output), &list)).To(Succeed())
	g.Expect(list.Kind).To(Equal("List"))
	g.Expect(list.Items).To(HaveLen(6))
	g.Expect(list.Items[0]["kind"]).To(Equal("Namespace"))
	g.Expect(list.Items[5]["kind"]).To(Equal("StatefulSet"))
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"missing namespace", "render --set service_name=orders"},
		{"unknown plan", "render --plan silver --set namespace=apps"},
		{"invalid parameter", "render --set namespace"},
		{"invalid port", "render --set namespace=apps --set expose_port=http"},
		{"invalid output", "render --set namespace=apps -o table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			_, err := executeCommand(tt.args)
			g.Expect(err).To(HaveOccurred())
		})
	}
}

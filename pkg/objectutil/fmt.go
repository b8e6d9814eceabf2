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

package objectutil

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const fmtSeparator = "/"

// FmtSubject returns the object ID in the format <kind>/<namespace>/<name>.
// Cluster scoped objects are formatted as <kind>/<name>.
func FmtSubject(kind, namespace, name string) string {
	var builder strings.Builder
	builder.WriteString(kind + fmtSeparator)
	if namespace != "" {
		builder.WriteString(namespace + fmtSeparator)
	}
	builder.WriteString(name)
	return builder.String()
}

// FmtUnstructured returns the object ID in the format <kind>/<namespace>/<name>.
func FmtUnstructured(obj *unstructured.Unstructured) string {
	return FmtSubject(obj.GetKind(), obj.GetNamespace(), obj.GetName())
}

// MaskFields replaces the values found at the given dot separated paths
// with the mask. Missing paths are ignored.
func MaskFields(object map[string]interface{}, mask string, paths ...string) error {
	for _, path := range paths {
		fields := strings.Split(path, ".")
		value, found, err := unstructured.NestedFieldNoCopy(object, fields...)
		if err != nil {
			return fmt.Errorf("%s lookup failed, error: %w", path, err)
		}
		if !found || value == "" {
			continue
		}
		if err := unstructured.SetNestedField(object, mask, fields...); err != nil {
			return fmt.Errorf("%s mask failed, error: %w", path, err)
		}
	}
	return nil
}

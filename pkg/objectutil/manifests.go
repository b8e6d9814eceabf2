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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	apiruntime "k8s.io/apimachinery/pkg/runtime"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// Format is the encoding of a rendered manifest.
type Format string

const (
	YAMLFormat Format = "yaml"
	JSONFormat Format = "json"
)

// ParseFormat returns the Format matching the given name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case YAMLFormat, JSONFormat:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, can be yaml or json", name)
	}
}

// DecodeManifests decodes the YAML or JSON documents produced by the
// template renderer. Lists are flattened into their items and every object
// must carry a kind, an API version and a name.
func DecodeManifests(data []byte) ([]*unstructured.Unstructured, error) {
	decoder := yamlutil.NewYAMLOrJSONDecoder(bytes.NewReader(data), 2048)
	var objects []*unstructured.Unstructured

	for doc := 1; ; doc++ {
		obj := &unstructured.Unstructured{}
		if err := decoder.Decode(obj); err != nil {
			if err == io.EOF {
				return objects, nil
			}
			return nil, fmt.Errorf("document %d decode failed, error: %w", doc, err)
		}

		items := []*unstructured.Unstructured{obj}
		if obj.IsList() {
			items = nil
			err := obj.EachListItem(func(item apiruntime.Object) error {
				items = append(items, item.(*unstructured.Unstructured))
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("document %d list decode failed, error: %w", doc, err)
			}
		}

		for _, item := range items {
			if item.GetName() == "" || item.GetKind() == "" || item.GetAPIVersion() == "" {
				return nil, fmt.Errorf("document %d: object %s is missing kind, apiVersion or name",
					doc, FmtUnstructured(item))
			}
			objects = append(objects, item)
		}
	}
}

// EncodeManifests encodes the objects as a YAML multi-doc or as a JSON v1 List.
func EncodeManifests(objects []*unstructured.Unstructured, format Format) (string, error) {
	switch format {
	case YAMLFormat:
		var builder strings.Builder
		for _, obj := range objects {
			data, err := yaml.Marshal(obj)
			if err != nil {
				return "", fmt.Errorf("%s encode failed, error: %w", FmtUnstructured(obj), err)
			}
			builder.WriteString("---\n")
			builder.Write(data)
		}
		return builder.String(), nil
	case JSONFormat:
		list := &unstructured.UnstructuredList{}
		list.SetAPIVersion("v1")
		list.SetKind("List")
		for _, obj := range objects {
			list.Items = append(list.Items, *obj)
		}
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported output format %q, can be yaml or json", format)
	}
}

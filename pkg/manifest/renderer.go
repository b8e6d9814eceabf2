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

// Package manifest renders the Kubernetes manifests of a service instance
// from the templates embedded in the binary.
package manifest

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

//go:embed templates/*.yaml
var templatesFS embed.FS

const templatesDir = "templates"

// Renderer executes the embedded templates against InstanceParameters.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses all the embedded templates.
func NewRenderer() (*Renderer, error) {
	entries, err := templatesFS.ReadDir(templatesDir)
	if err != nil {
		return nil, fmt.Errorf("reading templates failed, error: %w", err)
	}

	templates := make(map[string]*template.Template, len(entries))
	for _, entry := range entries {
		data, err := templatesFS.ReadFile(path.Join(templatesDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading template %s failed, error: %w", entry.Name(), err)
		}

		tpl, err := template.New(entry.Name()).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s failed, error: %w", entry.Name(), err)
		}
		templates[entry.Name()] = tpl
	}

	return &Renderer{templates: templates}, nil
}

// Templates returns the names of the available templates.
func (r *Renderer) Templates() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template. The parameters are not validated.
func (r *Renderer) Render(name string, p *params.InstanceParameters) ([]byte, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("rendering template %s failed, error: %w", name, err)
	}
	return buf.Bytes(), nil
}

// RenderAll renders the named templates, in the given order, into a
// multi-document YAML stream.
func (r *Renderer) RenderAll(names []string, p *params.InstanceParameters) ([]byte, error) {
	var buf bytes.Buffer
	for _, name := range names {
		data, err := r.Render(name, p)
		if err != nil {
			return nil, err
		}
		buf.WriteString("---\n")
		buf.Write(bytes.TrimRight(data, "\n"))
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

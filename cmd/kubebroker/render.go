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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stefanprodan/kubebroker/pkg/catalog"
	"github.com/stefanprodan/kubebroker/pkg/manifest"
	"github.com/stefanprodan/kubebroker/pkg/objectutil"
	"github.com/stefanprodan/kubebroker/pkg/params"
	"github.com/stefanprodan/kubebroker/pkg/resmgr"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render prints the Kubernetes resources of an instance to stdout.",
	Example: `  # Render the resources of a gold plan instance
  kubebroker render --plan gold --set namespace=apps --set service_name=orders

  # Render the resources as a JSON list
  kubebroker render --set namespace=apps --set expose_port=31001 -o json
`,
	RunE: runRenderCmd,
}

type renderFlags struct {
	plan   string
	values []string
	output string
}

var renderArgs renderFlags

func init() {
	renderCmd.Flags().StringVar(&renderArgs.plan, "plan", catalog.DefaultPlan,
		"The plan name or ID that sets the storage size and the number of replicas.")
	renderCmd.Flags().StringArrayVar(&renderArgs.values, "set", nil,
		"Instance parameter in the format key=value, can be specified multiple times.")
	renderCmd.Flags().StringVarP(&renderArgs.output, "output", "o", "yaml",
		"The output format can be yaml or json.")
	rootCmd.AddCommand(renderCmd)
}

func runRenderCmd(cmd *cobra.Command, args []string) error {
	format, err := objectutil.ParseFormat(renderArgs.output)
	if err != nil {
		return err
	}

	c := catalog.New(cfg.Service.ID)
	plan, ok := c.FindPlan("", renderArgs.plan)
	if !ok {
		plan, ok = c.FindPlan("", cfg.Service.ID+renderArgs.plan)
	}
	if !ok {
		return fmt.Errorf("plan %s not found in catalog", renderArgs.plan)
	}

	raw := make(map[string]any, len(renderArgs.values))
	for _, kv := range renderArgs.values {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return fmt.Errorf("invalid parameter %q, must be in the format key=value", kv)
		}
		raw[key] = value
	}

	resolver, err := params.NewResolver(cfg.ResolverDefaults())
	if err != nil {
		return err
	}
	p, err := resolver.Resolve(raw, plan)
	if err != nil {
		return err
	}
	if p.Namespace == "" {
		return fmt.Errorf("you must specify a namespace with --set namespace=<name>")
	}

	renderer, err := manifest.NewRenderer()
	if err != nil {
		return err
	}
	data, err := renderer.RenderAll(resmgr.Templates(), p)
	if err != nil {
		return err
	}

	objects, err := objectutil.DecodeManifests(data)
	if err != nil {
		return err
	}
	out, err := objectutil.EncodeManifests(objects, format)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		logger.Debugw("rendered", "object", objectutil.FmtUnstructured(obj))
	}
	cmd.Print(out)
	return nil
}

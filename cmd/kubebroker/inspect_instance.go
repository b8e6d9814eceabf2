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
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/stefanprodan/kubebroker/pkg/objectutil"
)

var inspectInstanceCmd = &cobra.Command{
	Use:     "instance",
	Aliases: []string{"inst"},
	Short:   "Inspect prints the record of the given service instance.",
	Example: `  # Print an instance record with the credentials masked
  kubebroker inspect instance <id>

  # Print an instance record including the credentials
  kubebroker inspect inst <id> --show-secrets
`,
	RunE: runInspectInstanceCmd,
}

type inspectInstanceFlags struct {
	showSecrets bool
}

var inspectInstanceArgs inspectInstanceFlags

// sensitiveFields lists the record fields masked unless --show-secrets is set.
var sensitiveFields = []string{
	"instance.token",
	"instance.identity",
	"parameters.token",
	"parameters.identity",
}

func init() {
	inspectInstanceCmd.Flags().BoolVar(&inspectInstanceArgs.showSecrets, "show-secrets", false,
		"Print the cluster token and the registry identity in clear text.")
	inspectCmd.AddCommand(inspectInstanceCmd)
}

func runInspectInstanceCmd(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("you must specify an instance ID")
	}
	id := args[0]

	kubeClient, err := newKubeClient(kubeconfigArgs)
	if err != nil {
		return fmt.Errorf("client init failed: %w", err)
	}

	records, err := newRecordStorage(kubeClient, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rootArgs.timeout)
	defer cancel()

	record, err := records.GetInstance(ctx, id)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	object := map[string]interface{}{}
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}

	if !inspectInstanceArgs.showSecrets {
		if err := objectutil.MaskFields(object, "***", sensitiveFields...); err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(object)
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	return nil
}

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
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var getInstancesCmd = &cobra.Command{
	Use:     "instances",
	Aliases: []string{"instance", "inst"},
	Short:   "Get instances prints the provisioned service instances.",
	Example: `  # List the instances recorded in the default namespace
  kubebroker get instances

  # List the instances recorded in a specific namespace
  kubebroker get instances -n kubebroker-dev
`,
	RunE: runGetInstancesCmd,
}

func init() {
	getCmd.AddCommand(getInstancesCmd)
}

func runGetInstancesCmd(cmd *cobra.Command, args []string) error {
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

	instances, err := records.ListInstances(ctx)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, i := range instances {
		mode := "manual"
		if i.Instance.AutoMode {
			mode = "auto"
		}
		row := []string{
			i.ID,
			i.PlanID,
			i.Instance.Namespace,
			i.Instance.Name,
			i.Instance.URL,
			mode,
			i.CreatedAt.Format(time.RFC3339),
		}
		rows = append(rows, row)
	}

	printTable(cmd.OutOrStdout(), []string{"id", "plan", "namespace", "service", "cluster", "mode", "created"}, rows)

	return nil
}

func printTable(writer io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

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
	"os"
	"time"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/stefanprodan/kubebroker/pkg/config"
	"github.com/stefanprodan/kubebroker/pkg/log"
)

var VERSION = "0.1.0-dev.0"

const PROJECT = "kubebroker"

var rootCmd = &cobra.Command{
	Use:           PROJECT,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "An Open Service Broker that provisions MongoDB workloads on Kubernetes clusters.",
	Long: `Kubebroker is an Open Service Broker for MongoDB on Kubernetes.

Serve the broker API:

- kubebroker serve [--address :8080] [--workers 10]

Preview the Kubernetes resources of an instance:

- kubebroker render --plan <plan> --set namespace=<namespace> --set service_name=<name>

Inspect the provisioned instances:

- kubebroker get instances
- kubebroker inspect instance <id>

Manage the broker configuration:

- kubebroker config init
- kubebroker config view
`,
	PersistentPreRunE: initRoot,
}

type rootFlags struct {
	timeout    time.Duration
	configPath string
	namespace  string
	logDebug   bool
	logFormat  string
}

var (
	rootArgs = rootFlags{}
	logger   = zap.NewNop().Sugar()
	cfg      = config.NewConfig()
)

var kubeconfigArgs = genericclioptions.NewConfigFlags(false)

func init() {
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", time.Minute,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.configPath, "config", "",
		"Path to the config file, defaults to '$HOME/.kubebroker/config'.")
	rootCmd.PersistentFlags().StringVarP(&rootArgs.namespace, "namespace", "n", "",
		"The namespace of the instance records, overrides the config value.")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.logDebug, "log-debug", false,
		"Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.logFormat, "log-format", string(log.FormatConsole),
		fmt.Sprintf("Log format, one of: %s.", log.AvailableFormats))

	kubeconfigArgs.Timeout = nil
	kubeconfigArgs.Namespace = nil
	kubeconfigArgs.AddFlags(rootCmd.PersistentFlags())

	rootCmd.DisableAutoGenTag = true
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), `✗`, err)
		os.Exit(1)
	}
}

func initRoot(cmd *cobra.Command, args []string) error {
	opts := log.Options{Debug: rootArgs.logDebug, Format: rootArgs.logFormat}
	if err := opts.Validate(); err != nil {
		return err
	}
	zl := log.NewFromOptions(opts)
	logger = zl.Sugar()
	ctrllog.SetLogger(zapr.NewLogger(zl))

	return loadConfig()
}

func loadConfig() error {
	c, err := config.Read(rootArgs.configPath)
	if err != nil {
		return fmt.Errorf("loading the config failed, error: %w", err)
	}
	if rootArgs.namespace != "" {
		c.Storage.Namespace = rootArgs.namespace
	}
	cfg = c
	return nil
}

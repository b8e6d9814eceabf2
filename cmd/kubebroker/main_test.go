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
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/mattn/go-shellwords"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/stefanprodan/kubebroker/pkg/catalog"
	"github.com/stefanprodan/kubebroker/pkg/config"
	"github.com/stefanprodan/kubebroker/pkg/inventory"
)

var (
	tmpDir         string
	fakeKubeClient client.Client
)

func TestMain(m *testing.M) {
	var err error
	tmpDir, err = os.MkdirTemp("", "kubebroker")
	if err != nil {
		panic(err)
	}

	// keep the tests away from the user config
	if err := os.Setenv("HOME", tmpDir); err != nil {
		panic(err)
	}

	fakeKubeClient = fake.NewClientBuilder().WithScheme(newScheme()).Build()
	newKubeClient = func(_ genericclioptions.RESTClientGetter) (client.Client, error) {
		return fakeKubeClient, nil
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func executeCommand(cmd string) (string, error) {
	defer resetCmdArgs()
	args, err := shellwords.Parse(cmd)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)

	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	_, err = rootCmd.ExecuteC()
	result := buf.String()

	return result, err
}

func resetCmdArgs() {
	rootArgs.configPath = ""
	rootArgs.namespace = ""
	rootArgs.logDebug = false
	rootArgs.logFormat = "console"
	renderArgs = renderFlags{plan: catalog.DefaultPlan, output: "yaml"}
	inspectInstanceArgs = inspectInstanceFlags{}
	serveArgs = serveFlags{}
}

func testStorage() *inventory.Storage {
	return &inventory.Storage{
		Client:    fakeKubeClient,
		Namespace: config.NewConfig().Storage.Namespace,
		Owner:     config.DefaultOwner,
	}
}

func saveInstance(record *inventory.InstanceRecord) error {
	return testStorage().SaveInstance(context.Background(), record)
}

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

	corev1 "k8s.io/api/core/v1"
	apiruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stefanprodan/kubebroker/pkg/config"
	"github.com/stefanprodan/kubebroker/pkg/inventory"
)

func newScheme() *apiruntime.Scheme {
	scheme := apiruntime.NewScheme()
	_ = corev1.AddToScheme(scheme)
	return scheme
}

// newKubeClient returns a client for the cluster hosting the broker records.
var newKubeClient = func(rcg genericclioptions.RESTClientGetter) (client.Client, error) {
	cfg, err := newKubeConfig(rcg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}

	kubeClient, err := client.New(cfg, client.Options{
		Scheme: newScheme(),
	})
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}

	return kubeClient, nil
}

func newKubeConfig(rcg genericclioptions.RESTClientGetter) (*rest.Config, error) {
	cfg, err := rcg.ToRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("kubeconfig load failed: %w", err)
	}

	cfg.QPS = 50
	cfg.Burst = 100

	return cfg, nil
}

func newRecordStorage(kubeClient client.Client, c *config.Config) (*inventory.Storage, error) {
	recipients, err := inventory.ParseAgeRecipients(c.Storage.AgeRecipients)
	if err != nil {
		return nil, fmt.Errorf("age recipients load failed: %w", err)
	}
	identities, err := inventory.ParseAgeIdentities(c.Storage.AgeIdentities)
	if err != nil {
		return nil, fmt.Errorf("age identities load failed: %w", err)
	}

	return &inventory.Storage{
		Client:     kubeClient,
		Namespace:  c.Storage.Namespace,
		Owner:      config.DefaultOwner,
		Recipients: recipients,
		Identities: identities,
	}, nil
}

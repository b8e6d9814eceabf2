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

package resmgr

import (
	"fmt"

	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

const userAgent = "kubebroker"

// ClientFactory returns a REST client for the cluster described by the parameters.
type ClientFactory func(p *params.InstanceParameters) (rest.Interface, error)

// NewClientFactory returns a ClientFactory that authenticates with the
// bearer token of the parameters.
func NewClientFactory(insecure bool) ClientFactory {
	return func(p *params.InstanceParameters) (rest.Interface, error) {
		return newRESTClient(p.URL, p.AccessToken, insecure)
	}
}

func newRESTClient(host, token string, insecure bool) (*rest.RESTClient, error) {
	cfg := &rest.Config{
		Host:        host,
		BearerToken: token,
		UserAgent:   userAgent,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: insecure,
		},
		ContentConfig: rest.ContentConfig{
			NegotiatedSerializer: scheme.Codecs.WithoutConversion(),
		},
	}
	cfg.QPS = 50
	cfg.Burst = 100

	c, err := rest.UnversionedRESTClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client initialization failed: %w", err)
	}
	return c, nil
}

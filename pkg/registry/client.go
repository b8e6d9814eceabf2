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

// Package registry obtains cluster credentials from the instance registry
// on behalf of delegated provisioning requests.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilrand "k8s.io/apimachinery/pkg/util/rand"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"

	"github.com/stefanprodan/kubebroker/pkg/params"
)

const (
	serviceInstancesPath = "/v2/service_instances"
	serviceKeysPath      = "/v2/service_keys"

	// namespaceSuffixLength is the length of the random suffix of
	// generated namespaces.
	namespaceSuffixLength = 8
)

// ErrClusterNotFound is returned when the registry has no instance with
// the requested cluster name.
var ErrClusterNotFound = errors.New("cluster not found in registry")

// keyCounter makes the service key names unique within the process.
var keyCounter atomic.Uint64

// Client talks to the instance registry with the caller identity.
type Client struct {
	insecure bool
	log      *zap.SugaredLogger
}

// NewClient returns a registry client.
func NewClient(insecure bool, log *zap.SugaredLogger) *Client {
	return &Client{insecure: insecure, log: log}
}

// Resolve looks up the cluster instance by name, issues a service key for
// it and copies the cluster URL and token into the parameters together
// with a generated namespace. The parameters are modified only when all
// the steps succeed.
func (c *Client) Resolve(ctx context.Context, p *params.InstanceParameters) error {
	rc, err := c.restClient(p)
	if err != nil {
		return err
	}

	data, err := rc.Get().
		AbsPath(serviceInstancesPath).
		Param("q", "name:"+p.ClusterName).
		Do(ctx).
		Raw()
	if err != nil {
		return fmt.Errorf("querying service instances failed, error: %w", err)
	}

	list := &ServiceList{}
	if err := json.Unmarshal(data, list); err != nil {
		return fmt.Errorf("decoding service instances failed, error: %w", err)
	}
	if list.TotalResults == 0 || len(list.Resources) == 0 {
		return fmt.Errorf("%w: %s", ErrClusterNotFound, p.ClusterName)
	}

	body, err := json.Marshal(serviceKeyRequest{
		ServiceInstanceGUID: list.Resources[0].Metadata.GUID,
		Name:                keyName(),
	})
	if err != nil {
		return err
	}

	data, err = rc.Post().
		AbsPath(serviceKeysPath).
		SetHeader("Content-Type", "application/json").
		Body(body).
		Do(ctx).
		Raw()
	if err != nil {
		return fmt.Errorf("creating service key failed, error: %w", err)
	}

	key := &ServiceKey{}
	if err := json.Unmarshal(data, key); err != nil {
		return fmt.Errorf("decoding service key failed, error: %w", err)
	}

	server, token, err := key.Entity.Credentials.Cluster()
	if err != nil {
		return fmt.Errorf("service key %s is invalid, error: %w", key.Metadata.GUID, err)
	}

	p.URL = server
	p.AccessToken = token
	p.Namespace = GenerateNamespace(p.Name)
	p.ServiceKeyGUID = key.Metadata.GUID
	p.AutoMode = true

	c.log.Infow("cluster credentials issued",
		"cluster", p.ClusterName, "key", p.ServiceKeyGUID, "namespace", p.Namespace)
	return nil
}

// RevokeKey deletes the service key recorded in the parameters.
// Keys already removed from the registry are ignored.
func (c *Client) RevokeKey(ctx context.Context, p *params.InstanceParameters) error {
	if p.ServiceKeyGUID == "" {
		return nil
	}

	rc, err := c.restClient(p)
	if err != nil {
		return err
	}

	err = rc.Delete().AbsPath(serviceKeysPath, p.ServiceKeyGUID).Do(ctx).Error()
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("revoking service key %s failed, error: %w", p.ServiceKeyGUID, err)
	}
	return nil
}

func (c *Client) restClient(p *params.InstanceParameters) (rest.Interface, error) {
	if p.RegistryURL == "" {
		return nil, errors.New("registry URL is not set")
	}

	cfg := &rest.Config{
		Host:        p.RegistryURL,
		BearerToken: p.Identity,
		UserAgent:   "kubebroker",
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: c.insecure,
		},
		ContentConfig: rest.ContentConfig{
			AcceptContentTypes:   "application/json",
			ContentType:          "application/json",
			NegotiatedSerializer: scheme.Codecs.WithoutConversion(),
		},
	}

	rc, err := rest.UnversionedRESTClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("registry client initialization failed: %w", err)
	}
	return rc, nil
}

// GenerateNamespace returns a namespace name made of the workload name and
// a random suffix.
func GenerateNamespace(name string) string {
	return fmt.Sprintf("%s-%s", name, utilrand.String(namespaceSuffixLength))
}

// BaseURL returns the registry URL derived from the API info location
// advertised by the platform, or the fallback when the location is empty
// or invalid.
func BaseURL(apiInfoLocation, fallback string) string {
	location := strings.TrimSpace(apiInfoLocation)
	if location == "" {
		return fallback
	}
	if !strings.Contains(location, "://") {
		location = "https://" + location
	}
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return fallback
	}
	return "https://" + u.Host
}

func keyName() string {
	return fmt.Sprintf("key-%d-%d", time.Now().UnixMilli(), keyCounter.Add(1))
}

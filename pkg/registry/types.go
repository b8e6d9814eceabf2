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

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	clientcmdv1 "k8s.io/client-go/tools/clientcmd/api/v1"
	"sigs.k8s.io/yaml"
)

// Metadata identifies a registry resource.
type Metadata struct {
	GUID string `json:"guid"`
}

// ServiceList is the page returned by the service instances query.
type ServiceList struct {
	TotalResults int64      `json:"total_results"`
	Resources    []Resource `json:"resources"`
}

// Resource is a service instance entry of a ServiceList.
type Resource struct {
	Metadata Metadata `json:"metadata"`
}

// ServiceKey is a credential issued by the registry for a cluster instance.
type ServiceKey struct {
	Metadata Metadata `json:"metadata"`
	Entity   struct {
		Name        string      `json:"name"`
		Credentials Credentials `json:"credentials"`
	} `json:"entity"`
}

// Credentials holds the kubeconfig of a ServiceKey. The kubeconfig is
// either a nested JSON document or a YAML string.
type Credentials struct {
	Kubeconfig json.RawMessage `json:"kubeconfig"`
}

type serviceKeyRequest struct {
	ServiceInstanceGUID string `json:"service_instance_guid"`
	Name                string `json:"name"`
}

// Cluster returns the API server URL of the first cluster and the token of
// the first user found in the kubeconfig.
func (c Credentials) Cluster() (server, token string, err error) {
	if len(c.Kubeconfig) == 0 {
		return "", "", errors.New("service key has no kubeconfig")
	}

	data := []byte(c.Kubeconfig)
	if strings.HasPrefix(strings.TrimSpace(string(data)), `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", "", fmt.Errorf("decoding kubeconfig failed, error: %w", err)
		}
		data = []byte(s)
	}

	kubeconfig := &clientcmdv1.Config{}
	if err := yaml.Unmarshal(data, kubeconfig); err != nil {
		return "", "", fmt.Errorf("decoding kubeconfig failed, error: %w", err)
	}

	if len(kubeconfig.Clusters) == 0 || kubeconfig.Clusters[0].Cluster.Server == "" {
		return "", "", errors.New("kubeconfig has no cluster server")
	}
	if len(kubeconfig.AuthInfos) == 0 || kubeconfig.AuthInfos[0].AuthInfo.Token == "" {
		return "", "", errors.New("kubeconfig has no user token")
	}

	return kubeconfig.Clusters[0].Cluster.Server, kubeconfig.AuthInfos[0].AuthInfo.Token, nil
}

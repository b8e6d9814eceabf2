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

package params

import (
	"fmt"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stefanprodan/kubebroker/pkg/catalog"
)

const (
	DefaultExposePort     = 31000
	DefaultServiceTimeout = 30 * time.Second
	DefaultStorage        = "128Mi"
	DefaultReplicas       = 1
)

// Defaults seed every InstanceParameters built by a Resolver.
type Defaults struct {
	Namespace          string
	URL                string
	AccessToken        string
	Name               string
	ExposePort         int
	ServiceTimeout     time.Duration
	Image              string
	Version            string
	StorageProvisioner string
}

// Resolver builds InstanceParameters from defaults, caller parameters and
// plan metadata.
type Resolver struct {
	defaults Defaults
	aliases  aliasTable
}

// NewResolver returns a Resolver for the given defaults. Zero values for
// the expose port and the service timeout are replaced with the built-in
// defaults.
func NewResolver(defaults Defaults) (*Resolver, error) {
	table, err := newAliasTable()
	if err != nil {
		return nil, err
	}
	if defaults.ExposePort == 0 {
		defaults.ExposePort = DefaultExposePort
	}
	if defaults.ServiceTimeout == 0 {
		defaults.ServiceTimeout = DefaultServiceTimeout
	}
	return &Resolver{defaults: defaults, aliases: table}, nil
}

// Resolve returns a new parameter set. Caller parameters override the
// defaults, then the plan cost entries set the storage size and replicas.
// Resolve does not validate the result, see InstanceParameters.Validate.
func (r *Resolver) Resolve(raw map[string]any, plan *catalog.Plan) (*InstanceParameters, error) {
	p := &InstanceParameters{
		Namespace:          r.defaults.Namespace,
		Name:               r.defaults.Name,
		AccessToken:        r.defaults.AccessToken,
		URL:                r.defaults.URL,
		ExposePort:         r.defaults.ExposePort,
		ServiceTimeout:     metav1.Duration{Duration: r.defaults.ServiceTimeout},
		Image:              r.defaults.Image,
		Version:            r.defaults.Version,
		StorageProvisioner: r.defaults.StorageProvisioner,
		Storage:            DefaultStorage,
		Replicas:           DefaultReplicas,
	}

	for key, value := range raw {
		set, ok := r.aliases.lookup(key)
		if !ok {
			continue
		}
		if err := set(p, key, value); err != nil {
			return nil, err
		}
	}

	if plan != nil {
		if err := applyPlan(p, plan); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func applyPlan(p *InstanceParameters, plan *catalog.Plan) error {
	for _, cost := range plan.Metadata.Costs {
		if cost.Storage != "" {
			p.Storage = cost.Storage
		}
		if cost.Replicas != "" {
			n, err := strconv.Atoi(cost.Replicas)
			if err != nil || n < 1 {
				return fmt.Errorf("plan %s has invalid replicas %q", plan.ID, cost.Replicas)
			}
			p.Replicas = n
		}
	}
	return nil
}

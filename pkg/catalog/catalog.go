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

// Package catalog holds the service offering advertised to the marketplace.
package catalog

import "strings"

const (
	DefaultServiceID = "mongodb"

	CurrencyUSD  = "usd"
	UnitMonthly  = "MONTHLY"
	DefaultPlan  = "default"
	GoldPlan     = "gold"
	PlatinumPlan = "platinum"
)

// Catalog is the document returned by the marketplace catalog endpoint.
type Catalog struct {
	Services []Service `json:"services"`
}

// Service describes a service offering and its plans.
type Service struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Bindable       bool           `json:"bindable"`
	PlanUpdateable bool           `json:"plan_updateable"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Plans          []Plan         `json:"plans"`
}

// Plan is a sizing option of a service.
type Plan struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Free        bool         `json:"free"`
	Bindable    bool         `json:"bindable"`
	Metadata    PlanMetadata `json:"metadata"`
}

// PlanMetadata carries the cost entries from which the storage size
// and the replica count of an instance are derived.
type PlanMetadata struct {
	Costs   []Cost   `json:"costs"`
	Bullets []string `json:"bullets,omitempty"`
}

// Cost is a single plan cost entry.
type Cost struct {
	Amount   map[string]float64 `json:"amount"`
	Unit     string             `json:"unit"`
	Storage  string             `json:"storage,omitempty"`
	Replicas string             `json:"replicas,omitempty"`
}

// New returns the catalog with the MongoDB service and its three plans.
// Plan IDs are prefixed with the service ID.
func New(serviceID string) *Catalog {
	if serviceID == "" {
		serviceID = DefaultServiceID
	}

	plans := []Plan{
		newPlan(serviceID, DefaultPlan, "This is a default mongo free plan", true, 0, "128Mi", "1",
			"128Mi Storage (enforced)", "Single instance"),
		newPlan(serviceID, GoldPlan, "This is a paid mongo plan", false, 100, "1Gi", "3",
			"1Gi Storage (enforced)", "3 instances"),
		newPlan(serviceID, PlatinumPlan, "This is a paid premium mongo plan", false, 500, "10Gi", "5",
			"10Gi Storage (enforced)", "5 instances"),
	}

	return &Catalog{
		Services: []Service{
			{
				ID:             serviceID,
				Name:           serviceID,
				Description:    "MongoDB on-demand instances on Kubernetes",
				Bindable:       true,
				PlanUpdateable: true,
				Tags:           []string{"mongodb", "document"},
				Metadata: map[string]any{
					"displayName":         "MongoDB",
					"longDescription":     "MongoDB Service",
					"providerDisplayName": "kubebroker",
					"shareable":           true,
				},
				Plans: plans,
			},
		},
	}
}

func newPlan(serviceID, name, description string, free bool, amount float64, storage, replicas string, bullets ...string) Plan {
	return Plan{
		ID:          serviceID + name,
		Name:        name,
		Description: description,
		Free:        free,
		Bindable:    true,
		Metadata: PlanMetadata{
			Costs: []Cost{
				{
					Amount:   map[string]float64{CurrencyUSD: amount},
					Unit:     UnitMonthly,
					Storage:  storage,
					Replicas: replicas,
				},
			},
			Bullets: bullets,
		},
	}
}

// FindPlan looks up a plan by ID. Plan IDs are matched case-insensitively.
// An empty serviceID matches any service.
func (c *Catalog) FindPlan(serviceID, planID string) (*Plan, bool) {
	for i := range c.Services {
		svc := &c.Services[i]
		if serviceID != "" && svc.ID != serviceID {
			continue
		}
		for j := range svc.Plans {
			if strings.EqualFold(svc.Plans[j].ID, planID) {
				return &svc.Plans[j], true
			}
		}
	}
	return nil, false
}

// HasService reports whether the catalog advertises the given service ID.
func (c *Catalog) HasService(serviceID string) bool {
	for _, svc := range c.Services {
		if svc.ID == serviceID {
			return true
		}
	}
	return false
}

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

package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stefanprodan/kubebroker/pkg/inventory"
	"github.com/stefanprodan/kubebroker/pkg/params"
	"github.com/stefanprodan/kubebroker/pkg/registry"
)

// Provision validates the request and queues the provisioning workflow.
// Parameters supplied by the caller are validated before the request is
// accepted, delegated requests are validated after the cluster credentials
// are resolved.
func (b *Broker) Provision(ctx context.Context, req *ProvisionRequest) error {
	plan, ok := b.catalog.FindPlan(req.ServiceID, req.PlanID)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownPlan, req.ServiceID, req.PlanID)
	}

	exists, err := b.instanceExists(ctx, req.InstanceID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrInstanceExists, req.InstanceID)
	}

	p, err := b.resolver.Resolve(req.Parameters, plan)
	if err != nil {
		return err
	}

	if p.Delegated() {
		p.RegistryURL = registry.BaseURL(req.APIInfoLocation, b.registryURL)
	} else if err := p.Validate(); err != nil {
		return err
	}

	record := inventory.NewInstanceRecord(req.InstanceID)
	record.ServiceID = req.ServiceID
	record.PlanID = plan.ID
	record.OrganizationGUID = req.OrganizationGUID
	record.SpaceGUID = req.SpaceGUID
	record.Parameters = req.Parameters

	return b.submit(provisionOperation, req.InstanceID, func(ctx context.Context, log *zap.SugaredLogger) error {
		return b.provision(ctx, record, p, log)
	})
}

func (b *Broker) provision(ctx context.Context, record *inventory.InstanceRecord, p *params.InstanceParameters, log *zap.SugaredLogger) error {
	if p.Delegated() {
		if err := b.registry.Resolve(ctx, p); err != nil {
			return fmt.Errorf("resolving cluster %s failed, error: %w", p.ClusterName, err)
		}
	}

	if err := p.Validate(); err != nil {
		b.revokeKey(ctx, p, log)
		return err
	}

	changeSet, err := b.resources.CreateAll(ctx, p)
	logChangeSet(log, changeSet)
	if err != nil {
		b.revokeKey(ctx, p, log)
		return err
	}

	ready, err := b.resources.WaitReady(ctx, p)
	if err != nil {
		return fmt.Errorf("waiting for %s/%s failed, error: %w", p.Namespace, p.Name, err)
	}
	if !ready {
		return fmt.Errorf("%w: %s/%s after %s", ErrNotReady, p.Namespace, p.Name, p.Timeout())
	}

	exists, err := b.db.DatabaseExists(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("querying database %s failed, error: %w", record.ID, err)
	}
	if exists {
		log.Infow("dropping stale database", "database", record.ID)
		if err := b.db.DeleteDatabase(ctx, record.ID); err != nil {
			return fmt.Errorf("dropping database %s failed, error: %w", record.ID, err)
		}
	}
	if err := b.db.CreateDatabase(ctx, record.ID); err != nil {
		return fmt.Errorf("creating database %s failed, error: %w", record.ID, err)
	}

	record.Instance = *p
	if err := b.records.SaveInstance(ctx, record); err != nil {
		return fmt.Errorf("saving instance record failed, error: %w", err)
	}

	return nil
}

// Deprovision queues the deprovisioning workflow of a recorded instance.
func (b *Broker) Deprovision(ctx context.Context, req *DeprovisionRequest) error {
	record, err := b.getInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}

	return b.submit(deprovisionOperation, req.InstanceID, func(ctx context.Context, log *zap.SugaredLogger) error {
		return b.deprovision(ctx, record, log)
	})
}

// deprovision removes the database and the record, then deletes the
// cluster resources best effort. Resource deletion failures are logged and
// don't fail the operation.
func (b *Broker) deprovision(ctx context.Context, record *inventory.InstanceRecord, log *zap.SugaredLogger) error {
	if err := b.db.DeleteDatabase(ctx, record.ID); err != nil {
		return fmt.Errorf("dropping database %s failed, error: %w", record.ID, err)
	}

	if err := b.records.DeleteInstance(ctx, record.ID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
		return fmt.Errorf("deleting instance record failed, error: %w", err)
	}

	p := record.Instance.DeepCopy()
	changeSet := b.resources.DeleteAll(ctx, p)
	logChangeSet(log, changeSet)

	if p.AutoMode {
		b.revokeKey(ctx, p, log)
	}

	return nil
}

// Update replaces the plan and the parameters of a recorded instance.
// The cluster resources are left untouched.
func (b *Broker) Update(ctx context.Context, req *UpdateRequest) error {
	record, err := b.getInstance(ctx, req.InstanceID)
	if err != nil {
		return err
	}

	if req.PlanID != "" {
		serviceID := req.ServiceID
		if serviceID == "" {
			serviceID = record.ServiceID
		}
		plan, ok := b.catalog.FindPlan(serviceID, req.PlanID)
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrUnknownPlan, serviceID, req.PlanID)
		}
		record.PlanID = plan.ID
	}
	if req.Parameters != nil {
		record.Parameters = req.Parameters
	}

	now := metav1.NewTime(time.Now().UTC().Truncate(time.Second))
	record.UpdatedAt = &now

	if err := b.records.SaveInstance(ctx, record); err != nil {
		return fmt.Errorf("saving instance record failed, error: %w", err)
	}

	b.log.Infow("instance updated", "instance", record.ID, "plan", record.PlanID)
	return nil
}

// Instances returns the recorded instances.
func (b *Broker) Instances(ctx context.Context) ([]*inventory.InstanceRecord, error) {
	return b.records.ListInstances(ctx)
}

func (b *Broker) getInstance(ctx context.Context, id string) (*inventory.InstanceRecord, error) {
	record, err := b.records.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

func (b *Broker) instanceExists(ctx context.Context, id string) (bool, error) {
	_, err := b.records.GetInstance(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, inventory.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *Broker) revokeKey(ctx context.Context, p *params.InstanceParameters, log *zap.SugaredLogger) {
	if p.ServiceKeyGUID == "" {
		return
	}
	if err := b.registry.RevokeKey(ctx, p); err != nil {
		log.Warnw("service key revocation failed", "key", p.ServiceKeyGUID, "error", err)
		return
	}
	log.Infow("service key revoked", "key", p.ServiceKeyGUID)
}

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

// Package broker implements the service instance and binding operations
// of the MongoDB service broker.
//
// Provisioning and deprovisioning are asynchronous: the request is
// validated, an operation is recorded as in progress and the workflow is
// queued on the worker pool. The platform polls the operation state until
// it becomes terminal.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stefanprodan/kubebroker/pkg/catalog"
	"github.com/stefanprodan/kubebroker/pkg/credstore"
	"github.com/stefanprodan/kubebroker/pkg/inventory"
	"github.com/stefanprodan/kubebroker/pkg/metrics"
	"github.com/stefanprodan/kubebroker/pkg/operation"
	"github.com/stefanprodan/kubebroker/pkg/params"
	"github.com/stefanprodan/kubebroker/pkg/registry"
	"github.com/stefanprodan/kubebroker/pkg/resmgr"
	"github.com/stefanprodan/kubebroker/pkg/worker"
)

const (
	provisionOperation   = "provision"
	deprovisionOperation = "deprovision"
)

// DatabaseAdmin manages the databases and users backing the instances.
type DatabaseAdmin interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	DeleteDatabase(ctx context.Context, name string) error
	CreateUser(ctx context.Context, database, username, password string) error
	DeleteUser(ctx context.Context, database, username string) error
	ConnectionString(database, username, password string) string
}

// Options holds the collaborators of a Broker.
type Options struct {
	Catalog     *catalog.Catalog
	Resolver    *params.Resolver
	Registry    *registry.Client
	RegistryURL string
	Resources   *resmgr.ResourceManager
	Records     *inventory.Storage
	Credentials *credstore.Store
	Database    DatabaseAdmin
	Operations  operation.Store
	Pool        *worker.Pool
	Log         *zap.SugaredLogger
}

// Broker serves the instance and binding operations.
type Broker struct {
	catalog     *catalog.Catalog
	resolver    *params.Resolver
	registry    *registry.Client
	registryURL string
	resources   *resmgr.ResourceManager
	records     *inventory.Storage
	credentials *credstore.Store
	db          DatabaseAdmin
	operations  operation.Store
	pool        *worker.Pool
	log         *zap.SugaredLogger
}

// New returns a Broker for the given options.
func New(opts Options) *Broker {
	return &Broker{
		catalog:     opts.Catalog,
		resolver:    opts.Resolver,
		registry:    opts.Registry,
		registryURL: opts.RegistryURL,
		resources:   opts.Resources,
		records:     opts.Records,
		credentials: opts.Credentials,
		db:          opts.Database,
		operations:  opts.Operations,
		pool:        opts.Pool,
		log:         opts.Log,
	}
}

// Catalog returns the advertised services.
func (b *Broker) Catalog() *catalog.Catalog {
	return b.catalog
}

// LastOperation returns the state of the last operation of the instance.
// Terminal states are reported once.
func (b *Broker) LastOperation(ctx context.Context, instanceID string) (*operation.Status, error) {
	status, ok := b.operations.Get(instanceID)
	if !ok {
		return nil, ErrOperationNotFound
	}
	return &status, nil
}

// submit records the operation as in progress and queues the workflow.
func (b *Broker) submit(op, instanceID string, workflow func(ctx context.Context, log *zap.SugaredLogger) error) error {
	log := b.log.With("operation", op, "instance", instanceID, "id", uuid.NewString())

	b.operations.Begin(instanceID)
	err := b.pool.Submit(op+"/"+instanceID, func(ctx context.Context) {
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s workflow panicked: %v", op, r)
			}
			b.complete(op, instanceID, start, err, log)
		}()
		err = workflow(ctx, log)
	})
	if err != nil {
		b.operations.Complete(instanceID, operation.Status{State: operation.Failed, Description: err.Error()})
		return err
	}

	log.Infow("operation accepted")
	return nil
}

func (b *Broker) complete(op, instanceID string, start time.Time, err error, log *zap.SugaredLogger) {
	status := operation.Status{State: operation.Succeeded}
	if err != nil {
		status = operation.Status{State: operation.Failed, Description: err.Error()}
		log.Errorw("operation failed", "error", err, "duration", time.Since(start).String())
	} else {
		log.Infow("operation succeeded", "duration", time.Since(start).String())
	}

	b.operations.Complete(instanceID, status)
	metrics.Operations.WithLabelValues(op, string(status.State)).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func logChangeSet(log *zap.SugaredLogger, changeSet *resmgr.ChangeSet) {
	if changeSet == nil {
		return
	}
	for _, entry := range changeSet.Entries {
		if entry.Action == string(resmgr.FailedAction) {
			log.Warnw(entry.String(), "subject", entry.Subject)
			continue
		}
		log.Infow(entry.String(), "subject", entry.Subject)
	}
}

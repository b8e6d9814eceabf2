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

	utilrand "k8s.io/apimachinery/pkg/util/rand"

	"github.com/stefanprodan/kubebroker/pkg/inventory"
)

const (
	passwordLength = 25

	// CredentialsURIKey is the Secret key holding the connection string.
	CredentialsURIKey = "uri"
	// SecretRefKey is the credentials field holding the Secret reference.
	SecretRefKey = "secret-ref"
)

// Bind creates a database user for the application and stores the
// connection string in a Secret. The response references the Secret.
func (b *Broker) Bind(ctx context.Context, req *BindRequest) (*BindResponse, error) {
	instance, err := b.getInstance(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}

	_, err = b.records.GetBinding(ctx, req.BindingID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrBindingExists, req.BindingID)
	case !errors.Is(err, inventory.ErrNotFound):
		return nil, err
	}

	password := utilrand.String(passwordLength)
	if err := b.db.CreateUser(ctx, instance.ID, req.BindingID, password); err != nil {
		return nil, fmt.Errorf("creating database user failed, error: %w", err)
	}

	appGUID := req.ApplicationGUID()
	ref, err := b.credentials.Put(ctx, req.BindingID, appGUID, map[string]string{
		CredentialsURIKey: b.db.ConnectionString(instance.ID, req.BindingID, password),
	})
	if err != nil {
		b.cleanupBinding(ctx, instance.ID, req.BindingID)
		return nil, err
	}

	record := inventory.NewBindingRecord(req.BindingID, instance.ID)
	record.AppGUID = appGUID
	record.CredentialRef = ref
	if err := b.records.SaveBinding(ctx, record); err != nil {
		b.cleanupBinding(ctx, instance.ID, req.BindingID)
		return nil, fmt.Errorf("saving binding record failed, error: %w", err)
	}

	b.log.Infow("binding created", "instance", instance.ID, "binding", req.BindingID, "secret", ref)
	return &BindResponse{
		Credentials: map[string]interface{}{SecretRefKey: ref},
	}, nil
}

// Unbind removes the database user, the credentials Secret and the record
// of a binding.
func (b *Broker) Unbind(ctx context.Context, req *UnbindRequest) error {
	record, err := b.records.GetBinding(ctx, req.BindingID)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBindingNotFound, req.BindingID)
		}
		return err
	}

	if err := b.db.DeleteUser(ctx, record.InstanceID, record.ID); err != nil {
		return fmt.Errorf("deleting database user failed, error: %w", err)
	}
	if err := b.credentials.Delete(ctx, record.ID); err != nil {
		return err
	}
	if err := b.records.DeleteBinding(ctx, record.ID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
		return fmt.Errorf("deleting binding record failed, error: %w", err)
	}

	b.log.Infow("binding deleted", "instance", record.InstanceID, "binding", record.ID)
	return nil
}

// cleanupBinding removes the user and credentials of a binding that could
// not be recorded, so that the bind can be retried.
func (b *Broker) cleanupBinding(ctx context.Context, instanceID, bindingID string) {
	if err := b.db.DeleteUser(ctx, instanceID, bindingID); err != nil {
		b.log.Warnw("deleting database user failed", "instance", instanceID, "binding", bindingID, "error", err)
	}
	if err := b.credentials.Delete(ctx, bindingID); err != nil {
		b.log.Warnw("deleting credentials failed", "instance", instanceID, "binding", bindingID, "error", err)
	}
}

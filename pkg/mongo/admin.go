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

// Package mongo administers the databases and users of the shared
// MongoDB deployment backing the service instances.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// infoCollection is created in every instance database so that the
// database exists before any user writes to it.
const infoCollection = "kubebroker_info"

// Options holds the connection settings of the admin client.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	AuthDB   string
	Timeout  time.Duration
}

func (o Options) address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o Options) authDB() string {
	if o.AuthDB == "" {
		return "admin"
	}
	return o.AuthDB
}

// Admin creates and drops databases and users.
type Admin struct {
	client *mongo.Client
	opts   Options
}

// Connect opens a client to the MongoDB deployment and verifies the connection.
func Connect(ctx context.Context, opts Options) (*Admin, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	clientOpts := options.Client().
		SetHosts([]string{opts.address()}).
		SetConnectTimeout(opts.Timeout).
		SetServerSelectionTimeout(opts.Timeout).
		SetAppName("kubebroker")
	if opts.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username:   opts.Username,
			Password:   opts.Password,
			AuthSource: opts.authDB(),
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect failed, error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping failed, error: %w", err)
	}

	return &Admin{client: client, opts: opts}, nil
}

// Close disconnects the client.
func (a *Admin) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// DatabaseExists reports whether the named database exists.
func (a *Admin) DatabaseExists(ctx context.Context, name string) (bool, error) {
	names, err := a.client.ListDatabaseNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, fmt.Errorf("listing databases failed, error: %w", err)
	}
	return len(names) > 0, nil
}

// CreateDatabase creates the named database.
func (a *Admin) CreateDatabase(ctx context.Context, name string) error {
	if err := a.client.Database(name).CreateCollection(ctx, infoCollection); err != nil {
		return fmt.Errorf("creating database %s failed, error: %w", name, err)
	}
	return nil
}

// DeleteDatabase drops the named database.
func (a *Admin) DeleteDatabase(ctx context.Context, name string) error {
	if err := a.client.Database(name).Drop(ctx); err != nil {
		return fmt.Errorf("dropping database %s failed, error: %w", name, err)
	}
	return nil
}

// CreateUser creates a user with read and write access to the database.
func (a *Admin) CreateUser(ctx context.Context, database, username, password string) error {
	cmd := bson.D{
		{Key: "createUser", Value: username},
		{Key: "pwd", Value: password},
		{Key: "roles", Value: bson.A{
			bson.D{{Key: "role", Value: "readWrite"}, {Key: "db", Value: database}},
		}},
	}
	if err := a.client.Database(database).RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("creating user %s failed, error: %w", username, err)
	}
	return nil
}

// DeleteUser drops the user from the database. Missing users are ignored.
func (a *Admin) DeleteUser(ctx context.Context, database, username string) error {
	err := a.client.Database(database).RunCommand(ctx, bson.D{{Key: "dropUser", Value: username}}).Err()
	if err != nil && !isUserNotFound(err) {
		return fmt.Errorf("dropping user %s failed, error: %w", username, err)
	}
	return nil
}

// ConnectionString returns the URI used by applications to connect to
// the database with the given user.
func (a *Admin) ConnectionString(database, username, password string) string {
	return ConnectionString(a.opts.address(), database, username, password)
}

// ConnectionString formats a MongoDB URI authenticating against the database.
func ConnectionString(address, database, username, password string) string {
	u := url.URL{
		Scheme:   "mongodb",
		User:     url.UserPassword(username, password),
		Host:     address,
		Path:     "/" + database,
		RawQuery: url.Values{"authSource": []string{database}}.Encode(),
	}
	return u.String()
}

// isUserNotFound matches the UserNotFound server error.
func isUserNotFound(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 11 || cmdErr.Name == "UserNotFound"
	}
	return false
}

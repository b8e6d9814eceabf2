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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stefanprodan/kubebroker/pkg/broker"
	"github.com/stefanprodan/kubebroker/pkg/catalog"
	"github.com/stefanprodan/kubebroker/pkg/config"
	"github.com/stefanprodan/kubebroker/pkg/credstore"
	"github.com/stefanprodan/kubebroker/pkg/manifest"
	"github.com/stefanprodan/kubebroker/pkg/metrics"
	"github.com/stefanprodan/kubebroker/pkg/mongo"
	"github.com/stefanprodan/kubebroker/pkg/operation"
	"github.com/stefanprodan/kubebroker/pkg/params"
	"github.com/stefanprodan/kubebroker/pkg/registry"
	"github.com/stefanprodan/kubebroker/pkg/resmgr"
	"github.com/stefanprodan/kubebroker/pkg/server"
	"github.com/stefanprodan/kubebroker/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Open Service Broker API.",
	Example: `  # Serve the broker API with the settings from '$HOME/.kubebroker/config'
  kubebroker serve

  # Override the listen address and the number of workers
  kubebroker serve --address :9090 --workers 20
`,
	RunE: runServeCmd,
}

type serveFlags struct {
	address string
	workers int
}

var serveArgs serveFlags

func init() {
	serveCmd.Flags().StringVar(&serveArgs.address, "address", "",
		"The address the broker API listens on, overrides the config value.")
	serveCmd.Flags().IntVar(&serveArgs.workers, "workers", 0,
		"The number of concurrent provisioning workflows, overrides the config value.")
	rootCmd.AddCommand(serveCmd)
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	if serveArgs.address != "" {
		cfg.Broker.Address = serveArgs.address
	}
	if serveArgs.workers > 0 {
		cfg.Broker.Workers = serveArgs.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kubeClient, err := newKubeClient(kubeconfigArgs)
	if err != nil {
		return fmt.Errorf("client init failed: %w", err)
	}
	records, err := newRecordStorage(kubeClient, cfg)
	if err != nil {
		return err
	}

	resolver, err := params.NewResolver(cfg.ResolverDefaults())
	if err != nil {
		return err
	}
	renderer, err := manifest.NewRenderer()
	if err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, rootArgs.timeout)
	defer cancel()
	admin, err := mongo.Connect(connectCtx, mongo.Options{
		Host:     cfg.MongoDB.Host,
		Port:     cfg.MongoDB.Port,
		Username: cfg.MongoDB.Username,
		Password: cfg.MongoDB.Password,
		AuthDB:   cfg.MongoDB.AuthDB,
		Timeout:  rootArgs.timeout,
	})
	if err != nil {
		return fmt.Errorf("mongodb connection failed: %w", err)
	}
	defer func() {
		if err := admin.Close(context.Background()); err != nil {
			logger.Warnw("closing the mongodb connection failed", "error", err)
		}
	}()

	pool := worker.NewPool(worker.Options{
		Workers:         cfg.Broker.Workers,
		MetricsProvider: metrics.NewWorkqueueProvider(prometheus.DefaultRegisterer),
	}, logger.Named("worker"))

	b := broker.New(broker.Options{
		Catalog:     catalog.New(cfg.Service.ID),
		Resolver:    resolver,
		Registry:    registry.NewClient(cfg.Registry.Insecure, logger.Named("registry")),
		RegistryURL: cfg.Registry.URL,
		Resources:   resmgr.NewResourceManager(renderer, resmgr.NewClientFactory(cfg.Service.Insecure), logger.Named("resources")),
		Records:     records,
		Credentials: &credstore.Store{
			Client:    kubeClient,
			Namespace: cfg.Storage.Namespace,
			Owner:     config.DefaultOwner,
		},
		Database:   admin,
		Operations: operation.NewMemoryStore(),
		Pool:       pool,
		Log:        logger.Named("broker"),
	})

	srv := &http.Server{
		Addr: cfg.Broker.Address,
		Handler: server.New(b, server.Options{
			Username: cfg.Broker.Username,
			Password: cfg.Broker.Password,
		}, logger.Named("server")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("broker API listening", "address", cfg.Broker.Address, "workers", cfg.Broker.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infow("shutting down", "timeout", cfg.Broker.ShutdownTimeout.Duration.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Broker.ShutdownTimeout.Duration)
		defer cancel()

		srvErr := srv.Shutdown(shutdownCtx)
		poolErr := pool.Shutdown(shutdownCtx)
		return errors.Join(srvErr, poolErr)
	})

	return g.Wait()
}

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

// Package server exposes the broker over the Open Service Broker HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stefanprodan/kubebroker/pkg/broker"
	"github.com/stefanprodan/kubebroker/pkg/catalog"
	"github.com/stefanprodan/kubebroker/pkg/operation"
)

const (
	headerContentType     = "Content-Type"
	headerAPIInfoLocation = "X-Api-Info-Location"

	contentTypeJSON = "application/json"
)

// Broker serves the catalog, instance and binding operations.
type Broker interface {
	Catalog() *catalog.Catalog
	Provision(ctx context.Context, req *broker.ProvisionRequest) error
	Update(ctx context.Context, req *broker.UpdateRequest) error
	Deprovision(ctx context.Context, req *broker.DeprovisionRequest) error
	LastOperation(ctx context.Context, instanceID string) (*operation.Status, error)
	Bind(ctx context.Context, req *broker.BindRequest) (*broker.BindResponse, error)
	Unbind(ctx context.Context, req *broker.UnbindRequest) error
}

// Options configures the HTTP server.
type Options struct {
	// Username and Password protect the /v2 API with basic auth,
	// authentication is disabled when both are empty.
	Username string
	Password string
	// Gatherer serves /metrics, the default registry when nil.
	Gatherer prometheus.Gatherer
}

// Server routes the OSB API requests to the broker.
type Server struct {
	broker Broker
	opts   Options
	log    *zap.SugaredLogger
}

// New returns a Server for the given broker.
func New(b Broker, opts Options, log *zap.SugaredLogger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{broker: b, opts: opts, log: log}
}

// Handler returns the root handler with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	s.Register(router)

	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))
	return handlers.CustomLoggingHandler(io.Discard, recovery(router), s.logRequest)
}

// Register adds the routes to the router.
func (s *Server) Register(router *mux.Router) {
	router.Methods(http.MethodGet).
		Path("/healthz").
		HandlerFunc(statusOK)

	router.Methods(http.MethodGet).
		Path("/metrics").
		Handler(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	v2 := router.PathPrefix("/v2").Subrouter()
	v2.Use(s.basicAuth)

	v2.Methods(http.MethodGet).
		Path("/catalog").
		HandlerFunc(s.getCatalog)

	v2.Methods(http.MethodPut).
		Path("/service_instances/{instance_id}").
		HandlerFunc(s.provision)

	v2.Methods(http.MethodPatch).
		Path("/service_instances/{instance_id}").
		HandlerFunc(s.update)

	v2.Methods(http.MethodDelete).
		Path("/service_instances/{instance_id}").
		HandlerFunc(s.deprovision)

	v2.Methods(http.MethodGet).
		Path("/service_instances/{instance_id}/last_operation").
		HandlerFunc(s.lastOperation)

	v2.Methods(http.MethodPut).
		Path("/service_instances/{instance_id}/service_bindings/{binding_id}").
		HandlerFunc(s.bind)

	v2.Methods(http.MethodDelete).
		Path("/service_instances/{instance_id}/service_bindings/{binding_id}").
		HandlerFunc(s.unbind)
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Username == "" && s.opts.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok || !secureCompare(username, s.opts.Username) || !secureCompare(password, s.opts.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="kubebroker"`)
			s.errorEncoder(w, http.StatusUnauthorized, "", "invalid broker credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.Debugw("request served",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"size", p.Size,
		"duration", time.Since(p.TimeStamp).String())
}

// statusOK returns the status code 200
func statusOK(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type recoveryLogger struct {
	log *zap.SugaredLogger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.log.Error(fmt.Sprintln(args...))
}

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

package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stefanprodan/kubebroker/pkg/broker"
	"github.com/stefanprodan/kubebroker/pkg/params"
)

const (
	asyncRequiredError = "AsyncRequired"
	asyncRequiredDesc  = "This service plan requires client support for asynchronous service operations."
)

// ErrorResponse is the OSB representation of an error.
type ErrorResponse struct {
	Error       string `json:"error,omitempty"`
	Description string `json:"description"`
}

type operationResponse struct {
	Operation string `json:"operation"`
}

type lastOperationResponse struct {
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	s.encodeJSON(w, http.StatusOK, s.broker.Catalog())
}

func (s *Server) provision(w http.ResponseWriter, r *http.Request) {
	if !acceptsIncomplete(r) {
		s.errorEncoder(w, http.StatusUnprocessableEntity, asyncRequiredError, asyncRequiredDesc)
		return
	}

	req := &broker.ProvisionRequest{}
	if err := decodeJSON(r, req); err != nil {
		s.errorEncoder(w, http.StatusBadRequest, "", err.Error())
		return
	}
	req.InstanceID = mux.Vars(r)["instance_id"]
	req.APIInfoLocation = r.Header.Get(headerAPIInfoLocation)

	if err := s.broker.Provision(r.Context(), req); err != nil {
		s.encodeError(w, err)
		return
	}
	s.encodeJSON(w, http.StatusAccepted, operationResponse{Operation: "provision"})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	req := &broker.UpdateRequest{}
	if err := decodeJSON(r, req); err != nil {
		s.errorEncoder(w, http.StatusBadRequest, "", err.Error())
		return
	}
	req.InstanceID = mux.Vars(r)["instance_id"]

	if err := s.broker.Update(r.Context(), req); err != nil {
		s.encodeError(w, err)
		return
	}
	s.encodeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) deprovision(w http.ResponseWriter, r *http.Request) {
	if !acceptsIncomplete(r) {
		s.errorEncoder(w, http.StatusUnprocessableEntity, asyncRequiredError, asyncRequiredDesc)
		return
	}

	query := r.URL.Query()
	req := &broker.DeprovisionRequest{
		InstanceID: mux.Vars(r)["instance_id"],
		ServiceID:  query.Get("service_id"),
		PlanID:     query.Get("plan_id"),
	}
	if err := s.broker.Deprovision(r.Context(), req); err != nil {
		s.encodeError(w, err)
		return
	}
	s.encodeJSON(w, http.StatusAccepted, operationResponse{Operation: "deprovision"})
}

func (s *Server) lastOperation(w http.ResponseWriter, r *http.Request) {
	status, err := s.broker.LastOperation(r.Context(), mux.Vars(r)["instance_id"])
	if err != nil {
		s.encodeError(w, err)
		return
	}
	s.encodeJSON(w, http.StatusOK, lastOperationResponse{
		State:       string(status.State),
		Description: status.Description,
	})
}

func (s *Server) bind(w http.ResponseWriter, r *http.Request) {
	req := &broker.BindRequest{}
	if err := decodeJSON(r, req); err != nil {
		s.errorEncoder(w, http.StatusBadRequest, "", err.Error())
		return
	}
	vars := mux.Vars(r)
	req.InstanceID = vars["instance_id"]
	req.BindingID = vars["binding_id"]

	resp, err := s.broker.Bind(r.Context(), req)
	if err != nil {
		if errors.Is(err, broker.ErrInstanceNotFound) {
			s.errorEncoder(w, http.StatusNotFound, "", err.Error())
			return
		}
		s.encodeError(w, err)
		return
	}
	s.encodeJSON(w, http.StatusCreated, resp)
}

func (s *Server) unbind(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	vars := mux.Vars(r)
	req := &broker.UnbindRequest{
		InstanceID: vars["instance_id"],
		BindingID:  vars["binding_id"],
		ServiceID:  query.Get("service_id"),
		PlanID:     query.Get("plan_id"),
	}
	if err := s.broker.Unbind(r.Context(), req); err != nil {
		s.encodeError(w, err)
		return
	}
	s.encodeJSON(w, http.StatusOK, struct{}{})
}

// statusCode maps the broker errors to HTTP status codes.
func statusCode(err error) int {
	var verr *params.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, broker.ErrUnknownPlan):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrInstanceExists), errors.Is(err, broker.ErrBindingExists):
		return http.StatusConflict
	case errors.Is(err, broker.ErrInstanceNotFound),
		errors.Is(err, broker.ErrBindingNotFound),
		errors.Is(err, broker.ErrOperationNotFound):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) encodeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		s.log.Errorw("request failed", "error", err)
	}
	s.errorEncoder(w, code, "", err.Error())
}

func (s *Server) errorEncoder(w http.ResponseWriter, code int, errorCode, msg string) {
	s.encodeJSON(w, code, ErrorResponse{Error: errorCode, Description: msg})
}

// encodeJSON writes the JSON encoding of response with the given status code.
func (s *Server) encodeJSON(w http.ResponseWriter, code int, response interface{}) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Errorw("encoding response failed", "error", err)
	}
}

// decodeJSON decodes the request body, an empty body is accepted.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func acceptsIncomplete(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("accepts_incomplete"))
	return err == nil && v
}

func secureCompare(given, actual string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(actual)) == 1
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package io impl.go builds the HTTP interface of the ledger. Each route
// decodes its call and hands it to a Receive function.
package io

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/internal"
	"gitlab.com/elixxir/plume/oracle"
	"gitlab.com/elixxir/plume/permissioning"
)

// CallerHeader names the caller of a request for the policy
const CallerHeader = "X-Submitter"

// Largest request body accepted
const maxBodySize = 1 << 20

// Jobs handed to an external oracle per call when no limit is given
const defaultJobLimit = 16

// JobSource hands queued decryption jobs to an external oracle
type JobSource interface {
	Take(max int) []*oracle.Job
}

// NewImplementation routes the ledger API to the given instance. The oracle
// routes are only mounted when jobs is set, for nodes answered by an
// external oracle.
func NewImplementation(instance *internal.Instance, jobs JobSource) http.Handler {
	r := chi.NewRouter()

	r.Post("/records", serve(func(r *http.Request) (interface{}, error) {
		msg := &SubmitMessage{}
		if err := decode(r, msg); err != nil {
			return nil, err
		}
		return ReceiveSubmit(r.Context(), msg, instance, callerOf(r))
	}))
	r.Get("/records/{id}", serve(func(r *http.Request) (interface{}, error) {
		id, err := recordID(r)
		if err != nil {
			return nil, err
		}
		return ReceiveGetRecord(id, instance)
	}))
	r.Post("/records/{id}/decrypt", serve(func(r *http.Request) (interface{}, error) {
		id, err := recordID(r)
		if err != nil {
			return nil, err
		}
		return ReceiveRecordDecryption(r.Context(), id, instance, callerOf(r))
	}))
	r.Get("/records/{id}/analysis", serve(func(r *http.Request) (interface{}, error) {
		id, err := recordID(r)
		if err != nil {
			return nil, err
		}
		return ReceiveReadAnalysis(id, instance), nil
	}))

	r.Get("/groups", serve(func(r *http.Request) (interface{}, error) {
		return instance.GetGroupKeys()
	}))
	r.Post("/groups/{key}/accumulate", serve(func(r *http.Request) (interface{}, error) {
		msg := &AccumulateMessage{}
		if err := decode(r, msg); err != nil {
			return nil, err
		}
		return ReceiveAccumulate(r.Context(), chi.URLParam(r, "key"), msg,
			instance, callerOf(r))
	}))
	r.Post("/groups/{key}/decrypt", serve(func(r *http.Request) (interface{}, error) {
		return ReceiveGroupDecryption(r.Context(), chi.URLParam(r, "key"),
			instance, callerOf(r))
	}))
	r.Get("/groups/{key}/analysis", serve(func(r *http.Request) (interface{}, error) {
		return ReceiveReadGroupAnalysis(chi.URLParam(r, "key"), instance)
	}))

	r.Get("/events", serve(func(r *http.Request) (interface{}, error) {
		after, err := queryUint(r, "after")
		if err != nil {
			return nil, err
		}
		limit, err := queryUint(r, "limit")
		if err != nil {
			return nil, err
		}
		return ReceiveEvents(after, int(limit), instance)
	}))

	if jobs != nil {
		r.Get("/oracle/jobs", serve(func(r *http.Request) (interface{}, error) {
			limit, err := queryUint(r, "limit")
			if err != nil {
				return nil, err
			}
			if limit == 0 || limit > defaultJobLimit {
				limit = defaultJobLimit
			}
			return ReceiveJobRequest(int(limit), jobs), nil
		}))
		r.Post("/callbacks/record", serve(func(r *http.Request) (interface{}, error) {
			msg := &CallbackMessage{}
			if err := decode(r, msg); err != nil {
				return nil, err
			}
			return ReceiveRecordCallback(r.Context(), msg, instance)
		}))
		r.Post("/callbacks/group", serve(func(r *http.Request) (interface{}, error) {
			msg := &CallbackMessage{}
			if err := decode(r, msg); err != nil {
				return nil, err
			}
			return ReceiveGroupCallback(r.Context(), msg, instance)
		}))
	}

	jww.INFO.Printf("Ledger API routes built, external oracle: %v", jobs != nil)
	return r
}

// serve writes fn's result as JSON, or its error with a matching status
func serve(fn func(r *http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(errBadRequest, errMalformedBody+": %v", r.URL.Path, err)
	}
	return nil
}

func callerOf(r *http.Request) permissioning.Caller {
	return permissioning.Caller(r.Header.Get(CallerHeader))
}

func recordID(r *http.Request) (uint64, error) {
	param := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, errMalformedParam, "record id", param)
	}
	return id, nil
}

// Missing parameters read as 0
func queryUint(r *http.Request, name string) (uint64, error) {
	param := r.URL.Query().Get(name)
	if param == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, errMalformedParam, name, param)
	}
	return n, nil
}

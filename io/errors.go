////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package io

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/internal"
)

// errBadRequest marks malformed calls
var errBadRequest = errors.New("bad request")

const errMalformedBody = "Could not parse body of %s"
const errMalformedParam = "Could not parse %s %q"

// statusOf maps ledger errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, internal.ErrEmptyGroupKey):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, internal.ErrUnknownRecord), errors.Is(err, internal.ErrUnknownGroup):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrAlreadyAnalyzed),
		errors.Is(err, internal.ErrAlreadyProcessed),
		errors.Is(err, internal.ErrInvalidRequest):
		return http.StatusConflict
	case errors.Is(err, internal.ErrProofVerificationFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		jww.WARN.Printf("Could not write response: %+v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		jww.ERROR.Printf("%s %s failed: %+v", r.Method, r.URL.Path, err)
	} else {
		jww.DEBUG.Printf("%s %s refused: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

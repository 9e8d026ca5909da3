////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

import (
	"github.com/pkg/errors"
	"gitlab.com/elixxir/plume/permissioning"
)

// Errors returned by the ledger operations. Each is wrapped with context and
// should be checked with errors.Is.
var (
	// ErrAlreadyAnalyzed is returned when decryption is requested for a
	// record whose result is already revealed
	ErrAlreadyAnalyzed = errors.New("record already analyzed")
	// ErrAlreadyProcessed is returned when a callback arrives for a target
	// that is already revealed
	ErrAlreadyProcessed = errors.New("target already processed")
	// ErrInvalidRequest is returned when a callback's request id is not
	// pending for that kind of target, or its target no longer exists
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProofVerificationFailed is returned when a callback's proof does not
	// authenticate its cleartexts. The request stays pending.
	ErrProofVerificationFailed = errors.New("proof verification failed")
	// ErrUnknownGroup is returned for operations on a group no submission
	// created
	ErrUnknownGroup = errors.New("unknown group")
	// ErrEmptyGroupKey is returned for submissions without a group key
	ErrEmptyGroupKey = errors.New("empty group key")
	// ErrUnknownRecord is returned when decryption is requested for a record
	// id that was never issued
	ErrUnknownRecord = errors.New("unknown record")
	// ErrUnauthorized is returned when the policy refuses the caller
	ErrUnauthorized = permissioning.ErrUnauthorized
)

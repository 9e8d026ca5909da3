////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

import (
	"time"

	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/request"
	"gitlab.com/elixxir/plume/permissioning"
	"gitlab.com/elixxir/plume/storage"
)

// Oracle accepts ciphertexts for decryption and returns the id its later
// callback will carry
type Oracle interface {
	RequestDecryption(kind request.Kind, handles []cryptops.Handle) (uint64, error)
}

// Resubmitter is an Oracle that can queue a request again under the id it
// already assigned. Requests still pending in storage when an Instance is
// created are resubmitted, since the oracle's queue does not outlive the
// process.
type Resubmitter interface {
	Resubmit(requestID uint64, kind request.Kind, handles []cryptops.Handle) error
}

// Definition holds everything an Instance is built from. It is filled in by
// cmd from the node's params.
type Definition struct {
	// Persistent ledger state
	Storage *storage.Storage
	// Homomorphic arithmetic over ciphertext handles
	Evaluator cryptops.Evaluator
	// Authenticates oracle callbacks
	Verifier cryptops.Verifier
	// Decrypts ciphertexts out of band
	Oracle Oracle
	// Decides who may submit, accumulate and request decryption. Nil allows
	// everyone.
	Policy permissioning.Policy

	// Pending requests older than this expire. Zero disables expiry.
	RequestTTL time.Duration
	// How often the sweeper looks for expired requests
	SweepInterval time.Duration
	// Buffer of each event subscription
	EventBuffer int

	// Source of ledger timestamps, time.Now when nil
	Clock func() time.Time
}

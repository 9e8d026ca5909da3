////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package permissioning decides which callers may act on the ledger. The
// core consults a Policy before every submission, accumulation and
// decryption request.
package permissioning

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned, wrapped, when a Policy refuses a caller
var ErrUnauthorized = errors.New("unauthorized")

// Caller identifies whoever invoked an operation
type Caller string

// Action is a policy checked operation
type Action uint8

const (
	Submit = Action(iota)
	Accumulate
	RequestDecryption
	NUM_ACTION
)

// Stringer to get the name of the action, primarily for for error prints
func (a Action) String() string {
	switch a {
	case Submit:
		return "submit"
	case Accumulate:
		return "accumulate"
	case RequestDecryption:
		return "requestDecryption"
	default:
		return fmt.Sprintf("UNKNOWN ACTION: %d", a)
	}
}

// Policy authorizes a caller to perform an action on a group. A nil error
// grants the action.
type Policy interface {
	Authorize(caller Caller, action Action, groupKey string) error
}

// AllowAll grants every action to every caller
type AllowAll struct{}

// Authorize implements Policy
func (AllowAll) Authorize(Caller, Action, string) error {
	return nil
}

func unauthorized(caller Caller, action Action, groupKey string) error {
	return errors.WithMessagef(ErrUnauthorized, "%q may not %s on group %q",
		caller, action, groupKey)
}

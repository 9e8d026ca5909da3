////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package state

import (
	"fmt"
)

// Status is the lifecycle position of one decryption request
type Status uint32

const (
	// UNREGISTERED ids were never issued by the oracle, or are not yet
	// stored
	UNREGISTERED = Status(iota)
	// PENDING requests wait for their callback
	PENDING
	// CONSUMED requests had their callback accepted or were invalidated
	// by a reveal of their target
	CONSUMED
	// EXPIRED requests outlived the configured time to live
	EXPIRED
	NUM_STATUS
)

// Stringer to get the name of the status, primarily for for error prints
func (s Status) String() string {
	switch s {
	case UNREGISTERED:
		return "UNREGISTERED"
	case PENDING:
		return "PENDING"
	case CONSUMED:
		return "CONSUMED"
	case EXPIRED:
		return "EXPIRED"
	default:
		return fmt.Sprintf("UNKNOWN STATUS: %d", s)
	}
}

// Final reports whether no transition leaves s
func (s Status) Final() bool {
	return s == CONSUMED || s == EXPIRED
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conf

import "time"

// Modes of the decryption oracle
const (
	// The node decrypts with the key shares in its own key file
	OracleInternal = "internal"
	// Answers arrive on the callback routes of the ledger API
	OracleExternal = "external"
)

// Oracle contains the decryption oracle config params
type Oracle struct {
	Mode          string
	Workers       int
	QueueSize     int
	CallbackDelay time.Duration
}

// Requests contains the config params for pending decryption requests
type Requests struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

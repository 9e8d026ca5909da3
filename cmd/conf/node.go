////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conf

// Contains Node config params
type Node struct {
	Paths            Paths
	ListeningAddress string // Address the ledger API listens on (with port)
}

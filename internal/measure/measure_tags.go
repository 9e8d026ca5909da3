////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package measure

// measure_tags.go contains the string constants for our measure tags

// Constants for Tag strings used by Measure()
const (
	TagRequested   = "Requested"
	TagRestored    = "Restored From Storage"
	TagCallback    = "Callback Received"
	TagVerified    = "Proof Verified"
	TagRejected    = "Proof Rejected"
	TagRevealed    = "Revealed"
	TagInvalidated = "Invalidated By Reveal"
	TagExpired     = "Expired"
)

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package io

// messages.go holds the JSON bodies of the ledger API. Handles and proofs
// travel as base64 strings.

import (
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal"
	"gitlab.com/elixxir/plume/oracle"
)

// SubmitMessage is the body of POST /records
type SubmitMessage struct {
	GroupKey string          `json:"groupKey"`
	So2      cryptops.Handle `json:"so2"`
	Co2      cryptops.Handle `json:"co2"`
	H2s      cryptops.Handle `json:"h2s"`
	Altitude cryptops.Handle `json:"altitude"`
}

// SubmitResponse carries the id of a stored record
type SubmitResponse struct {
	RecordID uint64 `json:"recordId"`
}

// AccumulateMessage is the body of POST /groups/{key}/accumulate
type AccumulateMessage struct {
	X cryptops.Handle `json:"x"`
	Y cryptops.Handle `json:"y"`
}

// DecryptionResponse carries the oracle's id for a decryption request
type DecryptionResponse struct {
	RequestID uint64 `json:"requestId"`
}

// CallbackMessage is the body of POST /callbacks/{record,group}, sent by an
// external oracle
type CallbackMessage struct {
	RequestID  uint64 `json:"requestId"`
	Cleartexts []byte `json:"cleartexts"`
	Proof      []byte `json:"proof"`
}

// RecordResponse is the encrypted view of a stored record
type RecordResponse struct {
	RecordID uint64          `json:"recordId"`
	GroupKey string          `json:"groupKey"`
	So2      cryptops.Handle `json:"so2"`
	Co2      cryptops.Handle `json:"co2"`
	H2s      cryptops.Handle `json:"h2s"`
	Altitude cryptops.Handle `json:"altitude"`
}

// GroupAnalysisResponse reports a group's latest revealed totals
type GroupAnalysisResponse struct {
	internal.GroupResult
	Revealed bool `json:"revealed"`
}

// EventsResponse is one page of the event log
type EventsResponse struct {
	Events []internal.Event `json:"events"`
}

// JobsResponse carries the jobs handed to an external oracle
type JobsResponse struct {
	Jobs []*oracle.Job `json:"jobs"`
}

// ErrorResponse is the body of every failed call
type ErrorResponse struct {
	Error string `json:"error"`
}

// Ack is the body of calls that return nothing
type Ack struct{}

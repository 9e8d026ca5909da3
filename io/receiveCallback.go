////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package io

// receiveCallback.go contains the handlers for answers from an external
// oracle. The proof in each answer is what authenticates it.

import (
	"context"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/internal"
)

// ReceiveJobRequest hands up to limit queued jobs to an external oracle.
// Jobs taken and never answered expire with their requests.
func ReceiveJobRequest(limit int, jobs JobSource) *JobsResponse {
	return &JobsResponse{Jobs: jobs.Take(limit)}
}

// ReceiveRecordCallback delivers a record decryption to the ledger
func ReceiveRecordCallback(ctx context.Context, msg *CallbackMessage,
	instance *internal.Instance) (*Ack, error) {
	err := instance.OnRecordDecrypted(ctx, msg.RequestID, msg.Cleartexts, msg.Proof)
	if err != nil {
		jww.WARN.Printf("Refused record callback for request %d: %v",
			msg.RequestID, err)
		return nil, err
	}
	return &Ack{}, nil
}

// ReceiveGroupCallback delivers a group decryption to the ledger
func ReceiveGroupCallback(ctx context.Context, msg *CallbackMessage,
	instance *internal.Instance) (*Ack, error) {
	err := instance.OnGroupDecrypted(ctx, msg.RequestID, msg.Cleartexts, msg.Proof)
	if err != nil {
		jww.WARN.Printf("Refused group callback for request %d: %v",
			msg.RequestID, err)
		return nil, err
	}
	return &Ack{}, nil
}

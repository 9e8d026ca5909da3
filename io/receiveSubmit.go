////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package io

// receiveSubmit.go contains the handlers for storing records and adding to
// group sums

import (
	"context"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/internal"
	"gitlab.com/elixxir/plume/permissioning"
)

// ReceiveSubmit stores an encrypted observation
func ReceiveSubmit(ctx context.Context, msg *SubmitMessage,
	instance *internal.Instance, caller permissioning.Caller) (*SubmitResponse, error) {
	id, err := instance.Submit(ctx, caller, msg.GroupKey, msg.So2, msg.Co2,
		msg.H2s, msg.Altitude)
	if err != nil {
		return nil, err
	}
	jww.TRACE.Printf("Caller %q submitted record %d", caller, id)
	return &SubmitResponse{RecordID: id}, nil
}

// ReceiveAccumulate adds an encrypted pair into a group's sums
func ReceiveAccumulate(ctx context.Context, groupKey string, msg *AccumulateMessage,
	instance *internal.Instance, caller permissioning.Caller) (*Ack, error) {
	if err := instance.Accumulate(ctx, caller, groupKey, msg.X, msg.Y); err != nil {
		return nil, err
	}
	return &Ack{}, nil
}

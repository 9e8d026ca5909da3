////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package io

// receiveDecryption.go contains the handlers that send ciphertexts to the
// oracle

import (
	"context"

	"gitlab.com/elixxir/plume/internal"
	"gitlab.com/elixxir/plume/permissioning"
)

// ReceiveRecordDecryption asks the oracle to decrypt a record
func ReceiveRecordDecryption(ctx context.Context, id uint64,
	instance *internal.Instance, caller permissioning.Caller) (*DecryptionResponse, error) {
	requestID, err := instance.RequestRecordDecryption(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return &DecryptionResponse{RequestID: requestID}, nil
}

// ReceiveGroupDecryption asks the oracle to decrypt a group's sums
func ReceiveGroupDecryption(ctx context.Context, groupKey string,
	instance *internal.Instance, caller permissioning.Caller) (*DecryptionResponse, error) {
	requestID, err := instance.RequestGroupDecryption(ctx, caller, groupKey)
	if err != nil {
		return nil, err
	}
	return &DecryptionResponse{RequestID: requestID}, nil
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cryptops

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// CleartextWidth is the encoded size of one decrypted value
const CleartextWidth = 4

// EncodeCleartexts packs values as consecutive big-endian 32-bit integers
func EncodeCleartexts(values []uint32) []byte {
	b := make([]byte, CleartextWidth*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(b[i*CleartextWidth:], v)
	}
	return b
}

// DecodeCleartexts unpacks exactly n values from b
func DecodeCleartexts(b []byte, n int) ([]uint32, error) {
	if len(b) != n*CleartextWidth {
		return nil, errors.Errorf("Cleartext payload is %d bytes, "+
			"expected %d values of %d bytes", len(b), n, CleartextWidth)
	}
	values := make([]uint32, n)
	for i := range values {
		values[i] = binary.BigEndian.Uint32(b[i*CleartextWidth:])
	}
	return values, nil
}

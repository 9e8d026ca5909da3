////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cryptops holds the homomorphic operations the ledger core consumes:
// opaque ciphertext handles, homomorphic addition over them, and the proof
// bundles the decryption oracle attaches to every plaintext it reports.
//
// The core never looks inside a Handle. It stores handles, hands them to an
// Evaluator to be summed, and forwards them to the oracle to be decrypted.
package cryptops

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Handle is an opaque reference to an encrypted integer
type Handle []byte

// Evaluator performs arithmetic over handles without decrypting them
type Evaluator interface {
	// Add returns a handle to the encrypted sum of a and b
	Add(a, b Handle) (Handle, error)
	// EncryptZero returns a fresh encryption of zero, used to seed sums
	EncryptZero() (Handle, error)
}

// field number of the repeated handle list
const handleListField = protowire.Number(1)

// EncodeHandles serializes an ordered list of handles so it can be persisted
// alongside a decryption request.
func EncodeHandles(handles []Handle) []byte {
	var b []byte
	for _, h := range handles {
		b = protowire.AppendTag(b, handleListField, protowire.BytesType)
		b = protowire.AppendBytes(b, h)
	}
	return b
}

// DecodeHandles is the inverse of EncodeHandles. Handle order is preserved.
func DecodeHandles(b []byte) ([]Handle, error) {
	var handles []Handle
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Errorf("Malformed handle list tag: %v",
				protowire.ParseError(n))
		}
		b = b[n:]

		if num != handleListField || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Errorf("Malformed handle list field %d: %v",
					num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Errorf("Malformed handle in list: %v",
				protowire.ParseError(n))
		}
		h := make(Handle, len(v))
		copy(h, v)
		handles = append(handles, h)
		b = b[n:]
	}
	return handles, nil
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cryptops

import (
	"crypto/ed25519"

	"github.com/niclabs/tcpaillier"
	"github.com/pkg/errors"
)

// Verifier checks the authenticity of the cleartexts reported for a request
type Verifier interface {
	Verify(requestID uint64, handles []Handle, cleartexts, proof []byte) error
}

// ThresholdVerifier accepts a callback only when the oracle's signature over
// the bundle is valid and the bundled decryption shares recombine, under the
// public key, to exactly the claimed cleartexts
type ThresholdVerifier struct {
	pk        *tcpaillier.PubKey
	oracleKey ed25519.PublicKey
}

// NewThresholdVerifier builds a verifier from the public half of a key file
func NewThresholdVerifier(keys *KeyFile) *ThresholdVerifier {
	return &ThresholdVerifier{
		pk:        keys.PublicKey,
		oracleKey: keys.OraclePublicKey,
	}
}

// Verify implements Verifier
func (v *ThresholdVerifier) Verify(requestID uint64, handles []Handle,
	cleartexts, proof []byte) error {
	values, err := DecodeCleartexts(cleartexts, len(handles))
	if err != nil {
		return err
	}

	p, err := UnmarshalProof(proof)
	if err != nil {
		return err
	}

	if len(p.Shares) != len(handles) {
		return errors.Errorf("Proof carries shares for %d handles, "+
			"request has %d", len(p.Shares), len(handles))
	}

	digest := Digest(requestID, handles, cleartexts, p.marshalShares())
	if !ed25519.Verify(v.oracleKey, digest, p.Signature) {
		return errors.New("Oracle signature does not match the bundle")
	}

	for i, shares := range p.Shares {
		m, err := Combine(v.pk, shares)
		if err != nil {
			return errors.WithMessagef(err, "Handle %d", i)
		}
		if m != values[i] {
			return errors.Errorf("Handle %d decrypts to a different value "+
				"than claimed", i)
		}
	}

	return nil
}

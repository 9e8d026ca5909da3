////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cryptops

// paillier.go implements the Evaluator over threshold Paillier ciphertexts

import (
	"math/big"

	"github.com/niclabs/tcpaillier"
	"github.com/pkg/errors"
)

// Paillier evaluates handles which are big-endian threshold Paillier
// ciphertexts under a single public key
type Paillier struct {
	pk *tcpaillier.PubKey
	// N^2, the ciphertext space for s = 1
	nSquared *big.Int
}

// NewPaillier builds an Evaluator around the given public key
func NewPaillier(pk *tcpaillier.PubKey) *Paillier {
	return &Paillier{
		pk:       pk,
		nSquared: new(big.Int).Mul(pk.N, pk.N),
	}
}

// PublicKey returns the key handles are encrypted under
func (p *Paillier) PublicKey() *tcpaillier.PubKey {
	return p.pk
}

// Encrypt encrypts a 32-bit value. Submitters use this to build the handles
// they deposit; the core itself only ever encrypts zero.
func (p *Paillier) Encrypt(value uint32) (Handle, error) {
	c, _, err := p.pk.Encrypt(new(big.Int).SetUint64(uint64(value)))
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not encrypt %d", value)
	}
	return Handle(c.Bytes()), nil
}

// EncryptZero returns a randomized encryption of zero
func (p *Paillier) EncryptZero() (Handle, error) {
	return p.Encrypt(0)
}

// Add returns the homomorphic sum of two handles
func (p *Paillier) Add(a, b Handle) (Handle, error) {
	ca, err := p.ciphertext(a)
	if err != nil {
		return nil, err
	}
	cb, err := p.ciphertext(b)
	if err != nil {
		return nil, err
	}

	sum, err := p.pk.Add(ca, cb)
	if err != nil {
		return nil, errors.WithMessage(err, "Homomorphic addition failed")
	}
	return Handle(sum.Bytes()), nil
}

// Ciphertext returns the integer form of a handle after checking that it lies
// in the ciphertext space of the key
func (p *Paillier) Ciphertext(h Handle) (*big.Int, error) {
	return p.ciphertext(h)
}

func (p *Paillier) ciphertext(h Handle) (*big.Int, error) {
	if len(h) == 0 {
		return nil, errors.New("Empty ciphertext handle")
	}
	c := new(big.Int).SetBytes(h)
	if c.Sign() == 0 || c.Cmp(p.nSquared) >= 0 {
		return nil, errors.Errorf("Ciphertext handle of %d bytes is outside "+
			"the key's ciphertext space", len(h))
	}
	return c, nil
}

// PartialDecrypt computes the decryption share of a handle for one key share
func PartialDecrypt(share *tcpaillier.KeyShare, h Handle) (*tcpaillier.DecryptionShare, error) {
	if len(h) == 0 {
		return nil, errors.New("Empty ciphertext handle")
	}
	ds, err := share.PartialDecrypt(new(big.Int).SetBytes(h))
	if err != nil {
		return nil, errors.WithMessage(err, "Key share could not partially "+
			"decrypt handle")
	}
	return ds, nil
}

// Combine recombines decryption shares into the 32-bit cleartext. Plaintexts
// wider than 32 bits wrap modulo 2^32, matching the width of the values the
// oracle reports.
func Combine(pk *tcpaillier.PubKey, shares []*tcpaillier.DecryptionShare) (uint32, error) {
	if len(shares) == 0 {
		return 0, errors.New("No decryption shares to combine")
	}
	m, err := pk.CombineShares(shares...)
	if err != nil {
		return 0, errors.WithMessage(err, "Could not combine decryption shares")
	}
	return uint32(new(big.Int).And(m, mask32).Uint64()), nil
}

var mask32 = new(big.Int).SetUint64(0xFFFFFFFF)

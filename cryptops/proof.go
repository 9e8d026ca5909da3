////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cryptops

// proof.go contains the proof bundle the oracle attaches to a decryption
// callback and its wire format.
//
// Wire layout (protobuf encoding, no generated code):
//   Proof       { 1: repeated HandleShares (message), 2: signature (bytes) }
//   HandleShares{ 1: repeated Share (message) }
//   Share       { 1: index (varint), 2: ci (bytes) }

import (
	"crypto/ed25519"
	"encoding/binary"
	"math/big"

	"github.com/niclabs/tcpaillier"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/encoding/protowire"
)

// domain separation tag mixed into every signed digest
const proofDomain = "plume/decryption-proof/v1"

const (
	proofSharesField    = protowire.Number(1)
	proofSignatureField = protowire.Number(2)
	handleSharesField   = protowire.Number(1)
	shareIndexField     = protowire.Number(1)
	shareCiField        = protowire.Number(2)
)

// Proof binds a set of cleartexts to the handles they decrypt. Shares holds,
// per handle and in handle order, the decryption shares of every key share.
type Proof struct {
	Shares    [][]*tcpaillier.DecryptionShare
	Signature []byte
}

// Sign fills in the signature over the request, handles, cleartexts and the
// proof's shares
func (p *Proof) Sign(key ed25519.PrivateKey, requestID uint64,
	handles []Handle, cleartexts []byte) {
	p.Signature = ed25519.Sign(key, Digest(requestID, handles, cleartexts,
		p.marshalShares()))
}

// Marshal encodes the proof in its wire format
func (p *Proof) Marshal() []byte {
	b := p.marshalShares()
	b = protowire.AppendTag(b, proofSignatureField, protowire.BytesType)
	return protowire.AppendBytes(b, p.Signature)
}

func (p *Proof) marshalShares() []byte {
	var b []byte
	for _, shares := range p.Shares {
		var hs []byte
		for _, ds := range shares {
			var s []byte
			s = protowire.AppendTag(s, shareIndexField, protowire.VarintType)
			s = protowire.AppendVarint(s, uint64(ds.Index))
			s = protowire.AppendTag(s, shareCiField, protowire.BytesType)
			s = protowire.AppendBytes(s, ds.Ci.Bytes())

			hs = protowire.AppendTag(hs, handleSharesField, protowire.BytesType)
			hs = protowire.AppendBytes(hs, s)
		}
		b = protowire.AppendTag(b, proofSharesField, protowire.BytesType)
		b = protowire.AppendBytes(b, hs)
	}
	return b
}

// UnmarshalProof decodes a proof from its wire format
func UnmarshalProof(b []byte) (*Proof, error) {
	p := &Proof{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case proofSharesField:
			shares, err := unmarshalHandleShares(v)
			if err != nil {
				return err
			}
			p.Shares = append(p.Shares, shares)
		case proofSignatureField:
			p.Signature = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "Malformed proof")
	}
	return p, nil
}

func unmarshalHandleShares(b []byte) ([]*tcpaillier.DecryptionShare, error) {
	var shares []*tcpaillier.DecryptionShare
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != handleSharesField {
			return nil
		}
		ds, err := unmarshalShare(v)
		if err != nil {
			return err
		}
		shares = append(shares, ds)
		return nil
	})
	return shares, err
}

func unmarshalShare(b []byte) (*tcpaillier.DecryptionShare, error) {
	ds := &tcpaillier.DecryptionShare{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == shareIndexField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if v > 0xFF {
				return nil, errors.Errorf("Share index %d out of range", v)
			}
			ds.Index = uint8(v)
			b = b[n:]
		case num == shareCiField && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			ds.Ci = new(big.Int).SetBytes(v)
			b = b[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if ds.Ci == nil {
		return nil, errors.New("Decryption share has no value")
	}
	return ds, nil
}

// consumeFields walks length-delimited fields, skipping everything else
func consumeFields(b []byte,
	fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		if err := fn(num, typ, v); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// Digest is the message the oracle signs for a callback
func Digest(requestID uint64, handles []Handle, cleartexts, shares []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(proofDomain))

	var id [8]byte
	binary.BigEndian.PutUint64(id[:], requestID)
	h.Write(id[:])

	writeField(h, EncodeHandles(handles))
	writeField(h, cleartexts)
	writeField(h, shares)
	return h.Sum(nil)
}

type writer interface {
	Write(p []byte) (int, error)
}

// length prefixed so field boundaries cannot be shifted
func writeField(w writer, b []byte) {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(b)))
	w.Write(l[:])
	w.Write(b)
}

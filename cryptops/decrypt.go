////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cryptops

import (
	"github.com/niclabs/tcpaillier"
	"github.com/pkg/errors"
)

// DecryptAndProve decrypts every handle with all key shares in the key file
// and returns the encoded cleartexts with a signed proof bundle. It needs the
// secret half of the key file and is only run by the oracle.
func DecryptAndProve(keys *KeyFile, requestID uint64,
	handles []Handle) (cleartexts, proof []byte, err error) {
	if len(keys.Shares) == 0 || keys.OracleKey == nil {
		return nil, nil, errors.New("Key file holds no decryption material")
	}

	values := make([]uint32, len(handles))
	p := &Proof{Shares: make([][]*tcpaillier.DecryptionShare, len(handles))}

	for i, h := range handles {
		shares := make([]*tcpaillier.DecryptionShare, len(keys.Shares))
		for j, ks := range keys.Shares {
			shares[j], err = PartialDecrypt(ks, h)
			if err != nil {
				return nil, nil, errors.WithMessagef(err, "Handle %d", i)
			}
		}

		values[i], err = Combine(keys.PublicKey, shares)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "Handle %d", i)
		}
		p.Shares[i] = shares
	}

	cleartexts = EncodeCleartexts(values)
	p.Sign(keys.OracleKey, requestID, handles, cleartexts)
	return cleartexts, p.Marshal(), nil
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cryptops

// keys.go contains generation and persistence of the key material shared by
// the ledger core and the decryption oracle

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"

	"github.com/niclabs/tcpaillier"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// DefaultKeyBits is the modulus size used when none is configured
const DefaultKeyBits = 2048

// MinShares is the fewest shares tcpaillier can split a key into
const MinShares = 2

// KeyFile holds the threshold Paillier key, its shares, and the key the
// oracle signs proof bundles with. The core only needs PublicKey and
// OracleKey.Public(); the shares and signing key belong to the oracle.
type KeyFile struct {
	PublicKey *tcpaillier.PubKey     `json:"publicKey"`
	Shares    []*tcpaillier.KeyShare `json:"shares,omitempty"`
	OracleKey ed25519.PrivateKey     `json:"oracleKey,omitempty"`
	// Public half of OracleKey, kept so a stripped file still verifies
	OraclePublicKey ed25519.PublicKey `json:"oraclePublicKey"`
}

// GenerateKeys creates a key of the given modulus size split into numShares
// shares, all of which are needed to decrypt, plus a fresh oracle signing key
func GenerateKeys(bits int, numShares uint8) (*KeyFile, error) {
	if numShares < MinShares {
		return nil, errors.Errorf("Cannot generate a key with %d shares, "+
			"at least %d are needed", numShares, MinShares)
	}

	shares, pk, err := tcpaillier.NewKey(bits, 1, numShares, numShares)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not generate %d-bit "+
			"threshold key", bits)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.WithMessage(err, "Could not generate oracle key")
	}

	return &KeyFile{
		PublicKey:       pk,
		Shares:          shares,
		OracleKey:       priv,
		OraclePublicKey: pub,
	}, nil
}

// Public returns a copy of the key file without any secret material
func (k *KeyFile) Public() *KeyFile {
	return &KeyFile{
		PublicKey:       k.PublicKey,
		OraclePublicKey: k.OraclePublicKey,
	}
}

// Save writes the key file as JSON, readable only by the owner
func (k *KeyFile) Save(path string) error {
	data, err := json.MarshalIndent(k, "", "\t")
	if err != nil {
		return errors.WithMessage(err, "Could not serialize key file")
	}
	err = os.WriteFile(path, data, 0600)
	if err != nil {
		return errors.WithMessagef(err, "Could not write key file %s", path)
	}
	jww.INFO.Printf("Wrote key file with %d shares to %s", len(k.Shares), path)
	return nil
}

// LoadKeys reads a key file written by Save
func LoadKeys(path string) (*KeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not read key file %s", path)
	}

	k := &KeyFile{}
	err = json.Unmarshal(data, k)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not parse key file %s", path)
	}

	if k.PublicKey == nil || k.PublicKey.N == nil {
		return nil, errors.Errorf("Key file %s has no public key", path)
	}
	if len(k.OraclePublicKey) != ed25519.PublicKeySize {
		return nil, errors.Errorf("Key file %s has no oracle public key", path)
	}
	if k.OracleKey != nil && len(k.OracleKey) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("Key file %s has a malformed oracle key", path)
	}

	return k, nil
}

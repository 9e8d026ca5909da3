////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/cryptops"
)

var keyBits int
var keyShares uint8
var keyOut string
var publicKeyOut string

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().IntVarP(&keyBits, "bits", "b", cryptops.DefaultKeyBits,
		"Size of the Paillier modulus in bits")
	keygenCmd.Flags().Uint8VarP(&keyShares, "shares", "s", 3,
		"Number of key shares, all of which are needed to decrypt "+
			"(at least 2)")
	keygenCmd.Flags().StringVarP(&keyOut, "out", "o", "keys.json",
		"Where to write the full key file, for the oracle")
	keygenCmd.Flags().StringVarP(&publicKeyOut, "public", "p", "",
		"Where to write a key file without secrets, for nodes answered by "+
			"an external oracle")
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a threshold Paillier key and an oracle signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return generateKeys(keyBits, keyShares, keyOut, publicKeyOut)
	},
}

func generateKeys(bits int, shares uint8, out, publicOut string) error {
	jww.INFO.Printf("Generating a %d-bit key in %d shares, this can take "+
		"a while", bits, shares)
	keys, err := cryptops.GenerateKeys(bits, shares)
	if err != nil {
		return err
	}
	if err = keys.Save(out); err != nil {
		return err
	}
	if publicOut != "" {
		return keys.Public().Save(publicOut)
	}
	return nil
}

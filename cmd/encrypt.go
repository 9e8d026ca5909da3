////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/io"
)

var encryptKeys string
var encryptGroup string

func init() {
	rootCmd.AddCommand(encryptCmd)

	encryptCmd.Flags().StringVarP(&encryptKeys, "keys", "k", "keys.json",
		"Key file holding the public key")
	encryptCmd.Flags().StringVarP(&encryptGroup, "group", "g", "",
		"Print a record submission for this group from the four values "+
			"so2 co2 h2s altitude")
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt VALUE...",
	Short: "Encrypt unsigned 32-bit values into base64 ciphertext handles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := cryptops.LoadKeys(encryptKeys)
		if err != nil {
			return err
		}
		out, err := encryptValues(cryptops.NewPaillier(keys.PublicKey),
			encryptGroup, args)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

// encryptValues returns one base64 handle per line, or the JSON body of a
// record submission when group is set
func encryptValues(p *cryptops.Paillier, group string, args []string) (string, error) {
	handles := make([]cryptops.Handle, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return "", errors.Wrapf(err, "%q is not an unsigned 32-bit value", arg)
		}
		if handles[i], err = p.Encrypt(uint32(v)); err != nil {
			return "", err
		}
	}

	if group == "" {
		out := ""
		for i, h := range handles {
			if i > 0 {
				out += "\n"
			}
			out += base64.StdEncoding.EncodeToString(h)
		}
		return out, nil
	}

	if len(handles) != 4 {
		return "", errors.Errorf("A record needs so2, co2, h2s and altitude, "+
			"got %d values", len(handles))
	}
	data, err := json.Marshal(&io.SubmitMessage{
		GroupKey: group,
		So2:      handles[0],
		Co2:      handles[1],
		H2s:      handles[2],
		Altitude: handles[3],
	})
	return string(data), err
}

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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/io"
)

func TestEncryptValues(t *testing.T) {
	p := cryptops.NewPaillier(testKeys.PublicKey)

	out, err := encryptValues(p, "", []string{"3", "4"})
	if err != nil {
		t.Fatalf("encryptValues() errored: %+v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 handles, got %d", len(lines))
	}
	var handles []cryptops.Handle
	for _, l := range lines {
		h, err := base64.StdEncoding.DecodeString(l)
		if err != nil {
			t.Fatalf("Handle %q is not base64: %+v", l, err)
		}
		handles = append(handles, h)
	}

	sum, err := p.Add(handles[0], handles[1])
	if err != nil {
		t.Fatalf("Add() errored: %+v", err)
	}
	cleartexts, _, err := cryptops.DecryptAndProve(testKeys, 1,
		[]cryptops.Handle{sum})
	if err != nil {
		t.Fatalf("DecryptAndProve() errored: %+v", err)
	}
	values, _ := cryptops.DecodeCleartexts(cleartexts, 1)
	if values[0] != 7 {
		t.Errorf("Sum wrong\n\texpected: %v\n\treceived: %v", 7, values[0])
	}
}

func TestEncryptValues_Record(t *testing.T) {
	p := cryptops.NewPaillier(testKeys.PublicKey)

	out, err := encryptValues(p, "Etna", []string{"10", "20", "5", "9000"})
	if err != nil {
		t.Fatalf("encryptValues() errored: %+v", err)
	}
	msg := &io.SubmitMessage{}
	if err = json.Unmarshal([]byte(out), msg); err != nil {
		t.Fatalf("Output is not a submission: %+v", err)
	}
	if msg.GroupKey != "Etna" || len(msg.Altitude) == 0 {
		t.Errorf("Submission wrong: %+v", msg)
	}

	if _, err = encryptValues(p, "Etna", []string{"1", "2"}); err == nil {
		t.Errorf("A record with two values was accepted")
	}
	for _, bad := range []string{"-1", "4294967296", "ten"} {
		if _, err = encryptValues(p, "", []string{bad}); err == nil {
			t.Errorf("Value %q was accepted", bad)
		}
	}
}

func TestGenerateKeys(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "keys.json")
	public := filepath.Join(dir, "public.json")

	if err := generateKeys(512, 2, full, public); err != nil {
		t.Fatalf("generateKeys() errored: %+v", err)
	}

	k, err := cryptops.LoadKeys(full)
	if err != nil {
		t.Fatalf("LoadKeys() errored: %+v", err)
	}
	if len(k.Shares) != 2 || k.OracleKey == nil {
		t.Errorf("Full key file is missing secrets")
	}

	pub, err := cryptops.LoadKeys(public)
	if err != nil {
		t.Fatalf("LoadKeys() errored: %+v", err)
	}
	if len(pub.Shares) != 0 || pub.OracleKey != nil {
		t.Errorf("Public key file holds secrets")
	}
	if pub.PublicKey.N.Cmp(k.PublicKey.N) != 0 {
		t.Errorf("Public key files disagree")
	}

	for _, shares := range []uint8{0, 1} {
		path := filepath.Join(dir, fmt.Sprintf("short%d.json", shares))
		if err = generateKeys(512, shares, path, ""); err == nil {
			t.Errorf("A key with %d shares was generated", shares)
		}
		if _, err = os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("A key file was written for %d shares", shares)
		}
	}
}

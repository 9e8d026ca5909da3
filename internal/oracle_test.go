////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

import (
	"context"
	"testing"
	"time"

	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/state"
	"gitlab.com/elixxir/plume/oracle"
	"gitlab.com/elixxir/plume/storage"
)

// Runs records and a group through the in-process oracle end to end
func TestInstance_WithOracle(t *testing.T) {
	o, err := oracle.New(testKeys, oracle.Params{Workers: 2, QueueSize: 8})
	if err != nil {
		t.Fatalf("oracle.New() errored: %+v", err)
	}
	p := cryptops.NewPaillier(testKeys.PublicKey)
	i, err := CreateInstance(&Definition{
		Storage:   storage.NewMapStorage(),
		Evaluator: p,
		Verifier:  cryptops.NewThresholdVerifier(testKeys.Public()),
		Oracle:    o,
	})
	if err != nil {
		t.Fatalf("CreateInstance() errored: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = o.Start(ctx, i); err != nil {
		t.Fatalf("Start() errored: %+v", err)
	}
	defer func() {
		if err := o.Stop(5 * time.Second); err != nil {
			t.Errorf("Stop() errored: %+v", err)
		}
	}()

	encrypt := func(v uint32) cryptops.Handle {
		h, err := p.Encrypt(v)
		if err != nil {
			t.Fatalf("Encrypt(%d) errored: %+v", v, err)
		}
		return h
	}

	observations := []struct {
		values   [4]uint32
		expected AnalysisResult
	}{
		{[4]uint32{10, 20, 5, 9000}, AnalysisResult{6, 90, "aviation warning", true}},
		{[4]uint32{200, 150, 30, 100}, AnalysisResult{81, 20, "significant climate impact", true}},
		{[4]uint32{8, 4, 1, 8000}, AnalysisResult{3, 64, "monitor aviation corridors", true}},
	}

	var requests []uint64
	for _, obs := range observations {
		id, err := i.Submit(ctx, "station", "Etna", encrypt(obs.values[0]),
			encrypt(obs.values[1]), encrypt(obs.values[2]), encrypt(obs.values[3]))
		if err != nil {
			t.Fatalf("Submit() errored: %+v", err)
		}
		if err = i.Accumulate(ctx, "station", "Etna", encrypt(obs.values[0]),
			encrypt(obs.values[1])); err != nil {
			t.Fatalf("Accumulate() errored: %+v", err)
		}
		q, err := i.RequestRecordDecryption(ctx, "station", id)
		if err != nil {
			t.Fatalf("RequestRecordDecryption() errored: %+v", err)
		}
		requests = append(requests, q)
	}
	g, err := i.RequestGroupDecryption(ctx, "station", "Etna")
	if err != nil {
		t.Fatalf("RequestGroupDecryption() errored: %+v", err)
	}
	requests = append(requests, g)

	for _, q := range requests {
		s, err := i.WaitForRequest(q, 30*time.Second)
		if err != nil || s != state.CONSUMED {
			t.Fatalf("Request %d did not complete: %s, %+v", q, s, err)
		}
	}

	for n, obs := range observations {
		if got := i.ReadAnalysis(uint64(n) + 1); got != obs.expected {
			t.Errorf("Analysis of record %d wrong\n\texpected: %+v\n\treceived: %+v",
				n+1, obs.expected, got)
		}
	}

	group, ok, err := i.ReadGroupAnalysis("Etna")
	if err != nil || !ok {
		t.Fatalf("ReadGroupAnalysis() failed: %v, %+v", ok, err)
	}
	if group.TotalX != 218 || group.TotalY != 174 || group.Contributions != 3 {
		t.Errorf("Group totals wrong: %+v", group)
	}
}

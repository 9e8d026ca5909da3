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

	"github.com/pkg/errors"
	"gitlab.com/elixxir/plume/storage"
	"pgregory.net/rapid"
)

// Record ids count up from 1 and every request id is answered at most once,
// whatever order submissions, requests and answers arrive in
func TestInstance_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		o := newFakeOracle()
		i, err := CreateInstance(&Definition{
			Storage:   storage.NewMapStorage(),
			Evaluator: plainEvaluator{},
			Verifier:  plainVerifier{},
			Oracle:    o,
		})
		if err != nil {
			rt.Fatalf("CreateInstance() errored: %+v", err)
		}
		ctx := context.Background()

		var records uint64
		var issued []uint64
		pending := make(map[uint64]uint64)
		revealed := make(map[uint64]bool)
		answered := make(map[uint64]int)

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			switch rapid.SampledFrom([]string{"submit", "request",
				"answer"}).Draw(rt, "op") {
			case "submit":
				so2 := rapid.Uint32Range(0, 1000).Draw(rt, "so2")
				alt := rapid.Uint32Range(0, 20000).Draw(rt, "alt")
				id, err := i.Submit(ctx, "prop", "g", plain(so2), plain(1),
					plain(1), plain(alt))
				if err != nil {
					rt.Fatalf("Submit() errored: %+v", err)
				}
				if id != records+1 {
					rt.Fatalf("Record id wrong\n\texpected: %v\n\treceived: %v",
						records+1, id)
				}
				records = id

			case "request":
				if records == 0 {
					continue
				}
				id := rapid.Uint64Range(1, records+1).Draw(rt, "record")
				q, err := i.RequestRecordDecryption(ctx, "prop", id)
				switch {
				case id > records:
					if !errors.Is(err, ErrUnknownRecord) {
						rt.Fatalf("Request for unknown record %d: %+v", id, err)
					}
				case revealed[id]:
					if !errors.Is(err, ErrAlreadyAnalyzed) {
						rt.Fatalf("Request for revealed record %d: %+v", id, err)
					}
				case err != nil:
					rt.Fatalf("RequestRecordDecryption(%d) errored: %+v", id, err)
				default:
					issued = append(issued, q)
					pending[q] = id
				}

			case "answer":
				if len(issued) == 0 {
					continue
				}
				q := rapid.SampledFrom(issued).Draw(rt, "request")
				cleartexts, proof := plainAnswer(o.job(t, q))
				forged := rapid.Bool().Draw(rt, "forged")
				if forged {
					proof = []byte("forged")
				}

				err := i.OnRecordDecrypted(ctx, q, cleartexts, proof)
				rec, live := pending[q]
				switch {
				case !live:
					if !errors.Is(err, ErrInvalidRequest) {
						rt.Fatalf("Answer to finished request %d: %+v", q, err)
					}
				case forged:
					if !errors.Is(err, ErrProofVerificationFailed) {
						rt.Fatalf("Forged answer to %d: %+v", q, err)
					}
				case err != nil:
					rt.Fatalf("OnRecordDecrypted(%d) errored: %+v", q, err)
				default:
					answered[q]++
					revealed[rec] = true
					for other, r := range pending {
						if r == rec {
							delete(pending, other)
						}
					}
				}
			}
		}

		for q, n := range answered {
			if n > 1 {
				rt.Fatalf("Request %d was answered %d times", q, n)
			}
		}
		if i.GetRequestManager().Len() != len(pending) {
			rt.Fatalf("Pending requests wrong\n\texpected: %v\n\treceived: %v",
				len(pending), i.GetRequestManager().Len())
		}
		for id := range revealed {
			if !i.ReadAnalysis(id).Revealed {
				rt.Fatalf("Record %d is not revealed", id)
			}
			live, err := i.GetStorage().GetRecordRequests(id)
			if err != nil || len(live) != 0 {
				rt.Fatalf("Revealed record %d still has requests %v: %+v",
					id, live, err)
			}
		}
	})
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

// callbacks.go contains the oracle's entry points. Each verifies the
// answer to one pending request and consumes it exactly once.

import (
	"context"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/analysis"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/measure"
	"gitlab.com/elixxir/plume/internal/request"
	"gitlab.com/elixxir/plume/storage"
)

// Looks up a pending request of the given kind and the handles it was sent
// with. Must be called while holding mux.
func (i *Instance) pending(requestID uint64, kind request.Kind) (*request.Tracked,
	*storage.Request, []cryptops.Handle, error) {
	tracked, err := i.requests.Get(requestID)
	if err != nil {
		return nil, nil, nil, errors.WithMessagef(ErrInvalidRequest,
			"Request %d is %s", requestID, i.requests.Status(requestID))
	}
	if tracked.GetTarget().Kind != kind {
		return nil, nil, nil, errors.WithMessagef(ErrInvalidRequest,
			"Request %d decrypts a %s, not a %s", requestID,
			tracked.GetTarget().Kind, kind)
	}

	stored, err := i.storage.GetRequest(requestID)
	if storage.IsNotFound(err) {
		jww.ERROR.Printf("Request %d is tracked but not stored", requestID)
		return nil, nil, nil, errors.WithMessagef(ErrInvalidRequest,
			"Request %d", requestID)
	} else if err != nil {
		return nil, nil, nil, errors.WithMessagef(err,
			"Could not load request %d", requestID)
	}

	handles, err := cryptops.DecodeHandles(stored.Handles)
	if err != nil {
		return nil, nil, nil, errors.WithMessagef(err,
			"Stored handles of request %d are corrupt", requestID)
	}
	return tracked, stored, handles, nil
}

// Must be called while holding mux
func (i *Instance) verify(tracked *request.Tracked, handles []cryptops.Handle,
	cleartexts, proof []byte) error {
	tracked.Measure(measure.TagCallback)
	err := i.definition.Verifier.Verify(tracked.GetID(), handles, cleartexts, proof)
	if err != nil {
		tracked.Measure(measure.TagRejected)
		jww.WARN.Printf("Rejected answer to request %d: %+v", tracked.GetID(), err)
		return errors.Wrap(ErrProofVerificationFailed, err.Error())
	}
	tracked.Measure(measure.TagVerified)
	return nil
}

// OnRecordDecrypted accepts the oracle's answer to a record decryption:
// four big-endian uint32 cleartexts {so2, co2, h2s, altitude} and the proof
// that authenticates them. On success the record's scores are derived and
// revealed, and every other pending request for the record is invalidated.
func (i *Instance) OnRecordDecrypted(ctx context.Context, requestID uint64,
	cleartexts, proof []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	tracked, _, handles, err := i.pending(requestID, request.Record)
	if err != nil {
		return err
	}
	recordID := tracked.GetTarget().RecordID

	if _, err = i.storage.GetRecord(recordID); storage.IsNotFound(err) {
		return errors.WithMessagef(ErrInvalidRequest,
			"Record %d of request %d no longer exists", recordID, requestID)
	} else if err != nil {
		return errors.WithMessagef(err, "Could not look up record %d", recordID)
	}

	prior, err := i.storage.GetAnalysis(recordID)
	if err == nil && prior.Revealed {
		return errors.WithMessagef(ErrAlreadyProcessed, "Record %d", recordID)
	} else if err != nil && !storage.IsNotFound(err) {
		return errors.WithMessagef(err, "Could not look up analysis of %d", recordID)
	}

	if err = i.verify(tracked, handles, cleartexts, proof); err != nil {
		return err
	}

	values, err := cryptops.DecodeCleartexts(cleartexts, request.Record.Handles())
	if err != nil {
		// Verify already decoded them
		return errors.WithMessage(err, "Could not decode cleartexts")
	}
	scores := analysis.Derive(values[0], values[1], values[2], values[3])

	others, err := i.storage.GetRecordRequests(recordID)
	if err != nil {
		return errors.WithMessagef(err, "Could not list requests for record %d", recordID)
	}

	now := i.clock()
	result := &storage.Analysis{
		RecordId:      recordID,
		ClimateScore:  scores.Climate,
		AviationScore: scores.Aviation,
		Advisory:      scores.Advisory,
		Revealed:      true,
		RevealedAt:    now,
	}

	events := []Event{{Kind: DecryptionRevealed, RecordID: recordID,
		RequestID: requestID}}
	var invalidated []uint64
	for _, o := range others {
		if o.Id != requestID {
			invalidated = append(invalidated, o.Id)
			events = append(events, Event{Kind: DecryptionInvalidated,
				RecordID: recordID, RequestID: o.Id})
		}
	}

	err = i.commit(events, func(tx *storage.Storage) error {
		if err := tx.DeleteRequest(requestID); err != nil {
			return err
		}
		for _, id := range invalidated {
			if err := tx.DeleteRequest(id); err != nil {
				return err
			}
		}
		return tx.UpsertAnalysis(result)
	})
	if err != nil {
		return errors.WithMessagef(err, "Could not reveal record %d", recordID)
	}

	if _, err = i.requests.Consume(requestID, measure.TagRevealed); err != nil {
		jww.ERROR.Printf("Revealed request %d: %+v", requestID, err)
	}
	for _, id := range invalidated {
		if _, err = i.requests.Consume(id, measure.TagInvalidated); err != nil {
			jww.ERROR.Printf("Invalidated request %d: %+v", id, err)
		}
	}

	jww.INFO.Printf("Revealed record %d through request %d in %s: %q "+
		"(climate %d, aviation %d), %d other requests invalidated", recordID,
		requestID, tracked.GetMetrics().Duration(), scores.Advisory,
		scores.Climate, scores.Aviation, len(invalidated))
	return nil
}

// OnGroupDecrypted accepts the oracle's answer to a group decryption: two
// big-endian uint32 totals and their proof. The totals are stored unless a
// newer group answer is already stored; either way the request is consumed.
func (i *Instance) OnGroupDecrypted(ctx context.Context, requestID uint64,
	cleartexts, proof []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	tracked, stored, handles, err := i.pending(requestID, request.Group)
	if err != nil {
		return err
	}
	groupKey := tracked.GetTarget().GroupKey

	if _, err = i.storage.GetGroup(groupKey); storage.IsNotFound(err) {
		return errors.WithMessagef(ErrInvalidRequest,
			"Group %q of request %d no longer exists", groupKey, requestID)
	} else if err != nil {
		return errors.WithMessagef(err, "Could not look up group %q", groupKey)
	}

	if err = i.verify(tracked, handles, cleartexts, proof); err != nil {
		return err
	}

	values, err := cryptops.DecodeCleartexts(cleartexts, request.Group.Handles())
	if err != nil {
		return errors.WithMessage(err, "Could not decode cleartexts")
	}

	prior, err := i.storage.GetGroupAnalysis(groupKey)
	if err != nil && !storage.IsNotFound(err) {
		return errors.WithMessagef(err, "Could not look up analysis of %q", groupKey)
	}
	newer := err != nil || stored.Contributions > prior.Contributions ||
		(stored.Contributions == prior.Contributions &&
			!stored.Timestamp.Before(prior.RequestedAt))

	now := i.clock()
	var events []Event
	if newer {
		events = append(events, Event{Kind: GroupRevealed, GroupKey: groupKey,
			RequestID: requestID})
	}

	err = i.commit(events, func(tx *storage.Storage) error {
		if err := tx.DeleteRequest(requestID); err != nil {
			return err
		}
		if !newer {
			return nil
		}
		return tx.UpsertGroupAnalysis(&storage.GroupAnalysis{
			GroupKey:      groupKey,
			TotalX:        values[0],
			TotalY:        values[1],
			Contributions: stored.Contributions,
			RequestId:     requestID,
			RequestedAt:   stored.Timestamp,
			RevealedAt:    now,
		})
	})
	if err != nil {
		return errors.WithMessagef(err, "Could not reveal group %q", groupKey)
	}

	if _, err = i.requests.Consume(requestID, measure.TagRevealed); err != nil {
		jww.ERROR.Printf("Revealed request %d: %+v", requestID, err)
	}

	if newer {
		jww.INFO.Printf("Revealed group %q through request %d: totals %d, %d "+
			"over %d contributions", groupKey, requestID, values[0], values[1],
			stored.Contributions)
	} else {
		jww.INFO.Printf("Request %d for group %q answered after a newer "+
			"reveal, totals kept", requestID, groupKey)
	}
	return nil
}

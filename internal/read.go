////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

// read.go contains the ledger's side-effect free queries

import (
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/storage"
)

// Largest page Events returns
const maxEventPage = 1000

// AnalysisResult is the public view of a record's derived scores. It is
// the zero value until the record is revealed.
type AnalysisResult struct {
	ClimateScore  uint64 `json:"climateScore"`
	AviationScore uint64 `json:"aviationScore"`
	Advisory      string `json:"advisory"`
	Revealed      bool   `json:"revealed"`
}

// GroupResult holds the latest revealed totals of a group
type GroupResult struct {
	GroupKey      string    `json:"groupKey"`
	TotalX        uint32    `json:"totalX"`
	TotalY        uint32    `json:"totalY"`
	Contributions uint64    `json:"contributions"`
	RequestID     uint64    `json:"requestId"`
	RevealedAt    time.Time `json:"revealedAt"`
}

// ReadAnalysis returns the analysis of a record. It never fails: ids that
// were never issued read as an unrevealed zero result.
func (i *Instance) ReadAnalysis(id uint64) AnalysisResult {
	a, err := i.storage.GetAnalysis(id)
	if err != nil {
		if !storage.IsNotFound(err) {
			jww.ERROR.Printf("Could not read analysis of record %d: %+v", id, err)
		}
		return AnalysisResult{}
	}
	return AnalysisResult{
		ClimateScore:  a.ClimateScore,
		AviationScore: a.AviationScore,
		Advisory:      a.Advisory,
		Revealed:      a.Revealed,
	}
}

// ReadGroupAnalysis returns the latest revealed totals of a group. The
// boolean is false when no group decryption has been revealed yet.
func (i *Instance) ReadGroupAnalysis(groupKey string) (GroupResult, bool, error) {
	a, err := i.storage.GetGroupAnalysis(groupKey)
	if storage.IsNotFound(err) {
		return GroupResult{GroupKey: groupKey}, false, nil
	} else if err != nil {
		return GroupResult{}, false, errors.WithMessagef(err,
			"Could not read analysis of group %q", groupKey)
	}
	return GroupResult{
		GroupKey:      a.GroupKey,
		TotalX:        a.TotalX,
		TotalY:        a.TotalY,
		Contributions: a.Contributions,
		RequestID:     a.RequestId,
		RevealedAt:    a.RevealedAt,
	}, true, nil
}

// GetRecord returns a stored record with its encrypted fields
func (i *Instance) GetRecord(id uint64) (*storage.Record, error) {
	r, err := i.storage.GetRecord(id)
	if storage.IsNotFound(err) {
		return nil, errors.WithMessagef(ErrUnknownRecord, "Record %d", id)
	}
	return r, err
}

// GetGroupKeys returns every group key in the order the groups were created
func (i *Instance) GetGroupKeys() ([]string, error) {
	return i.storage.GetGroupKeys()
}

// Events returns up to limit logged events with a sequence number above
// after, oldest first
func (i *Instance) Events(after uint64, limit int) ([]Event, error) {
	if limit <= 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	stored, err := i.storage.GetEvents(after, limit)
	if err != nil {
		return nil, errors.WithMessage(err, "Could not read events")
	}
	events := make([]Event, len(stored))
	for n, e := range stored {
		events[n] = eventFromStorage(e)
	}
	return events, nil
}

// Subscribe returns a channel of events as they commit and a function that
// ends the subscription and closes the channel. A subscriber that falls
// behind its buffer misses events and can catch up with Events.
func (i *Instance) Subscribe() (<-chan Event, func()) {
	buffer := i.definition.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return i.subscribers.add(buffer)
}

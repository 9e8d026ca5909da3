////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package io

import (
	"gitlab.com/elixxir/plume/internal"
)

// ReceiveReadAnalysis returns a record's analysis, zero until revealed
func ReceiveReadAnalysis(id uint64, instance *internal.Instance) internal.AnalysisResult {
	return instance.ReadAnalysis(id)
}

// ReceiveReadGroupAnalysis returns a group's latest revealed totals
func ReceiveReadGroupAnalysis(groupKey string,
	instance *internal.Instance) (*GroupAnalysisResponse, error) {
	result, ok, err := instance.ReadGroupAnalysis(groupKey)
	if err != nil {
		return nil, err
	}
	return &GroupAnalysisResponse{GroupResult: result, Revealed: ok}, nil
}

// ReceiveGetRecord returns the encrypted fields of a record
func ReceiveGetRecord(id uint64, instance *internal.Instance) (*RecordResponse, error) {
	r, err := instance.GetRecord(id)
	if err != nil {
		return nil, err
	}
	return &RecordResponse{
		RecordID: r.Id,
		GroupKey: r.GroupKey,
		So2:      r.So2,
		Co2:      r.Co2,
		H2s:      r.H2s,
		Altitude: r.Altitude,
	}, nil
}

// ReceiveEvents returns a page of the event log
func ReceiveEvents(after uint64, limit int, instance *internal.Instance) (*EventsResponse, error) {
	events, err := instance.Events(after, limit)
	if err != nil {
		return nil, err
	}
	return &EventsResponse{Events: events}, nil
}

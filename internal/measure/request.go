////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package measure

// measure/request.go contains the RequestMetrics object, constructors and its
// methods

import (
	"time"
)

// RequestMetrics structure holds metrics for the life-cycle of a decryption
// request, from registration to its final state.
type RequestMetrics struct {
	RequestId uint64
	Kind      string
	Target    string

	Metrics *Metrics

	// Special recorded events
	StartTime time.Time
	EndTime   time.Time

	// Final state the request reached
	Outcome string
}

// NewRequestMetrics initializes a new RequestMetrics object for the given
// request and measures its registration.
func NewRequestMetrics(requestId uint64, kind, target string) *RequestMetrics {
	rm := &RequestMetrics{
		RequestId: requestId,
		Kind:      kind,
		Target:    target,
		Metrics:   &Metrics{RequestId: requestId},
	}
	rm.StartTime = rm.Metrics.Measure(TagRequested)
	return rm
}

// Finish measures the final tag and records it as the outcome.
func (rm *RequestMetrics) Finish(tag string) {
	rm.EndTime = rm.Metrics.Measure(tag)
	rm.Outcome = tag
}

// Duration returns the time from registration to the final state, or zero if
// the request has not finished.
func (rm *RequestMetrics) Duration() time.Duration {
	if rm.EndTime.IsZero() {
		return 0
	}
	return rm.EndTime.Sub(rm.StartTime)
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package request

import (
	"time"

	"gitlab.com/elixxir/plume/internal/measure"
	"gitlab.com/elixxir/plume/internal/state"
)

// Tracked is a live request: its target, the time it was registered, its
// status machine and its metrics
type Tracked struct {
	id      uint64
	target  Target
	created time.Time

	machine *state.Machine
	metrics *measure.RequestMetrics
}

func newTracked(id uint64, target Target, created time.Time,
	machine *state.Machine, tag string) *Tracked {
	t := &Tracked{
		id:      id,
		target:  target,
		created: created,
		machine: machine,
		metrics: measure.NewRequestMetrics(id, target.Kind.String(), target.Key()),
	}
	if tag != measure.TagRequested {
		t.metrics.Metrics.Measure(tag)
	}
	return t
}

// GetID returns the oracle assigned id
func (t *Tracked) GetID() uint64 {
	return t.id
}

// GetTarget returns what the request decrypts
func (t *Tracked) GetTarget() Target {
	return t.target
}

// GetCreated returns the registration time
func (t *Tracked) GetCreated() time.Time {
	return t.created
}

// GetStatus returns the current status
func (t *Tracked) GetStatus() state.Status {
	return t.machine.Get()
}

// GetMetrics returns the request's timing metrics
func (t *Tracked) GetMetrics() *measure.RequestMetrics {
	return t.metrics
}

// Measure records a tagged event for the request
func (t *Tracked) Measure(tag string) time.Time {
	return t.metrics.Metrics.Measure(tag)
}

// WaitFor blocks until the request reaches one of the given statuses or the
// timeout passes
func (t *Tracked) WaitFor(timeout time.Duration, expected ...state.Status) (state.Status, error) {
	return t.machine.WaitFor(timeout, expected...)
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package measure

// metrics.go contains the metrics object and its methods

import (
	"sync"
	"time"
)

// Metrics structure holds the list of timed events of one decryption request.
// The RWMutex prevents two threads from writing to the list at the same time.
type Metrics struct {
	Events    []Metric
	RequestId uint64
	sync.RWMutex
}

// Metric structure holds a single measurement, which contains a tag and a
// timestamp from when the measurement was taken.
type Metric struct {
	Tag       string
	Timestamp time.Time
}

// Measure creates a new Metric object and appends it to the Metrics's event
// list. The Metric object is created from the specified tag and a timestamp
// created at the time of function call. The timestamp is returned.
func (ms *Metrics) Measure(tag string) time.Time {
	// Create new Metric object from the tag and new timestamp
	metric := Metric{
		Tag:       tag,
		Timestamp: time.Now(),
	}

	// Append the metric to the even list
	ms.Lock()
	ms.Events = append(ms.Events, metric)
	ms.Unlock()

	return metric.Timestamp
}

// GetEvents returns a copy of the Events array.
func (ms *Metrics) GetEvents() []Metric {
	ms.RLock()
	defer ms.RUnlock()
	metricsEvents := make([]Metric, len(ms.Events))

	copy(metricsEvents, ms.Events)

	return metricsEvents
}

// Between returns the time from the first event tagged from to the first
// event tagged to after it. Returns false if either is missing.
func (ms *Metrics) Between(from, to string) (time.Duration, bool) {
	ms.RLock()
	defer ms.RUnlock()

	var start time.Time
	found := false
	for _, e := range ms.Events {
		if !found && e.Tag == from {
			start = e.Timestamp
			found = true
		} else if found && e.Tag == to {
			return e.Timestamp.Sub(start), true
		}
	}
	return 0, false
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package request

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/plume/internal/measure"
	"gitlab.com/elixxir/plume/internal/state"
)

// Manager maps live request ids to their Tracked object. Ids that reached a
// final state are remembered so they cannot be registered again until Prune
// forgets them.
type Manager struct {
	requestMap *sync.Map
	retired    *sync.Map
	live       *int64
}

// A request id that reached a final state
type retiredEntry struct {
	status  state.Status
	created time.Time
}

// NewManager creates a new manager object with an empty request map
func NewManager() *Manager {
	live := int64(0)
	return &Manager{
		requestMap: &sync.Map{},
		retired:    &sync.Map{},
		live:       &live,
	}
}

// Add registers a request the oracle just accepted, moving it from
// UNREGISTERED to PENDING
func (m *Manager) Add(id uint64, target Target, created time.Time) (*Tracked, error) {
	return m.add(id, target, created, state.NewMachine(), measure.TagRequested)
}

// Restore tracks a request that was already pending in storage
func (m *Manager) Restore(id uint64, target Target, created time.Time) (*Tracked, error) {
	return m.add(id, target, created, state.NewMachine(), measure.TagRestored)
}

func (m *Manager) add(id uint64, target Target, created time.Time,
	machine *state.Machine, tag string) (*Tracked, error) {
	if id == 0 {
		return nil, errors.New("Request id 0 is reserved")
	}
	if target.Kind >= NUM_KIND {
		return nil, errors.Errorf("Request %d has an invalid target %s",
			id, target)
	}
	if r, ok := m.retired.Load(id); ok {
		return nil, errors.Errorf("Request id %d was already %s", id,
			r.(retiredEntry).status)
	}

	if _, err := machine.Update(state.PENDING); err != nil {
		return nil, errors.WithMessagef(err, "Request %d", id)
	}

	t := newTracked(id, target, created, machine, tag)
	if _, loaded := m.requestMap.LoadOrStore(id, t); loaded {
		return nil, errors.Errorf("Request id %d is already pending", id)
	}
	atomic.AddInt64(m.live, 1)
	return t, nil
}

// Get returns the pending request with the given id, or an error if it is
// not pending
func (m *Manager) Get(id uint64) (*Tracked, error) {
	t, ok := m.requestMap.Load(id)
	if !ok {
		return nil, errors.Errorf("Could not find pending request %d", id)
	}
	return t.(*Tracked), nil
}

// Status returns where the given id is in its lifecycle
func (m *Manager) Status(id uint64) state.Status {
	if t, ok := m.requestMap.Load(id); ok {
		return t.(*Tracked).GetStatus()
	}
	if r, ok := m.retired.Load(id); ok {
		return r.(retiredEntry).status
	}
	return state.UNREGISTERED
}

// Consume moves a pending request to CONSUMED and stops tracking it. The tag
// records why it was consumed.
func (m *Manager) Consume(id uint64, tag string) (*Tracked, error) {
	return m.finish(id, state.CONSUMED, tag)
}

// Expire moves a pending request to EXPIRED and stops tracking it
func (m *Manager) Expire(id uint64) (*Tracked, error) {
	return m.finish(id, state.EXPIRED, measure.TagExpired)
}

func (m *Manager) finish(id uint64, to state.Status, tag string) (*Tracked, error) {
	v, ok := m.requestMap.LoadAndDelete(id)
	if !ok {
		return nil, errors.Errorf("Could not find pending request %d", id)
	}
	t := v.(*Tracked)
	atomic.AddInt64(m.live, -1)
	m.retired.Store(id, retiredEntry{status: to, created: t.created})

	if _, err := t.machine.Update(to); err != nil {
		return t, errors.WithMessagef(err, "Request %d", id)
	}
	t.metrics.Finish(tag)
	return t, nil
}

// OlderThan returns the pending requests registered before cutoff, oldest
// first
func (m *Manager) OlderThan(cutoff time.Time) []*Tracked {
	var result []*Tracked
	m.requestMap.Range(func(_, v interface{}) bool {
		t := v.(*Tracked)
		if t.created.Before(cutoff) {
			result = append(result, t)
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].created.Equal(result[j].created) {
			return result[i].id < result[j].id
		}
		return result[i].created.Before(result[j].created)
	})
	return result
}

// Prune forgets finished requests registered before cutoff and returns how
// many it forgot. A forgotten id reads as UNREGISTERED; the oracle never
// reissues ids, so it cannot be registered again in practice.
func (m *Manager) Prune(cutoff time.Time) int {
	n := 0
	m.retired.Range(func(k, v interface{}) bool {
		if v.(retiredEntry).created.Before(cutoff) {
			m.retired.Delete(k)
			n++
		}
		return true
	})
	return n
}

// Len returns the number of pending requests
func (m *Manager) Len() int {
	return int(atomic.LoadInt64(m.live))
}

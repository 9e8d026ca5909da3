////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package request

import (
	"sync"
	"testing"
	"time"

	"gitlab.com/elixxir/plume/internal/measure"
	"gitlab.com/elixxir/plume/internal/state"
)

func TestManager(t *testing.T) {
	m := NewManager()
	now := time.Now()

	// Getting a request that's not been added should error
	if _, err := m.Get(58); err == nil {
		t.Error("Shouldn't have gotten that request from the manager")
	}
	if s := m.Status(58); s != state.UNREGISTERED {
		t.Errorf("Unknown id has the wrong status\n\texpected: %s\n\treceived: %s",
			state.UNREGISTERED, s)
	}

	tracked, err := m.Add(58, RecordTarget(1), now)
	if err != nil {
		t.Fatalf("Add() errored: %+v", err)
	}
	if tracked.GetStatus() != state.PENDING {
		t.Errorf("Added request is not pending: %s", tracked.GetStatus())
	}

	// Getting a request that's been added should return it
	result, err := m.Get(58)
	if err != nil || result.GetTarget() != RecordTarget(1) {
		t.Errorf("Got the wrong request from the manager: %+v %v", result, err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() wrong\n\texpected: %d\n\treceived: %d", 1, m.Len())
	}

	if _, err = m.Consume(58, measure.TagRevealed); err != nil {
		t.Errorf("Consume() errored: %+v", err)
	}
	// Getting a request that's been consumed should error
	if _, err = m.Get(58); err == nil {
		t.Error("Shouldn't have gotten a consumed request from the manager")
	}
	if s := m.Status(58); s != state.CONSUMED {
		t.Errorf("Consumed id has the wrong status\n\texpected: %s\n\treceived: %s",
			state.CONSUMED, s)
	}
	if m.Len() != 0 {
		t.Errorf("Len() wrong\n\texpected: %d\n\treceived: %d", 0, m.Len())
	}
}

// Tests the ids that can never be registered
func TestManager_Add_Errors(t *testing.T) {
	m := NewManager()
	now := time.Now()

	if _, err := m.Add(0, RecordTarget(1), now); err == nil {
		t.Errorf("Add() accepted the reserved id 0")
	}
	if _, err := m.Add(1, Target{Kind: NUM_KIND}, now); err == nil {
		t.Errorf("Add() accepted an invalid target kind")
	}

	if _, err := m.Add(2, GroupTarget("Etna"), now); err != nil {
		t.Fatalf("Add() errored: %+v", err)
	}
	if _, err := m.Add(2, RecordTarget(3), now); err == nil {
		t.Errorf("Add() accepted an id that is already pending")
	}

	if _, err := m.Expire(2); err != nil {
		t.Fatalf("Expire() errored: %+v", err)
	}
	if _, err := m.Add(2, RecordTarget(3), now); err == nil {
		t.Errorf("Add() accepted an expired id")
	}
	if _, err := m.Restore(2, RecordTarget(3), now); err == nil {
		t.Errorf("Restore() accepted an expired id")
	}
}

// Tests that a request can only be finished once
func TestManager_Consume_Once(t *testing.T) {
	m := NewManager()
	_, _ = m.Add(7, RecordTarget(1), time.Now())

	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Consume(7, measure.TagRevealed); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	n := 0
	for range successes {
		n++
	}
	if n != 1 {
		t.Errorf("Request consumed more than once\n\texpected: %d\n\treceived: %d", 1, n)
	}
	if _, err := m.Expire(7); err == nil {
		t.Errorf("Expire() succeeded on a consumed request")
	}
}

// Tests that waiters are woken when a request is consumed
func TestTracked_WaitFor(t *testing.T) {
	m := NewManager()
	tracked, _ := m.Add(9, GroupTarget("Aso"), time.Now())

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = m.Consume(9, measure.TagRevealed)
	}()

	s, err := tracked.WaitFor(time.Second, state.CONSUMED, state.EXPIRED)
	if err != nil || s != state.CONSUMED {
		t.Errorf("WaitFor() wrong\n\texpected: %s\n\treceived: %s (%v)",
			state.CONSUMED, s, err)
	}

	if tracked.GetMetrics().Outcome != measure.TagRevealed {
		t.Errorf("Outcome not recorded\n\texpected: %s\n\treceived: %s",
			measure.TagRevealed, tracked.GetMetrics().Outcome)
	}
}

// Tests that OlderThan finds stale requests, oldest first
func TestManager_OlderThan(t *testing.T) {
	m := NewManager()
	base := time.Unix(1000, 0)

	_, _ = m.Add(3, RecordTarget(1), base.Add(2*time.Second))
	_, _ = m.Add(1, RecordTarget(2), base)
	_, _ = m.Add(2, GroupTarget("Etna"), base.Add(10*time.Second))

	stale := m.OlderThan(base.Add(5 * time.Second))
	if len(stale) != 2 || stale[0].GetID() != 1 || stale[1].GetID() != 3 {
		t.Errorf("OlderThan() returned the wrong requests: %+v", stale)
	}
}

// Tests that restored requests carry their original creation time
func TestManager_Restore(t *testing.T) {
	m := NewManager()
	created := time.Unix(5000, 0)

	tracked, err := m.Restore(11, GroupTarget("Hekla"), created)
	if err != nil {
		t.Fatalf("Restore() errored: %+v", err)
	}
	if !tracked.GetCreated().Equal(created) {
		t.Errorf("Creation time wrong\n\texpected: %s\n\treceived: %s",
			created, tracked.GetCreated())
	}
	events := tracked.GetMetrics().Metrics.GetEvents()
	if len(events) != 2 || events[1].Tag != measure.TagRestored {
		t.Errorf("Restore was not measured: %v", events)
	}
}

// Tests that Prune forgets only finished requests registered before cutoff
func TestManager_Prune(t *testing.T) {
	m := NewManager()
	base := time.Unix(1000, 0)

	_, _ = m.Add(1, RecordTarget(1), base)
	_, _ = m.Add(2, RecordTarget(1), base.Add(time.Second))
	_, _ = m.Add(3, GroupTarget("Etna"), base)
	_, _ = m.Add(4, RecordTarget(2), base.Add(time.Minute))
	_, _ = m.Consume(1, measure.TagRevealed)
	_, _ = m.Expire(2)
	_, _ = m.Consume(4, measure.TagRevealed)

	if n := m.Prune(base.Add(10 * time.Second)); n != 2 {
		t.Errorf("Prune() count wrong\n\texpected: %d\n\treceived: %d", 2, n)
	}

	expected := map[uint64]state.Status{
		1: state.UNREGISTERED,
		2: state.UNREGISTERED,
		3: state.PENDING,
		4: state.CONSUMED,
	}
	for id, status := range expected {
		if s := m.Status(id); s != status {
			t.Errorf("Status of %d wrong\n\texpected: %s\n\treceived: %s",
				id, status, s)
		}
	}
	if m.Len() != 1 {
		t.Errorf("Len() wrong\n\texpected: %d\n\treceived: %d", 1, m.Len())
	}

	if n := m.Prune(base.Add(10 * time.Second)); n != 0 {
		t.Errorf("Second Prune() forgot %d more", n)
	}
}

func TestTarget(t *testing.T) {
	if s := RecordTarget(12).String(); s != "record(12)" {
		t.Errorf("String() wrong\n\texpected: %s\n\treceived: %s", "record(12)", s)
	}
	if s := GroupTarget("Etna").String(); s != "group(Etna)" {
		t.Errorf("String() wrong\n\texpected: %s\n\treceived: %s", "group(Etna)", s)
	}
	if Record.Handles() != 4 || Group.Handles() != 2 || NUM_KIND.Handles() != 0 {
		t.Errorf("Handles() counts wrong")
	}
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package state holds the per request status machine. Valid transitions are
// UNREGISTERED -> PENDING -> CONSUMED | EXPIRED; both end states are final.
package state

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// holds valid state transitions, shared by every machine
var stateMap = buildStateMap()

func buildStateMap() [][]bool {
	sm := make([][]bool, NUM_STATUS)
	for i := 0; i < int(NUM_STATUS); i++ {
		sm[i] = make([]bool, NUM_STATUS)
	}

	addStateTransition(sm, UNREGISTERED, PENDING)
	addStateTransition(sm, PENDING, CONSUMED, EXPIRED)

	return sm
}

// adds a state transition to the state table
func addStateTransition(sm [][]bool, from Status, to ...Status) {
	for _, t := range to {
		sm[from][t] = true
	}
}

// Machine is the state machine of a single request
type Machine struct {
	// holds the state
	status Status
	// mux to ensure proper access to state
	sync.RWMutex

	// used to signal to waiting threads that a state change has occurred
	signal chan Status
}

// NewMachine builds a machine in the UNREGISTERED state
func NewMachine() *Machine {
	return NewMachineAt(UNREGISTERED)
}

// NewMachineAt builds a machine already in the given state, skipping the
// transition table
func NewMachineAt(s Status) *Machine {
	return &Machine{
		status: s,
		signal: make(chan Status),
	}
}

// Get returns the current state
func (m *Machine) Get() Status {
	m.RLock()
	defer m.RUnlock()
	return m.status
}

// if the requested state update is valid from the current state, moves the
// next state and updates any go routines waiting on the state update.
// returns a boolean if the update cannot be done and an error explaining why
func (m *Machine) Update(nextStatus Status) (bool, error) {
	m.Lock()
	defer m.Unlock()

	// check if the requested state change is valid
	if nextStatus >= NUM_STATUS || !stateMap[m.status][nextStatus] {
		// return an error if state change if invalid
		return false, errors.Errorf("not a valid state change from "+
			"%s to %s", m.status, nextStatus)
	}

	m.status = nextStatus

	// notify threads waiting for state update until there are no more to
	// notify
	for signal := true; signal; {
		select {
		case m.signal <- m.status:
		default:
			signal = false
		}
	}

	return true, nil
}

// if the the passed state is the next state update, waits until that update
// happens. return success if the waited state is the current state. returns an
// error after the timeout expires
func (m *Machine) WaitFor(timeout time.Duration, expected ...Status) (Status, error) {
	// take the read lock to ensure state does not change during initial
	// checks
	m.RLock()

	// channels to control and receive from the worker thread
	kill := make(chan struct{}, 1) // Size set to 1 to avoid race conditions
	done := make(chan error, 1)

	// Place values in expected into a map
	expectedMap := make(map[Status]bool)
	for _, val := range expected {
		expectedMap[val] = true
	}

	// start a thread to reserve a spot to get a notification on state updates
	// state updates cannot happen until the state read lock is released, so
	// this wont do anything until the initial checks are done, but will ensure
	// there are no laps in being ready to receive a notifications
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	go func() {
		// wait on a state change notification or a timeout
		select {
		case newState := <-m.signal:
			if !expectedMap[newState] {
				done <- errors.Errorf("State not updated to the "+
					"correct state: expected: %s receive: %s", expected,
					newState)
			} else {
				done <- nil
			}
		case <-timer.C:
			done <- errors.Errorf("Timer of %s timed out before "+
				"state update", timeout)
		case <-kill:
		}
	}()

	current := m.status

	// if already in the state return
	if expectedMap[current] {
		kill <- struct{}{}
		m.RUnlock()
		return current, nil
	}

	// if not in the state and the expected state cannot be reached from the
	// current one, return an error
	validTransition := false
	for _, s := range expected {
		if s < NUM_STATUS && stateMap[current][s] {
			validTransition = true
		}
	}

	if !validTransition {
		kill <- struct{}{}
		m.RUnlock()
		return current, errors.Errorf("Cannot wait for state %s which "+
			"cannot be reached from the current state %s", expected, current)
	}

	// unlock the read lock, allows state changes to take effect
	m.RUnlock()

	// wait for the state change to happen
	err := <-done

	return m.Get(), err
}

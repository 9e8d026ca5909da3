////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

// instance.go contains the logic for the internal.Instance object along with
// constructors and it's methods

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/cryptops"
	"gitlab.com/elixxir/plume/internal/request"
	"gitlab.com/elixxir/plume/internal/state"
	"gitlab.com/elixxir/plume/permissioning"
	"gitlab.com/elixxir/plume/storage"
)

// Default buffer of an event subscription
const defaultEventBuffer = 64

// Instance holds the ledger's long-lived state. Every mutating operation runs
// under one mutex, so operations are atomic with respect to each other.
type Instance struct {
	definition *Definition
	storage    *storage.Storage
	requests   *request.Manager
	policy     permissioning.Policy
	clock      func() time.Time

	subscribers *subscribers
	ready       *FirstTime

	// counters below are only touched while holding mux
	nextRecord uint64
	numGroups  uint64
	eventSeq   uint64

	mux sync.Mutex
}

// CreateInstance builds an Instance from its Definition and reloads every
// request still pending in storage
func CreateInstance(def *Definition) (*Instance, error) {
	if def.Storage == nil || def.Evaluator == nil || def.Verifier == nil ||
		def.Oracle == nil {
		return nil, errors.New("Definition needs storage, an evaluator, " +
			"a verifier and an oracle")
	}

	i := &Instance{
		definition:  def,
		storage:     def.Storage,
		requests:    request.NewManager(),
		policy:      def.Policy,
		clock:       def.Clock,
		subscribers: newSubscribers(),
		ready:       NewFirstTime(),
	}
	if i.policy == nil {
		i.policy = permissioning.AllowAll{}
	}
	if i.clock == nil {
		i.clock = time.Now
	}

	numRecords, err := i.storage.CountRecords()
	if err != nil {
		return nil, errors.WithMessage(err, "Could not count records")
	}
	i.nextRecord = numRecords + 1

	if i.numGroups, err = i.storage.CountGroups(); err != nil {
		return nil, errors.WithMessage(err, "Could not count groups")
	}
	if i.eventSeq, err = i.storage.CountEvents(); err != nil {
		return nil, errors.WithMessage(err, "Could not count events")
	}

	pending, err := i.storage.GetRequests()
	if err != nil {
		return nil, errors.WithMessage(err, "Could not load pending requests")
	}
	for _, r := range pending {
		target, err := targetOf(r)
		if err != nil {
			return nil, err
		}
		if _, err = i.requests.Restore(r.Id, target, r.Timestamp); err != nil {
			return nil, errors.WithMessagef(err, "Could not restore request %d", r.Id)
		}
	}

	if rs, ok := def.Oracle.(Resubmitter); ok {
		i.resubmit(rs, pending)
	}

	jww.INFO.Printf("Ledger loaded: %d records, %d groups, %d events, "+
		"%d pending requests", numRecords, i.numGroups, i.eventSeq, len(pending))
	return i, nil
}

// resubmit queues restored requests with the oracle again. A request that
// cannot be queued stays pending until it expires.
func (i *Instance) resubmit(rs Resubmitter, pending []*storage.Request) {
	for _, r := range pending {
		handles, err := cryptops.DecodeHandles(r.Handles)
		if err == nil {
			err = rs.Resubmit(r.Id, request.Kind(r.Kind), handles)
		}
		if err != nil {
			jww.WARN.Printf("Could not resubmit restored request %d: %+v",
				r.Id, err)
			continue
		}
		jww.DEBUG.Printf("Resubmitted restored request %d", r.Id)
	}
}

func targetOf(r *storage.Request) (request.Target, error) {
	switch request.Kind(r.Kind) {
	case request.Record:
		return request.RecordTarget(r.RecordId), nil
	case request.Group:
		return request.GroupTarget(r.GroupKey), nil
	default:
		return request.Target{}, errors.Errorf("Stored request %d has "+
			"unknown kind %d", r.Id, r.Kind)
	}
}

// Run starts the expiry sweeper and marks the instance ready. It blocks
// until ctx is done.
func (i *Instance) Run(ctx context.Context) {
	i.ready.Send()
	i.RunSweeper(ctx)
}

// WaitReady blocks until Run has started or ctx is done
func (i *Instance) WaitReady(ctx context.Context) error {
	return i.ready.Receive(ctx, 5*time.Second, "ledger instance")
}

// GetDefinition returns the Definition the instance was built from
func (i *Instance) GetDefinition() *Definition {
	return i.definition
}

// GetStorage returns the ledger storage
func (i *Instance) GetStorage() *storage.Storage {
	return i.storage
}

// GetRequestManager returns the tracker of pending requests
func (i *Instance) GetRequestManager() *request.Manager {
	return i.requests
}

func (i *Instance) String() string {
	return fmt.Sprintf("ledger(records=%d, groups=%d, pending=%d)",
		i.nextRecord-1, i.numGroups, i.requests.Len())
}

// commit runs fn in a storage transaction that also appends events. The
// event counter only advances, and subscribers only hear of the events, if
// the transaction commits. Must be called while holding mux.
func (i *Instance) commit(events []Event, fn func(tx *storage.Storage) error) error {
	now := i.clock()
	for n := range events {
		events[n].Seq = i.eventSeq + uint64(n) + 1
		if events[n].Timestamp.IsZero() {
			events[n].Timestamp = now
		}
	}

	err := i.storage.Transaction(func(tx *storage.Storage) error {
		if err := fn(tx); err != nil {
			return err
		}
		for _, e := range events {
			if err := tx.InsertEvent(e.toStorage()); err != nil {
				return errors.WithMessagef(err, "Could not log event %s", e.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	i.eventSeq += uint64(len(events))
	i.subscribers.publish(events)
	return nil
}

// Submit stores a new encrypted record and returns its id. The record's
// group is created, seeded with encrypted zeros, on first use.
func (i *Instance) Submit(ctx context.Context, caller permissioning.Caller,
	groupKey string, so2, co2, h2s, altitude cryptops.Handle) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if groupKey == "" {
		return 0, errors.WithStack(ErrEmptyGroupKey)
	}
	if err := i.policy.Authorize(caller, permissioning.Submit, groupKey); err != nil {
		return 0, err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	now := i.clock()
	id := i.nextRecord

	var newGroup *storage.Group
	_, err := i.storage.GetGroup(groupKey)
	if storage.IsNotFound(err) {
		newGroup, err = i.seedGroup(groupKey, now)
		if err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, errors.WithMessagef(err, "Could not look up group %q", groupKey)
	}

	record := &storage.Record{
		Id:        id,
		GroupKey:  groupKey,
		So2:       so2,
		Co2:       co2,
		H2s:       h2s,
		Altitude:  altitude,
		Timestamp: now,
	}
	events := []Event{{Kind: RecordSubmitted, RecordID: id, GroupKey: groupKey,
		Timestamp: now}}

	err = i.commit(events, func(tx *storage.Storage) error {
		if err := tx.InsertRecord(record); err != nil {
			return err
		}
		if err := tx.UpsertAnalysis(&storage.Analysis{RecordId: id}); err != nil {
			return err
		}
		if newGroup != nil {
			return tx.InsertGroup(newGroup)
		}
		return nil
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "Could not store record %d", id)
	}

	i.nextRecord++
	if newGroup != nil {
		i.numGroups++
		jww.INFO.Printf("Created group %q", groupKey)
	}
	jww.DEBUG.Printf("Stored record %d in group %q for %q", id, groupKey, caller)
	return id, nil
}

// Must be called while holding mux
func (i *Instance) seedGroup(key string, now time.Time) (*storage.Group, error) {
	x, err := i.definition.Evaluator.EncryptZero()
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not seed group %q", key)
	}
	y, err := i.definition.Evaluator.EncryptZero()
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not seed group %q", key)
	}
	return &storage.Group{
		Key:       key,
		Seq:       i.numGroups + 1,
		SumX:      x,
		SumY:      y,
		Timestamp: now,
	}, nil
}

// Accumulate homomorphically adds x and y into the group's running sums
func (i *Instance) Accumulate(ctx context.Context, caller permissioning.Caller,
	groupKey string, x, y cryptops.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.policy.Authorize(caller, permissioning.Accumulate, groupKey); err != nil {
		return err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	group, err := i.storage.GetGroup(groupKey)
	if storage.IsNotFound(err) {
		return errors.WithMessagef(ErrUnknownGroup, "Group %q", groupKey)
	} else if err != nil {
		return errors.WithMessagef(err, "Could not look up group %q", groupKey)
	}

	sumX, err := i.definition.Evaluator.Add(group.SumX, x)
	if err != nil {
		return errors.WithMessagef(err, "Could not add to first sum of %q", groupKey)
	}
	sumY, err := i.definition.Evaluator.Add(group.SumY, y)
	if err != nil {
		return errors.WithMessagef(err, "Could not add to second sum of %q", groupKey)
	}

	group.SumX = sumX
	group.SumY = sumY
	group.Contributions++
	group.Timestamp = i.clock()

	events := []Event{{Kind: GroupUpdated, GroupKey: groupKey}}
	err = i.commit(events, func(tx *storage.Storage) error {
		return tx.UpdateGroup(group)
	})
	if err != nil {
		return errors.WithMessagef(err, "Could not update group %q", groupKey)
	}

	jww.DEBUG.Printf("Group %q now holds %d contributions", groupKey,
		group.Contributions)
	return nil
}

// RequestRecordDecryption forwards a record's four handles to the oracle and
// registers the request id it returns. The caller is checked before the
// record is looked up so refused callers cannot learn which ids exist.
func (i *Instance) RequestRecordDecryption(ctx context.Context,
	caller permissioning.Caller, id uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// no group key: only the action itself is checked
	if err := i.policy.Authorize(caller, permissioning.RequestDecryption,
		""); err != nil {
		return 0, err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	record, err := i.storage.GetRecord(id)
	if storage.IsNotFound(err) {
		return 0, errors.WithMessagef(ErrUnknownRecord, "Record %d", id)
	} else if err != nil {
		return 0, errors.WithMessagef(err, "Could not look up record %d", id)
	}

	if err = i.policy.Authorize(caller, permissioning.RequestDecryption,
		record.GroupKey); err != nil {
		return 0, err
	}

	analysis, err := i.storage.GetAnalysis(id)
	if err != nil && !storage.IsNotFound(err) {
		return 0, errors.WithMessagef(err, "Could not look up analysis of %d", id)
	}
	if err == nil && analysis.Revealed {
		return 0, errors.WithMessagef(ErrAlreadyAnalyzed, "Record %d", id)
	}

	handles := []cryptops.Handle{record.So2, record.Co2, record.H2s, record.Altitude}
	return i.register(request.RecordTarget(id), handles, 0)
}

// RequestGroupDecryption forwards a group's two sums to the oracle and
// registers the request id it returns
func (i *Instance) RequestGroupDecryption(ctx context.Context,
	caller permissioning.Caller, groupKey string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := i.policy.Authorize(caller, permissioning.RequestDecryption,
		groupKey); err != nil {
		return 0, err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	group, err := i.storage.GetGroup(groupKey)
	if storage.IsNotFound(err) {
		return 0, errors.WithMessagef(ErrUnknownGroup, "Group %q", groupKey)
	} else if err != nil {
		return 0, errors.WithMessagef(err, "Could not look up group %q", groupKey)
	}

	handles := []cryptops.Handle{group.SumX, group.SumY}
	return i.register(request.GroupTarget(groupKey), handles, group.Contributions)
}

// register hands the handles to the oracle and records the returned id as
// pending. Must be called while holding mux; a callback for the new id
// blocks on mux until registration is done.
func (i *Instance) register(target request.Target, handles []cryptops.Handle,
	contributions uint64) (uint64, error) {
	requestID, err := i.definition.Oracle.RequestDecryption(target.Kind, handles)
	if err != nil {
		return 0, errors.WithMessagef(err, "Oracle refused %s", target)
	}
	if requestID == 0 || i.requests.Status(requestID) != state.UNREGISTERED {
		return 0, errors.Errorf("Oracle issued unusable request id %d "+
			"(status %s) for %s", requestID, i.requests.Status(requestID), target)
	}

	now := i.clock()
	stored := &storage.Request{
		Id:            requestID,
		Kind:          uint8(target.Kind),
		RecordId:      target.RecordID,
		GroupKey:      target.GroupKey,
		Handles:       cryptops.EncodeHandles(handles),
		Contributions: contributions,
		Timestamp:     now,
	}
	events := []Event{{Kind: DecryptionRequested, RecordID: target.RecordID,
		GroupKey: target.GroupKey, RequestID: requestID}}

	err = i.commit(events, func(tx *storage.Storage) error {
		return tx.InsertRequest(stored)
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "Could not store request %d", requestID)
	}

	if _, err = i.requests.Add(requestID, target, now); err != nil {
		jww.ERROR.Printf("Stored request %d could not be tracked: %+v",
			requestID, err)
		return 0, err
	}

	jww.INFO.Printf("Requested decryption of %s as request %d", target, requestID)
	return requestID, nil
}

// WaitForRequest blocks until the request is consumed or expired, or the
// timeout passes, and returns its status
func (i *Instance) WaitForRequest(requestID uint64, timeout time.Duration) (state.Status, error) {
	tracked, err := i.requests.Get(requestID)
	if err != nil {
		s := i.requests.Status(requestID)
		if s.Final() {
			return s, nil
		}
		return s, errors.WithMessagef(ErrInvalidRequest, "Request %d", requestID)
	}
	return tracked.WaitFor(timeout, state.CONSUMED, state.EXPIRED)
}

// RequestStatus returns where a request id is in its lifecycle
func (i *Instance) RequestStatus(requestID uint64) state.Status {
	return i.requests.Status(requestID)
}

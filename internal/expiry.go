////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/storage"
)

// ExpirePending expires every pending request created more than the TTL
// before now and returns how many it expired. A late callback for an expired
// request fails with ErrInvalidRequest. Finished requests stay queryable for
// two TTLs after they were registered, then their ids are forgotten.
func (i *Instance) ExpirePending(now time.Time) (int, error) {
	ttl := i.definition.RequestTTL
	if ttl <= 0 {
		return 0, nil
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	if n := i.requests.Prune(now.Add(-2 * ttl)); n > 0 {
		jww.DEBUG.Printf("Forgot %d finished requests", n)
	}

	stale := i.requests.OlderThan(now.Add(-ttl))
	if len(stale) == 0 {
		return 0, nil
	}

	events := make([]Event, 0, len(stale))
	for _, t := range stale {
		target := t.GetTarget()
		events = append(events, Event{Kind: DecryptionExpired,
			RecordID: target.RecordID, GroupKey: target.GroupKey,
			RequestID: t.GetID()})
	}

	err := i.commit(events, func(tx *storage.Storage) error {
		for _, t := range stale {
			err := tx.DeleteRequest(t.GetID())
			if err != nil && !storage.IsNotFound(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.WithMessage(err, "Could not expire requests")
	}

	for _, t := range stale {
		if _, err = i.requests.Expire(t.GetID()); err != nil {
			jww.ERROR.Printf("Expired request %d: %+v", t.GetID(), err)
			continue
		}
		jww.WARN.Printf("Request %d for %s expired unanswered after %s",
			t.GetID(), t.GetTarget(), now.Sub(t.GetCreated()))
	}
	return len(stale), nil
}

// RunSweeper expires stale requests every SweepInterval until ctx is done.
// It only waits on ctx when expiry is disabled.
func (i *Instance) RunSweeper(ctx context.Context) {
	interval := i.definition.SweepInterval
	if i.definition.RequestTTL <= 0 || interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			jww.INFO.Printf("Request sweeper stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			n, err := i.ExpirePending(i.clock())
			if err != nil {
				jww.ERROR.Printf("Sweep failed: %+v", err)
			} else if n > 0 {
				jww.INFO.Printf("Sweep expired %d requests", n)
			}
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package internal

// events.go contains the ledger's event log and its live subscribers

import (
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/plume/storage"
)

// EventKind names an entry of the event log
type EventKind string

const (
	RecordSubmitted       EventKind = "record-submitted"
	GroupUpdated          EventKind = "group-updated"
	DecryptionRequested   EventKind = "decryption-requested"
	DecryptionRevealed    EventKind = "decryption-revealed"
	GroupRevealed         EventKind = "group-revealed"
	DecryptionInvalidated EventKind = "decryption-invalidated"
	DecryptionExpired     EventKind = "decryption-expired"
)

// Event is one entry of the append-only event log. Only the fields that
// apply to Kind are set.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	RecordID  uint64    `json:"recordId,omitempty"`
	GroupKey  string    `json:"groupKey,omitempty"`
	RequestID uint64    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func eventFromStorage(e *storage.Event) Event {
	return Event{
		Seq:       e.Seq,
		Kind:      EventKind(e.Kind),
		RecordID:  e.RecordId,
		GroupKey:  e.GroupKey,
		RequestID: e.RequestId,
		Timestamp: e.Timestamp,
	}
}

func (e Event) toStorage() *storage.Event {
	return &storage.Event{
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		RecordId:  e.RecordID,
		GroupKey:  e.GroupKey,
		RequestId: e.RequestID,
		Timestamp: e.Timestamp,
	}
}

// subscribers fans committed events out to live listeners
type subscribers struct {
	next uint64
	subs map[uint64]chan Event
	sync.Mutex
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[uint64]chan Event)}
}

func (s *subscribers) add(buffer int) (<-chan Event, func()) {
	s.Lock()
	defer s.Unlock()

	id := s.next
	s.next++
	c := make(chan Event, buffer)
	s.subs[id] = c

	var once sync.Once
	return c, func() {
		once.Do(func() {
			s.Lock()
			defer s.Unlock()
			delete(s.subs, id)
			close(c)
		})
	}
}

// publish never blocks; a full subscriber misses the event
func (s *subscribers) publish(events []Event) {
	s.Lock()
	defer s.Unlock()

	for _, e := range events {
		for id, c := range s.subs {
			select {
			case c <- e:
			default:
				jww.WARN.Printf("Subscriber %d is full, dropped event %d (%s)",
					id, e.Seq, e.Kind)
			}
		}
	}
}

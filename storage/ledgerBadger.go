////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles the embedded badger backend for ledger storage

package storage

import (
	"encoding/binary"
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Key prefixes, one per table
var (
	recordPrefix        = []byte("rec/")
	groupPrefix         = []byte("grp/")
	groupSeqPrefix      = []byte("grpseq/")
	requestPrefix       = []byte("req/")
	analysisPrefix      = []byte("ana/")
	groupAnalysisPrefix = []byte("gana/")
	eventPrefix         = []byte("evt/")
)

// Numeric keys are big-endian so iteration follows numeric order
func uintKey(prefix []byte, n uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], n)
	return key
}

func stringKey(prefix []byte, s string) []byte {
	key := make([]byte, 0, len(prefix)+len(s))
	key = append(key, prefix...)
	return append(key, s...)
}

// Runs fn in the open transaction or a new read-write one
func (b *BadgerImpl) update(fn func(txn *badger.Txn) error) error {
	if b.txn != nil {
		return fn(b.txn)
	}
	return b.db.Update(fn)
}

// Runs fn in the open transaction or a new read-only one
func (b *BadgerImpl) view(fn func(txn *badger.Txn) error) error {
	if b.txn != nil {
		return fn(b.txn)
	}
	return b.db.View(fn)
}

func putJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "Could not marshal value for key %q", key)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Calls fn on each value under prefix, starting at start, until fn returns
// false or an error
func scan(txn *badger.Txn, prefix, start []byte,
	fn func(val []byte) (bool, error)) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
		var more bool
		err := it.Item().Value(func(val []byte) error {
			var err error
			more, err = fn(val)
			return err
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func count(txn *badger.Txn, prefix []byte) uint64 {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n uint64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}

// InsertRecord stores a new Record
func (b *BadgerImpl) InsertRecord(record *Record) error {
	return b.update(func(txn *badger.Txn) error {
		key := uintKey(recordPrefix, record.Id)
		if ok, err := exists(txn, key); err != nil || ok {
			return errors.Errorf("Record %d already exists: %v", record.Id, err)
		}
		return putJSON(txn, key, record)
	})
}

// GetRecord returns the Record with the given id
func (b *BadgerImpl) GetRecord(id uint64) (*Record, error) {
	result := &Record{}
	err := b.view(func(txn *badger.Txn) error {
		return getJSON(txn, uintKey(recordPrefix, id), result)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Record %d", id)
	}
	return result, nil
}

// CountRecords returns the number of stored Records
func (b *BadgerImpl) CountRecords() (uint64, error) {
	var n uint64
	err := b.view(func(txn *badger.Txn) error {
		n = count(txn, recordPrefix)
		return nil
	})
	return n, err
}

// InsertGroup stores a new Group and indexes its creation order
func (b *BadgerImpl) InsertGroup(group *Group) error {
	return b.update(func(txn *badger.Txn) error {
		key := stringKey(groupPrefix, group.Key)
		if ok, err := exists(txn, key); err != nil || ok {
			return errors.Errorf("Group %q already exists: %v", group.Key, err)
		}
		if err := putJSON(txn, key, group); err != nil {
			return err
		}
		return txn.Set(uintKey(groupSeqPrefix, group.Seq), []byte(group.Key))
	})
}

// UpdateGroup replaces an existing Group
func (b *BadgerImpl) UpdateGroup(group *Group) error {
	return b.update(func(txn *badger.Txn) error {
		key := stringKey(groupPrefix, group.Key)
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return errors.WithMessagef(ErrNotFound, "Group %q", group.Key)
		}
		return putJSON(txn, key, group)
	})
}

// GetGroup returns the Group with the given key
func (b *BadgerImpl) GetGroup(key string) (*Group, error) {
	result := &Group{}
	err := b.view(func(txn *badger.Txn) error {
		return getJSON(txn, stringKey(groupPrefix, key), result)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Group %q", key)
	}
	return result, nil
}

// GetGroupKeys returns every group key in creation order
func (b *BadgerImpl) GetGroupKeys() ([]string, error) {
	keys := make([]string, 0)
	err := b.view(func(txn *badger.Txn) error {
		return scan(txn, groupSeqPrefix, groupSeqPrefix,
			func(val []byte) (bool, error) {
				keys = append(keys, string(val))
				return true, nil
			})
	})
	return keys, err
}

// CountGroups returns the number of stored Groups
func (b *BadgerImpl) CountGroups() (uint64, error) {
	var n uint64
	err := b.view(func(txn *badger.Txn) error {
		n = count(txn, groupSeqPrefix)
		return nil
	})
	return n, err
}

// InsertRequest stores a pending Request
func (b *BadgerImpl) InsertRequest(request *Request) error {
	return b.update(func(txn *badger.Txn) error {
		key := uintKey(requestPrefix, request.Id)
		if ok, err := exists(txn, key); err != nil || ok {
			return errors.Errorf("Request %d already exists: %v", request.Id, err)
		}
		return putJSON(txn, key, request)
	})
}

// GetRequest returns the pending Request with the given id
func (b *BadgerImpl) GetRequest(id uint64) (*Request, error) {
	result := &Request{}
	err := b.view(func(txn *badger.Txn) error {
		return getJSON(txn, uintKey(requestPrefix, id), result)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Request %d", id)
	}
	return result, nil
}

func (b *BadgerImpl) filterRequests(keep func(*Request) bool) ([]*Request, error) {
	result := make([]*Request, 0)
	err := b.view(func(txn *badger.Txn) error {
		return scan(txn, requestPrefix, requestPrefix,
			func(val []byte) (bool, error) {
				r := &Request{}
				if err := json.Unmarshal(val, r); err != nil {
					return false, err
				}
				if keep(r) {
					result = append(result, r)
				}
				return true, nil
			})
	})
	return result, err
}

// GetRequests returns every pending Request ordered by id
func (b *BadgerImpl) GetRequests() ([]*Request, error) {
	return b.filterRequests(func(*Request) bool { return true })
}

// GetRecordRequests returns the pending Requests targeting a record
func (b *BadgerImpl) GetRecordRequests(recordId uint64) ([]*Request, error) {
	return b.filterRequests(func(r *Request) bool {
		return r.RecordId == recordId && r.GroupKey == ""
	})
}

// DeleteRequest removes a pending Request
func (b *BadgerImpl) DeleteRequest(id uint64) error {
	return b.update(func(txn *badger.Txn) error {
		key := uintKey(requestPrefix, id)
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		if !ok {
			return errors.WithMessagef(ErrNotFound, "Request %d", id)
		}
		return txn.Delete(key)
	})
}

// UpsertAnalysis inserts or replaces the Analysis of a record
func (b *BadgerImpl) UpsertAnalysis(analysis *Analysis) error {
	return b.update(func(txn *badger.Txn) error {
		return putJSON(txn, uintKey(analysisPrefix, analysis.RecordId), analysis)
	})
}

// GetAnalysis returns the Analysis of a record
func (b *BadgerImpl) GetAnalysis(recordId uint64) (*Analysis, error) {
	result := &Analysis{}
	err := b.view(func(txn *badger.Txn) error {
		return getJSON(txn, uintKey(analysisPrefix, recordId), result)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Analysis for record %d", recordId)
	}
	return result, nil
}

// UpsertGroupAnalysis inserts or replaces the GroupAnalysis of a group
func (b *BadgerImpl) UpsertGroupAnalysis(analysis *GroupAnalysis) error {
	return b.update(func(txn *badger.Txn) error {
		return putJSON(txn, stringKey(groupAnalysisPrefix, analysis.GroupKey), analysis)
	})
}

// GetGroupAnalysis returns the GroupAnalysis of a group
func (b *BadgerImpl) GetGroupAnalysis(groupKey string) (*GroupAnalysis, error) {
	result := &GroupAnalysis{}
	err := b.view(func(txn *badger.Txn) error {
		return getJSON(txn, stringKey(groupAnalysisPrefix, groupKey), result)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Analysis for group %q", groupKey)
	}
	return result, nil
}

// InsertEvent appends an Event
func (b *BadgerImpl) InsertEvent(event *Event) error {
	return b.update(func(txn *badger.Txn) error {
		key := uintKey(eventPrefix, event.Seq)
		if ok, err := exists(txn, key); err != nil || ok {
			return errors.Errorf("Event %d already exists: %v", event.Seq, err)
		}
		return putJSON(txn, key, event)
	})
}

// GetEvents returns up to limit Events with a sequence number above after
func (b *BadgerImpl) GetEvents(after uint64, limit int) ([]*Event, error) {
	result := make([]*Event, 0)
	if limit <= 0 {
		return result, nil
	}
	err := b.view(func(txn *badger.Txn) error {
		return scan(txn, eventPrefix, uintKey(eventPrefix, after+1),
			func(val []byte) (bool, error) {
				e := &Event{}
				if err := json.Unmarshal(val, e); err != nil {
					return false, err
				}
				result = append(result, e)
				return len(result) < limit, nil
			})
	})
	return result, err
}

// CountEvents returns the number of logged Events
func (b *BadgerImpl) CountEvents() (uint64, error) {
	var n uint64
	err := b.view(func(txn *badger.Txn) error {
		n = count(txn, eventPrefix)
		return nil
	})
	return n, err
}

// Transaction runs fn inside one badger update. Any error discards every
// write made by fn.
func (b *BadgerImpl) Transaction(fn func(db database) error) error {
	if b.txn != nil {
		return fn(b)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return fn(&BadgerImpl{db: b.db, txn: txn})
	})
}

// Close closes the badger store
func (b *BadgerImpl) Close() error {
	return b.db.Close()
}

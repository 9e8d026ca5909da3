////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles the Map backend for ledger storage

package storage

import (
	"sort"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

// Returns a copy of src so callers never share a struct with the map.
// Byte slices are shared; handles are replaced, never modified in place.
func mapCopy[T any](src *T) (*T, error) {
	dst := new(T)
	err := copier.Copy(dst, src)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to copy value out of map")
	}
	return dst, nil
}

// InsertRecord adds a Record to the Map. Ids must arrive in order.
func (m *MapImpl) InsertRecord(record *Record) error {
	m.Lock()
	defer m.Unlock()

	if record.Id != uint64(len(m.records))+1 {
		return errors.Errorf("Record %d inserted out of order, next id is %d",
			record.Id, len(m.records)+1)
	}
	cp, err := mapCopy(record)
	if err != nil {
		return err
	}
	m.records = append(m.records, cp)
	return nil
}

// GetRecord returns the Record with the given id
func (m *MapImpl) GetRecord(id uint64) (*Record, error) {
	m.Lock()
	defer m.Unlock()

	if id == 0 || id > uint64(len(m.records)) {
		return nil, errors.WithMessagef(ErrNotFound, "Record %d", id)
	}
	return mapCopy(m.records[id-1])
}

// CountRecords returns the number of stored Records
func (m *MapImpl) CountRecords() (uint64, error) {
	m.Lock()
	defer m.Unlock()
	return uint64(len(m.records)), nil
}

// InsertGroup adds a new Group to the Map
func (m *MapImpl) InsertGroup(group *Group) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.groups[group.Key]; ok {
		return errors.Errorf("Group %q already exists", group.Key)
	}
	cp, err := mapCopy(group)
	if err != nil {
		return err
	}
	m.groups[group.Key] = cp
	m.groupOrder = append(m.groupOrder, group.Key)
	return nil
}

// UpdateGroup replaces an existing Group in the Map
func (m *MapImpl) UpdateGroup(group *Group) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.groups[group.Key]; !ok {
		return errors.WithMessagef(ErrNotFound, "Group %q", group.Key)
	}
	cp, err := mapCopy(group)
	if err != nil {
		return err
	}
	m.groups[group.Key] = cp
	return nil
}

// GetGroup returns the Group with the given key
func (m *MapImpl) GetGroup(key string) (*Group, error) {
	m.Lock()
	defer m.Unlock()

	if val, ok := m.groups[key]; ok {
		return mapCopy(val)
	}
	return nil, errors.WithMessagef(ErrNotFound, "Group %q", key)
}

// GetGroupKeys returns every group key in creation order
func (m *MapImpl) GetGroupKeys() ([]string, error) {
	m.Lock()
	defer m.Unlock()

	keys := make([]string, len(m.groupOrder))
	copy(keys, m.groupOrder)
	return keys, nil
}

// CountGroups returns the number of stored Groups
func (m *MapImpl) CountGroups() (uint64, error) {
	m.Lock()
	defer m.Unlock()
	return uint64(len(m.groups)), nil
}

// InsertRequest adds a pending Request to the Map
func (m *MapImpl) InsertRequest(request *Request) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.requests[request.Id]; ok {
		return errors.Errorf("Request %d already exists", request.Id)
	}
	cp, err := mapCopy(request)
	if err != nil {
		return err
	}
	m.requests[request.Id] = cp
	return nil
}

// GetRequest returns the pending Request with the given id
func (m *MapImpl) GetRequest(id uint64) (*Request, error) {
	m.Lock()
	defer m.Unlock()

	if val, ok := m.requests[id]; ok {
		return mapCopy(val)
	}
	return nil, errors.WithMessagef(ErrNotFound, "Request %d", id)
}

// GetRequests returns every pending Request ordered by id
func (m *MapImpl) GetRequests() ([]*Request, error) {
	m.Lock()
	defer m.Unlock()

	return m.sortedRequests(func(*Request) bool { return true })
}

// GetRecordRequests returns the pending Requests targeting a record
func (m *MapImpl) GetRecordRequests(recordId uint64) ([]*Request, error) {
	m.Lock()
	defer m.Unlock()

	return m.sortedRequests(func(r *Request) bool {
		return r.RecordId == recordId && r.GroupKey == ""
	})
}

// Must be called while holding the lock
func (m *MapImpl) sortedRequests(keep func(*Request) bool) ([]*Request, error) {
	result := make([]*Request, 0)
	for _, r := range m.requests {
		if !keep(r) {
			continue
		}
		cp, err := mapCopy(r)
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

// DeleteRequest removes a pending Request from the Map
func (m *MapImpl) DeleteRequest(id uint64) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.requests[id]; !ok {
		return errors.WithMessagef(ErrNotFound, "Request %d", id)
	}
	delete(m.requests, id)
	return nil
}

// UpsertAnalysis inserts or replaces the Analysis of a record
func (m *MapImpl) UpsertAnalysis(analysis *Analysis) error {
	m.Lock()
	defer m.Unlock()

	cp, err := mapCopy(analysis)
	if err != nil {
		return err
	}
	m.analyses[analysis.RecordId] = cp
	return nil
}

// GetAnalysis returns the Analysis of a record
func (m *MapImpl) GetAnalysis(recordId uint64) (*Analysis, error) {
	m.Lock()
	defer m.Unlock()

	if val, ok := m.analyses[recordId]; ok {
		return mapCopy(val)
	}
	return nil, errors.WithMessagef(ErrNotFound, "Analysis for record %d", recordId)
}

// UpsertGroupAnalysis inserts or replaces the GroupAnalysis of a group
func (m *MapImpl) UpsertGroupAnalysis(analysis *GroupAnalysis) error {
	m.Lock()
	defer m.Unlock()

	cp, err := mapCopy(analysis)
	if err != nil {
		return err
	}
	m.groupAnalyses[analysis.GroupKey] = cp
	return nil
}

// GetGroupAnalysis returns the GroupAnalysis of a group
func (m *MapImpl) GetGroupAnalysis(groupKey string) (*GroupAnalysis, error) {
	m.Lock()
	defer m.Unlock()

	if val, ok := m.groupAnalyses[groupKey]; ok {
		return mapCopy(val)
	}
	return nil, errors.WithMessagef(ErrNotFound, "Analysis for group %q", groupKey)
}

// InsertEvent appends an Event. Sequence numbers must arrive in order.
func (m *MapImpl) InsertEvent(event *Event) error {
	m.Lock()
	defer m.Unlock()

	if event.Seq != uint64(len(m.events))+1 {
		return errors.Errorf("Event %d inserted out of order, next is %d",
			event.Seq, len(m.events)+1)
	}
	cp, err := mapCopy(event)
	if err != nil {
		return err
	}
	m.events = append(m.events, cp)
	return nil
}

// GetEvents returns up to limit Events with a sequence number above after
func (m *MapImpl) GetEvents(after uint64, limit int) ([]*Event, error) {
	m.Lock()
	defer m.Unlock()

	result := make([]*Event, 0)
	for i := after; i < uint64(len(m.events)) && len(result) < limit; i++ {
		cp, err := mapCopy(m.events[i])
		if err != nil {
			return nil, err
		}
		result = append(result, cp)
	}
	return result, nil
}

// CountEvents returns the number of logged Events
func (m *MapImpl) CountEvents() (uint64, error) {
	m.Lock()
	defer m.Unlock()
	return uint64(len(m.events)), nil
}

// Transaction runs fn directly against the Map. Writes are not rolled back.
func (m *MapImpl) Transaction(fn func(db database) error) error {
	return fn(m)
}

// Close is a no-op for the Map backend
func (m *MapImpl) Close() error {
	return nil
}

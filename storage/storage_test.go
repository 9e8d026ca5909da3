////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// Hidden function for one-time unit testing database implementation
// DROP TABLE records, groups, requests, analyses, group_analyses, events;
//func TestDatabaseImpl(t *testing.T) {
//	jwalterweatherman.SetLogThreshold(jwalterweatherman.LevelTrace)
//	jwalterweatherman.SetStdoutThreshold(jwalterweatherman.LevelTrace)
//
//	db, err := newDatabase("plume", "", "plume", "0.0.0.0", "5432", "", false)
//	if err != nil {
//		t.Errorf(err.Error())
//		return
//	}
//	testBackend(t, db)
//}

// Builds one of each backend that can run without external services
func testBackends(t *testing.T) map[string]database {
	bdb, err := newBadgerDatabase(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open badger backend: %+v", err)
	}
	t.Cleanup(func() { _ = bdb.Close() })

	return map[string]database{
		"map":    newMapDatabase(),
		"badger": bdb,
	}
}

func TestBackends(t *testing.T) {
	for name, db := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			testBackend(t, db)
		})
	}
}

func testBackend(t *testing.T, db database) {
	now := time.Unix(1650000000, 0).UTC()

	// Records
	for i := uint64(1); i <= 3; i++ {
		err := db.InsertRecord(&Record{Id: i, GroupKey: "Etna",
			So2: []byte{byte(i)}, Co2: []byte{2}, H2s: []byte{3},
			Altitude: []byte{4}, Timestamp: now})
		if err != nil {
			t.Fatalf("InsertRecord(%d) errored: %+v", i, err)
		}
	}
	rec, err := db.GetRecord(2)
	if err != nil {
		t.Fatalf("GetRecord() errored: %+v", err)
	}
	if !bytes.Equal(rec.So2, []byte{2}) || rec.GroupKey != "Etna" {
		t.Errorf("GetRecord() returned the wrong record: %+v", rec)
	}
	if _, err = db.GetRecord(4); !IsNotFound(err) {
		t.Errorf("GetRecord() on a missing id did not return ErrNotFound: %+v", err)
	}
	if n, _ := db.CountRecords(); n != 3 {
		t.Errorf("CountRecords() wrong\n\texpected: %d\n\treceived: %d", 3, n)
	}

	// Groups keep creation order
	for i, key := range []string{"Etna", "Aso", "Hekla"} {
		err = db.InsertGroup(&Group{Key: key, Seq: uint64(i + 1),
			SumX: []byte{0}, SumY: []byte{0}, Timestamp: now})
		if err != nil {
			t.Fatalf("InsertGroup(%s) errored: %+v", key, err)
		}
	}
	if err = db.InsertGroup(&Group{Key: "Aso", Seq: 9}); err == nil {
		t.Errorf("InsertGroup() accepted a duplicate key")
	}
	keys, err := db.GetGroupKeys()
	if err != nil {
		t.Fatalf("GetGroupKeys() errored: %+v", err)
	}
	if diff := cmp.Diff([]string{"Etna", "Aso", "Hekla"}, keys); diff != "" {
		t.Errorf("GetGroupKeys() order wrong (-expected +received):\n%s", diff)
	}
	err = db.UpdateGroup(&Group{Key: "Aso", Seq: 2, SumX: []byte{7},
		SumY: []byte{8}, Contributions: 1, Timestamp: now})
	if err != nil {
		t.Fatalf("UpdateGroup() errored: %+v", err)
	}
	grp, err := db.GetGroup("Aso")
	if err != nil {
		t.Fatalf("GetGroup() errored: %+v", err)
	}
	if !bytes.Equal(grp.SumX, []byte{7}) || grp.Contributions != 1 {
		t.Errorf("UpdateGroup() did not persist: %+v", grp)
	}
	if err = db.UpdateGroup(&Group{Key: "Fuji"}); !IsNotFound(err) {
		t.Errorf("UpdateGroup() on a missing group did not return ErrNotFound: %+v", err)
	}
	if n, _ := db.CountGroups(); n != 3 {
		t.Errorf("CountGroups() wrong\n\texpected: %d\n\treceived: %d", 3, n)
	}

	// Requests
	for _, r := range []*Request{
		{Id: 30, RecordId: 1, Handles: []byte{1}, Timestamp: now},
		{Id: 10, RecordId: 1, Handles: []byte{1}, Timestamp: now},
		{Id: 20, Kind: 1, GroupKey: "Etna", Handles: []byte{1}, Timestamp: now},
		{Id: 40, RecordId: 2, Handles: []byte{1}, Timestamp: now},
	} {
		if err = db.InsertRequest(r); err != nil {
			t.Fatalf("InsertRequest(%d) errored: %+v", r.Id, err)
		}
	}
	if err = db.InsertRequest(&Request{Id: 10}); err == nil {
		t.Errorf("InsertRequest() accepted a reused id")
	}
	all, _ := db.GetRequests()
	if len(all) != 4 || all[0].Id != 10 || all[3].Id != 40 {
		t.Errorf("GetRequests() not ordered by id: %+v", all)
	}
	forRecord, _ := db.GetRecordRequests(1)
	if len(forRecord) != 2 || forRecord[0].Id != 10 || forRecord[1].Id != 30 {
		t.Errorf("GetRecordRequests() returned the wrong requests: %+v", forRecord)
	}
	if err = db.DeleteRequest(10); err != nil {
		t.Errorf("DeleteRequest() errored: %+v", err)
	}
	if _, err = db.GetRequest(10); !IsNotFound(err) {
		t.Errorf("Deleted request still readable: %+v", err)
	}
	if err = db.DeleteRequest(10); !IsNotFound(err) {
		t.Errorf("Second DeleteRequest() did not return ErrNotFound: %+v", err)
	}

	// Analyses
	err = db.UpsertAnalysis(&Analysis{RecordId: 1})
	if err != nil {
		t.Fatalf("UpsertAnalysis() errored: %+v", err)
	}
	err = db.UpsertAnalysis(&Analysis{RecordId: 1, ClimateScore: 6,
		AviationScore: 90, Advisory: "aviation warning", Revealed: true,
		RevealedAt: now})
	if err != nil {
		t.Fatalf("UpsertAnalysis() errored: %+v", err)
	}
	ana, err := db.GetAnalysis(1)
	if err != nil {
		t.Fatalf("GetAnalysis() errored: %+v", err)
	}
	expected := &Analysis{RecordId: 1, ClimateScore: 6, AviationScore: 90,
		Advisory: "aviation warning", Revealed: true, RevealedAt: now}
	if diff := cmp.Diff(expected, ana); diff != "" {
		t.Errorf("GetAnalysis() wrong (-expected +received):\n%s", diff)
	}
	if _, err = db.GetAnalysis(9); !IsNotFound(err) {
		t.Errorf("GetAnalysis() on a missing id did not return ErrNotFound: %+v", err)
	}

	err = db.UpsertGroupAnalysis(&GroupAnalysis{GroupKey: "Etna", TotalX: 5,
		TotalY: 6, Contributions: 2, RequestId: 20, RequestedAt: now,
		RevealedAt: now})
	if err != nil {
		t.Fatalf("UpsertGroupAnalysis() errored: %+v", err)
	}
	gana, err := db.GetGroupAnalysis("Etna")
	if err != nil || gana.TotalX != 5 || gana.TotalY != 6 {
		t.Errorf("GetGroupAnalysis() wrong: %+v %+v", gana, err)
	}
	if _, err = db.GetGroupAnalysis("Aso"); !IsNotFound(err) {
		t.Errorf("GetGroupAnalysis() on a missing group did not return ErrNotFound: %+v", err)
	}

	// Events page in order
	for i := uint64(1); i <= 5; i++ {
		if err = db.InsertEvent(&Event{Seq: i, Kind: "test", Timestamp: now}); err != nil {
			t.Fatalf("InsertEvent(%d) errored: %+v", i, err)
		}
	}
	page, err := db.GetEvents(1, 3)
	if err != nil {
		t.Fatalf("GetEvents() errored: %+v", err)
	}
	if len(page) != 3 || page[0].Seq != 2 || page[2].Seq != 4 {
		t.Errorf("GetEvents() returned the wrong page: %+v", page)
	}
	if page, _ = db.GetEvents(5, 10); len(page) != 0 {
		t.Errorf("GetEvents() past the end returned %d events", len(page))
	}
	if n, _ := db.CountEvents(); n != 5 {
		t.Errorf("CountEvents() wrong\n\texpected: %d\n\treceived: %d", 5, n)
	}
}

// Tests that a failing transaction leaves no trace on the badger backend
func TestBadgerImpl_Transaction_Rollback(t *testing.T) {
	db, err := newBadgerDatabase(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open badger backend: %+v", err)
	}
	defer db.Close()
	s := &Storage{db}

	boom := errors.New("boom")
	err = s.Transaction(func(tx *Storage) error {
		if err := tx.InsertRecord(&Record{Id: 1, GroupKey: "Etna"}); err != nil {
			return err
		}
		if err := tx.InsertEvent(&Event{Seq: 1, Kind: "test"}); err != nil {
			return err
		}
		// writes are visible inside the transaction
		if _, err := tx.GetRecord(1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction() did not return fn's error: %+v", err)
	}

	if n, _ := s.CountRecords(); n != 0 {
		t.Errorf("Rolled back record is visible")
	}
	if n, _ := s.CountEvents(); n != 0 {
		t.Errorf("Rolled back event is visible")
	}

	err = s.Transaction(func(tx *Storage) error {
		return tx.InsertRecord(&Record{Id: 1, GroupKey: "Etna"})
	})
	if err != nil {
		t.Fatalf("Transaction() errored: %+v", err)
	}
	if _, err = s.GetRecord(1); err != nil {
		t.Errorf("Committed record not readable: %+v", err)
	}
}

// Tests that the map backend rejects records out of order
func TestMapImpl_InsertRecord_Order(t *testing.T) {
	m := newMapDatabase()
	if err := m.InsertRecord(&Record{Id: 2}); err == nil {
		t.Errorf("InsertRecord() accepted id 2 before id 1")
	}
	if err := m.InsertRecord(&Record{Id: 1}); err != nil {
		t.Errorf("InsertRecord() errored: %+v", err)
	}
}

// Tests that values read from the map cannot modify it
func TestMapImpl_GetGroup_Copy(t *testing.T) {
	m := newMapDatabase()
	_ = m.InsertGroup(&Group{Key: "Etna", Seq: 1, Contributions: 1})

	g, _ := m.GetGroup("Etna")
	g.Contributions = 99

	g, _ = m.GetGroup("Etna")
	if g.Contributions != 1 {
		t.Errorf("Map value was modified through a returned copy")
	}
}

// Tests that devMode falls back to the map backend
func TestNewStorage_DevMode(t *testing.T) {
	s, err := NewStorage("", "", "", "", "", "", true)
	if err != nil {
		t.Fatalf("NewStorage() errored: %+v", err)
	}
	if _, ok := s.database.(*MapImpl); !ok {
		t.Errorf("NewStorage() without connection info did not return a map backend")
	}
}

// Tests that production without a backend panics
func TestNewStorage_NoBackend(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("NewStorage() did not panic without a backend")
		}
	}()
	_, _ = NewStorage("", "", "", "", "", "", false)
}

// Tests that a badger path selects the badger backend
func TestNewStorage_Badger(t *testing.T) {
	s, err := NewStorage("", "", "", "", "", t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewStorage() errored: %+v", err)
	}
	defer s.Close()
	if _, ok := s.database.(*BadgerImpl); !ok {
		t.Errorf("NewStorage() with a path did not return a badger backend")
	}
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles the high level storage API.
// This layer merges the business logic layer and the database layer

package storage

// Storage API for the storage layer
type Storage struct {
	// Stored database interface
	database
}

// NewStorage Create a new Storage object wrapping a database interface.
// Postgres is used when address and port are set, an embedded badger store
// when path is set, and a map otherwise (devMode only).
func NewStorage(username, password, dbName, address, port, path string,
	devMode bool) (*Storage, error) {
	db, err := newDatabase(username, password, dbName, address, port, path, devMode)
	storage := &Storage{db}
	return storage, err
}

// NewMapStorage returns a Storage backed only by memory
func NewMapStorage() *Storage {
	return &Storage{newMapDatabase()}
}

// Transaction runs fn against a Storage whose writes are committed together.
// On the postgres and badger backends an error from fn rolls every write
// back. The map backend applies writes as they happen, so callers must do all
// of their validation before their first write.
func (s *Storage) Transaction(fn func(tx *Storage) error) error {
	return s.database.Transaction(func(db database) error {
		return fn(&Storage{db})
	})
}

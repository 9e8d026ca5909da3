////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles the database ORM for the ledger

package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Helper for forcing panics in the event of a CDE, otherwise acts as a pass-through
func catchCde(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		jww.FATAL.Panicf("Database call timed out: %+v", err.Error())
	}
	return err
}

// Converts gorm's missing row error into a wrapped ErrNotFound
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.WithMessagef(ErrNotFound, format, args...)
	}
	return catchCde(err)
}

// Runs fn with a query handle bound to the default timeout
func (d *DatabaseImpl) withTimeout(fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), DbTimeout*time.Second)
	defer cancel()
	return fn(d.db.WithContext(ctx))
}

// InsertRecord inserts the given Record into Database
func (d *DatabaseImpl) InsertRecord(record *Record) error {
	return d.withTimeout(func(db *gorm.DB) error {
		return catchCde(db.Create(record).Error)
	})
}

// GetRecord returns the Record with the given id
func (d *DatabaseImpl) GetRecord(id uint64) (*Record, error) {
	result := &Record{}
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Take(result, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err, "Record %d", id)
	}
	return result, nil
}

// CountRecords returns the number of stored Records
func (d *DatabaseImpl) CountRecords() (uint64, error) {
	var count int64
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Model(&Record{}).Count(&count).Error
	})
	return uint64(count), catchCde(err)
}

// InsertGroup inserts a new Group into Database
func (d *DatabaseImpl) InsertGroup(group *Group) error {
	return d.withTimeout(func(db *gorm.DB) error {
		return catchCde(db.Create(group).Error)
	})
}

// UpdateGroup overwrites the sums of an existing Group
func (d *DatabaseImpl) UpdateGroup(group *Group) error {
	return d.withTimeout(func(db *gorm.DB) error {
		result := db.Model(&Group{}).Where("key = ?", group.Key).
			Updates(map[string]interface{}{
				"sum_x":         group.SumX,
				"sum_y":         group.SumY,
				"contributions": group.Contributions,
				"timestamp":     group.Timestamp,
			})
		if result.Error != nil {
			return catchCde(result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.WithMessagef(ErrNotFound, "Group %q", group.Key)
		}
		return nil
	})
}

// GetGroup returns the Group with the given key
func (d *DatabaseImpl) GetGroup(key string) (*Group, error) {
	result := &Group{}
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Take(result, "key = ?", key).Error
	})
	if err != nil {
		return nil, notFound(err, "Group %q", key)
	}
	return result, nil
}

// GetGroupKeys returns every group key in creation order
func (d *DatabaseImpl) GetGroupKeys() ([]string, error) {
	var keys []string
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Model(&Group{}).Order("seq asc").Pluck("key", &keys).Error
	})
	return keys, catchCde(err)
}

// CountGroups returns the number of stored Groups
func (d *DatabaseImpl) CountGroups() (uint64, error) {
	var count int64
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Model(&Group{}).Count(&count).Error
	})
	return uint64(count), catchCde(err)
}

// InsertRequest inserts a pending Request into Database
func (d *DatabaseImpl) InsertRequest(request *Request) error {
	return d.withTimeout(func(db *gorm.DB) error {
		return catchCde(db.Create(request).Error)
	})
}

// GetRequest returns the pending Request with the given id
func (d *DatabaseImpl) GetRequest(id uint64) (*Request, error) {
	result := &Request{}
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Take(result, "id = ?", id).Error
	})
	if err != nil {
		return nil, notFound(err, "Request %d", id)
	}
	return result, nil
}

// GetRequests returns every pending Request ordered by id
func (d *DatabaseImpl) GetRequests() ([]*Request, error) {
	var result []*Request
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Order("id asc").Find(&result).Error
	})
	return result, catchCde(err)
}

// GetRecordRequests returns the pending Requests targeting a record
func (d *DatabaseImpl) GetRecordRequests(recordId uint64) ([]*Request, error) {
	var result []*Request
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Where("record_id = ? AND group_key = ?", recordId, "").
			Order("id asc").Find(&result).Error
	})
	return result, catchCde(err)
}

// DeleteRequest removes a pending Request from Database
func (d *DatabaseImpl) DeleteRequest(id uint64) error {
	return d.withTimeout(func(db *gorm.DB) error {
		result := db.Delete(&Request{}, "id = ?", id)
		if result.Error != nil {
			return catchCde(result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.WithMessagef(ErrNotFound, "Request %d", id)
		}
		return nil
	})
}

// UpsertAnalysis inserts the given Analysis or overwrites the stored one
func (d *DatabaseImpl) UpsertAnalysis(analysis *Analysis) error {
	return d.withTimeout(func(db *gorm.DB) error {
		return catchCde(db.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(analysis).Error)
	})
}

// GetAnalysis returns the Analysis of a record
func (d *DatabaseImpl) GetAnalysis(recordId uint64) (*Analysis, error) {
	result := &Analysis{}
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Take(result, "record_id = ?", recordId).Error
	})
	if err != nil {
		return nil, notFound(err, "Analysis for record %d", recordId)
	}
	return result, nil
}

// UpsertGroupAnalysis inserts the given GroupAnalysis or overwrites the stored one
func (d *DatabaseImpl) UpsertGroupAnalysis(analysis *GroupAnalysis) error {
	return d.withTimeout(func(db *gorm.DB) error {
		return catchCde(db.Clauses(clause.OnConflict{UpdateAll: true}).
			Create(analysis).Error)
	})
}

// GetGroupAnalysis returns the GroupAnalysis of a group
func (d *DatabaseImpl) GetGroupAnalysis(groupKey string) (*GroupAnalysis, error) {
	result := &GroupAnalysis{}
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Take(result, "group_key = ?", groupKey).Error
	})
	if err != nil {
		return nil, notFound(err, "Analysis for group %q", groupKey)
	}
	return result, nil
}

// InsertEvent appends an Event to Database
func (d *DatabaseImpl) InsertEvent(event *Event) error {
	return d.withTimeout(func(db *gorm.DB) error {
		return catchCde(db.Create(event).Error)
	})
}

// GetEvents returns up to limit Events with a sequence number above after
func (d *DatabaseImpl) GetEvents(after uint64, limit int) ([]*Event, error) {
	var result []*Event
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Where("seq > ?", after).Order("seq asc").Limit(limit).
			Find(&result).Error
	})
	return result, catchCde(err)
}

// CountEvents returns the number of logged Events
func (d *DatabaseImpl) CountEvents() (uint64, error) {
	var count int64
	err := d.withTimeout(func(db *gorm.DB) error {
		return db.Model(&Event{}).Count(&count).Error
	})
	return uint64(count), catchCde(err)
}

// Transaction runs fn inside a gorm transaction. Any error rolls back.
func (d *DatabaseImpl) Transaction(fn func(db database) error) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		return fn(&DatabaseImpl{db: tx})
	})
	return catchCde(err)
}

// Close closes the underlying connection pool
func (d *DatabaseImpl) Close() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

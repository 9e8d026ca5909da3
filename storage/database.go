////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles low level database control and interfaces

package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DbTimeout determines maximum runtime (in seconds) of specific DB queries
const DbTimeout = 1

// ErrNotFound is returned, wrapped, when a lookup matches nothing
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err is a wrapped ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// Interface declaration for storage methods
type database interface {
	InsertRecord(record *Record) error
	GetRecord(id uint64) (*Record, error)
	CountRecords() (uint64, error)

	InsertGroup(group *Group) error
	UpdateGroup(group *Group) error
	GetGroup(key string) (*Group, error)
	// Group keys in the order the groups were created
	GetGroupKeys() ([]string, error)
	CountGroups() (uint64, error)

	InsertRequest(request *Request) error
	GetRequest(id uint64) (*Request, error)
	GetRequests() ([]*Request, error)
	GetRecordRequests(recordId uint64) ([]*Request, error)
	DeleteRequest(id uint64) error

	UpsertAnalysis(analysis *Analysis) error
	GetAnalysis(recordId uint64) (*Analysis, error)

	UpsertGroupAnalysis(analysis *GroupAnalysis) error
	GetGroupAnalysis(groupKey string) (*GroupAnalysis, error)

	InsertEvent(event *Event) error
	// Events with a sequence number above after, oldest first
	GetEvents(after uint64, limit int) ([]*Event, error)
	CountEvents() (uint64, error)

	// Runs fn against a view of the database whose writes commit together
	Transaction(fn func(db database) error) error
	Close() error
}

// DatabaseImpl Struct implementing the database Interface with an underlying DB
type DatabaseImpl struct {
	db *gorm.DB // Stored database connection
}

// MapImpl Struct implementing the database Interface with an underlying Map
type MapImpl struct {
	records       []*Record
	groups        map[string]*Group
	groupOrder    []string
	requests      map[uint64]*Request
	analyses      map[uint64]*Analysis
	groupAnalyses map[string]*GroupAnalysis
	events        []*Event
	sync.Mutex
}

// BadgerImpl Struct implementing the database Interface with an embedded
// badger key-value store
type BadgerImpl struct {
	db *badger.DB
	// set while running inside Transaction
	txn *badger.Txn
}

// Record is one submitted observation. Its four fields are opaque ciphertext
// handles; it is never modified after insertion.
type Record struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement:false"`
	GroupKey string `gorm:"not null;index"`

	So2      []byte `gorm:"not null"`
	Co2      []byte `gorm:"not null"`
	H2s      []byte `gorm:"not null"`
	Altitude []byte `gorm:"not null"`

	Timestamp time.Time `gorm:"not null"`
}

// Group holds the two encrypted running sums of a group key
type Group struct {
	Key string `gorm:"primaryKey"`
	// Position in creation order, starting at 1
	Seq uint64 `gorm:"not null;uniqueIndex"`

	SumX []byte `gorm:"not null"`
	SumY []byte `gorm:"not null"`
	// Number of Accumulate calls folded into the sums
	Contributions uint64 `gorm:"not null"`

	Timestamp time.Time `gorm:"not null"`
}

// Request is a pending decryption, keyed by the id the oracle assigned it.
// Handles is the encoded list of exactly the ciphertexts sent to the oracle.
type Request struct {
	Id       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Kind     uint8  `gorm:"not null"`
	RecordId uint64 `gorm:"index"`
	GroupKey string

	Handles []byte `gorm:"not null"`
	// Group contributions covered by Handles
	Contributions uint64

	Timestamp time.Time `gorm:"not null"`
}

// Analysis is the per-record result; zeroed and unrevealed until the
// record's first verified decryption
type Analysis struct {
	RecordId      uint64 `gorm:"primaryKey;autoIncrement:false"`
	ClimateScore  uint64 `gorm:"not null"`
	AviationScore uint64 `gorm:"not null"`
	Advisory      string `gorm:"not null"`
	Revealed      bool   `gorm:"not null"`
	RevealedAt    time.Time
}

// GroupAnalysis holds the latest verified plaintext totals of a group
type GroupAnalysis struct {
	GroupKey      string `gorm:"primaryKey"`
	TotalX        uint32 `gorm:"not null"`
	TotalY        uint32 `gorm:"not null"`
	Contributions uint64 `gorm:"not null"`
	RequestId     uint64 `gorm:"not null"`
	// When the decrypted request was made
	RequestedAt time.Time `gorm:"not null"`
	RevealedAt  time.Time `gorm:"not null"`
}

// Event is one entry of the append-only event log
type Event struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Kind      string `gorm:"not null;index"`
	RecordId  uint64
	GroupKey  string
	RequestId uint64
	Timestamp time.Time `gorm:"not null"`
}

// Initialize the database interface with database backend
// Returns a database interface, close function, and error
func newDatabase(username, password, dbName, address, port, path string,
	devMode bool) (database, error) {
	var err error
	var db *gorm.DB

	// Connect to the database if the correct information is provided
	if address != "" && port != "" {
		// Create the database connection
		connectString := fmt.Sprintf(
			"host=%s port=%s user=%s dbname=%s sslmode=disable",
			address, port, username, dbName)
		// Handle empty database password
		if len(password) > 0 {
			connectString += fmt.Sprintf(" password=%s", password)
		}
		db, err = gorm.Open(postgres.Open(connectString), &gorm.Config{
			Logger: logger.New(jww.TRACE, logger.Config{LogLevel: logger.Info}),
		})
		if err == nil {
			return newGormDatabase(db)
		}
		jww.WARN.Printf("Unable to initialize database backend: %+v", err)
	}

	// Fall back to the embedded store when a path is configured
	if path != "" {
		bdb, bErr := newBadgerDatabase(path)
		if bErr == nil {
			return bdb, nil
		}
		err = bErr
		jww.WARN.Printf("Unable to initialize badger backend: %+v", bErr)
	}

	// Return the map-backend interface
	// in the event there is a database error or information is not provided
	var failReason string
	if err != nil {
		failReason = fmt.Sprintf("Unable to initialize database backend: %+v", err)
	} else {
		failReason = "Database backend connection information not provided"
		jww.WARN.Printf(failReason)
	}

	if !devMode {
		jww.FATAL.Panicf("Cannot run in production "+
			"without a database: %s", failReason)
	}

	defer jww.INFO.Println("Map backend initialized successfully!")
	return database(newMapDatabase()), nil
}

func newMapDatabase() *MapImpl {
	return &MapImpl{
		groups:        make(map[string]*Group),
		requests:      make(map[uint64]*Request),
		analyses:      make(map[uint64]*Analysis),
		groupAnalyses: make(map[string]*GroupAnalysis),
	}
}

func newGormDatabase(db *gorm.DB) (database, error) {
	// Get and configure the internal database ConnPool
	sqlDb, err := db.DB()
	if err != nil {
		return database(&DatabaseImpl{}), errors.Errorf("Unable to configure database connection pool: %+v", err)
	}
	// SetMaxIdleConns sets the maximum number of connections in the idle connection pool.
	sqlDb.SetMaxIdleConns(10)
	// SetMaxOpenConns sets the maximum number of open connections to the Database.
	sqlDb.SetMaxOpenConns(100)
	// SetConnMaxLifetime sets the maximum amount of time a connection may be reused.
	sqlDb.SetConnMaxLifetime(24 * time.Hour)

	// Initialize the database schema
	// WARNING: Order is important. Do not change without database testing
	models := []interface{}{&Record{}, &Group{}, &Request{}, &Analysis{},
		&GroupAnalysis{}, &Event{}}
	for _, model := range models {
		err = db.AutoMigrate(model)
		if err != nil {
			return database(&DatabaseImpl{}), err
		}
	}

	// Build the interface
	di := &DatabaseImpl{
		db: db,
	}

	jww.INFO.Println("Database backend initialized successfully!")
	return database(di), nil
}

func newBadgerDatabase(path string) (database, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not open badger store at %s", path)
	}
	jww.INFO.Printf("Badger backend initialized successfully at %s!", path)
	return database(&BadgerImpl{db: db}), nil
}

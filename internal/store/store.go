// Package store implements the document store the dedup engine runs
// against: two collections, "record" and "dedup", each addressable by
// primary id. Records are also addressable by equality on their
// candidate-key fields and on (source_id, host_record_id).
package store

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/catalogmerge/dedupengine/internal/domain"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// Records and DedupGroups are the two collections the engine mutates.
	Records *Collection[domain.Record]
	Groups  *Collection[domain.DedupGroup]
}

// New creates a new Store instance backed by the database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging.
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes.
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup.

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}

	s.initRecords()
	s.initGroups()

	if logger != nil {
		logger.Info("document store opened", "path", path)
	}

	return s, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing document store")
	}
	return s.db.Close()
}

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// initRecords initializes the Records collection with the three
// candidate-key indexes the generator queries in priority order, plus the
// host/linking-id index the cascader uses to fetch component parts.
func (s *Store) initRecords() {
	s.Records = NewCollection[domain.Record](s, "record:").
		WithIndex("isbn_keys", func(r *domain.Record) []string { return r.ISBNKeys }).
		WithIndex("id_keys", func(r *domain.Record) []string { return r.IDKeys }).
		WithIndex("title_keys", func(r *domain.Record) []string { return r.TitleKeys }).
		WithIndex("host_component", func(r *domain.Record) []string {
			if r.HostRecordID == "" {
				return nil
			}
			return []string{r.SourceID + "\x00" + r.HostRecordID}
		})
}

// initGroups initializes the Groups collection. Groups are only ever
// fetched by primary id, so no secondary index is defined.
func (s *Store) initGroups() {
	s.Groups = NewCollection[domain.DedupGroup](s, "dedup:")
}

// HostComponentKey builds the composite index key used to look up a host
// record's component parts by (source_id, linking_id).
func HostComponentKey(sourceID, linkingID string) string {
	return sourceID + "\x00" + linkingID
}

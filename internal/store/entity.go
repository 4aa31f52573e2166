package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Index defines a secondary index on a collection. Unlike the teacher's
// single-value index, keyGen may return several keys for one document
// (a record's several title_keys), and several documents may share one
// key — the posting list under "alpha" holds every record whose title
// key is "alpha".
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// Collection provides generic CRUD and secondary-index queries for one
// document type, backed by a Store's Badger database.
type Collection[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// NewCollection creates a new Collection for type T under the given key prefix.
func NewCollection[T any](s *Store, prefix string) *Collection[T] {
	return &Collection[T]{store: s, prefix: prefix}
}

// WithIndex registers a secondary index. keyGen may return zero, one, or
// several keys for a document; a document is omitted from the index
// entirely when keyGen returns none.
func (c *Collection[T]) WithIndex(name string, keyGen func(*T) []string) *Collection[T] {
	c.indexes = append(c.indexes, Index[T]{name: name, keyGen: keyGen})
	return c
}

func (c *Collection[T]) primaryKey(id string) []byte {
	return []byte(c.prefix + id)
}

func (c *Collection[T]) indexEntryKey(indexName, key, id string) []byte {
	return []byte(c.prefix + "idx:" + indexName + ":" + key + "\x00" + id)
}

func (c *Collection[T]) indexPrefix(indexName, key string) []byte {
	return []byte(c.prefix + "idx:" + indexName + ":" + key + "\x00")
}

// Insert creates a new document with the given id. Returns ErrAlreadyExists
// if a document with this id already exists.
func (c *Collection[T]) Insert(ctx context.Context, id string, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := c.primaryKey(id)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return c.store.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}

		return c.writeIndexEntries(txn, id, doc)
	})
}

// Get retrieves a document by id. Returns ErrNotFound if it does not exist.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc T
	err := c.store.get(c.primaryKey(id), &doc)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Exists reports whether a document with id is present.
func (c *Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.store.exists(c.primaryKey(id))
}

// Save upserts a document by id, reconciling index postings against
// whatever document was previously stored under that id.
func (c *Collection[T]) Save(ctx context.Context, id string, doc *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := c.primaryKey(id)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return c.store.db.Update(func(txn *badger.Txn) error {
		var old T
		hadOld := true
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			hadOld = false
		case err != nil:
			return fmt.Errorf("failed to get existing key: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &old)
			}); err != nil {
				return fmt.Errorf("failed to unmarshal existing document: %w", err)
			}
		}

		if hadOld {
			if err := c.deleteIndexEntries(txn, id, &old); err != nil {
				return err
			}
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}

		return c.writeIndexEntries(txn, id, doc)
	})
}

// Delete removes a document by id. Idempotent: no error if it doesn't exist.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := c.primaryKey(id)

	return c.store.db.Update(func(txn *badger.Txn) error {
		var doc T
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return fmt.Errorf("failed to unmarshal document: %w", err)
		}

		if err := c.deleteIndexEntries(txn, id, &doc); err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

func (c *Collection[T]) writeIndexEntries(txn *badger.Txn, id string, doc *T) error {
	for _, idx := range c.indexes {
		for _, key := range idx.keyGen(doc) {
			if key == "" {
				continue
			}
			if err := txn.Set(c.indexEntryKey(idx.name, key, id), nil); err != nil {
				return fmt.Errorf("failed to set index entry %s/%s: %w", idx.name, key, err)
			}
		}
	}
	return nil
}

func (c *Collection[T]) deleteIndexEntries(txn *badger.Txn, id string, doc *T) error {
	for _, idx := range c.indexes {
		for _, key := range idx.keyGen(doc) {
			if key == "" {
				continue
			}
			if err := txn.Delete(c.indexEntryKey(idx.name, key, id)); err != nil {
				return fmt.Errorf("failed to delete index entry %s/%s: %w", idx.name, key, err)
			}
		}
	}
	return nil
}

// idsForIndexKey collects the ids currently posted under (indexName, key),
// in Badger's iteration order, within a single short-lived read transaction.
func (c *Collection[T]) idsForIndexKey(indexName, key string) ([]string, error) {
	prefix := c.indexPrefix(indexName, key)

	var ids []string
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			full := string(it.Item().Key())
			ids = append(ids, full[len(prefix):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan index %s/%s: %w", indexName, key, err)
	}
	return ids, nil
}

// Find returns a lazy cursor over the documents posted under (indexName,
// key). Consumers may stop iterating early (break out of a range-over-func
// loop); documents past the break point are never fetched.
func (c *Collection[T]) Find(ctx context.Context, indexName, key string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		ids, err := c.idsForIndexKey(indexName, key)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			doc, err := c.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				// Posting outlived its document; skip rather than surface
				// a dangling reference from this read path.
				continue
			}
			if !yield(doc, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// FindOne returns the first document posted under (indexName, key), or
// ErrNotFound if none exists.
func (c *Collection[T]) FindOne(ctx context.Context, indexName, key string) (*T, error) {
	for doc, err := range c.Find(ctx, indexName, key) {
		return doc, err
	}
	return nil, ErrNotFound
}

// Count returns the number of documents posted under (indexName, key), up
// to limit. A limit of 0 means unlimited. This is the store's
// find(...).limit(n).count() shape; it reads the whole posting list but
// never the documents themselves.
func (c *Collection[T]) Count(indexName, key string, limit int) (int, error) {
	ids, err := c.idsForIndexKey(indexName, key)
	if err != nil {
		return 0, err
	}
	if limit > 0 && len(ids) > limit {
		return limit, nil
	}
	return len(ids), nil
}

// Update applies mutate to every document posted under (indexName, key),
// persisting each one mutate reports changed. If multi is false, only the
// first matching document is considered. Returns the number of documents
// persisted.
func (c *Collection[T]) Update(ctx context.Context, indexName, key string, mutate func(*T) bool, multi bool) (int, error) {
	ids, err := c.idsForIndexKey(indexName, key)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		doc, err := c.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}

		if mutate(doc) {
			if err := c.Save(ctx, id, doc); err != nil {
				return updated, err
			}
			updated++
		}

		if !multi {
			break
		}
	}
	return updated, nil
}

// List returns a lazy cursor over every document in the collection,
// skipping index postings.
func (c *Collection[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(c.prefix)

		c.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}

				key := string(it.Item().Key())
				if len(key) > len(c.prefix) && strings.HasPrefix(key[len(c.prefix):], "idx:") {
					continue
				}

				var doc T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &doc)
				}); err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&doc, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// Package history archives finalized transcript lines across sessions.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Entry is one archived transcript line.
type Entry struct {
	Session string    `json:"session"`
	Seq     int       `json:"seq"`
	Text    string    `json:"text"`
	Lang    string    `json:"lang,omitempty"`
	At      time.Time `json:"at"`
}

const linePrefix = "line/"

// Store is a badger-backed archive of transcript lines.
type Store struct {
	db *badger.DB
}

// Open opens the archive at dir, creating it if needed. An empty dir
// keeps the archive in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Append archives one line. A zero At is stamped with the current time.
func (s *Store) Append(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	// Keys sort chronologically; session and seq break nanosecond ties.
	key := fmt.Sprintf("%s%020d/%s/%06d", linePrefix, e.At.UnixNano(), e.Session, e.Seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
}

// Recent returns up to n of the most recently archived lines, oldest
// first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(linePrefix)
		seek := append([]byte(linePrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(entries) < n; it.Next() {
			var e Entry
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &e)
			})
			if err != nil {
				return fmt.Errorf("decode history entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close flushes and closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package history keeps a persistent log of connection events (accepts and
// evictions) so the operator can see who came and went, including across
// restarts.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// FileName is the database file created inside the data directory.
const FileName = "history.db"

var bucketEvents = []byte("events")

// Kind names what happened to a connection.
type Kind string

const (
	KindAccepted Kind = "accepted"
	KindEvicted  Kind = "evicted"
)

// Event is one stored record.
type Event struct {
	Seq    uint64    `json:"seq"`
	Kind   Kind      `json:"kind"`
	Addr   string    `json:"addr"`
	Time   time.Time `json:"time"`
	Detail string    `json:"detail,omitempty"` // e.g. the probe error for evictions
}

// Log is an append-only event store backed by bbolt.
type Log struct {
	db *bolt.DB
}

// Open opens (or creates) the history database in dir.
func Open(dir string) (*Log, error) {
	db, err := bolt.Open(filepath.Join(dir, FileName), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends an event stamped with the current time.
func (l *Log) Record(kind Kind, addr, detail string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketEvents)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(Event{
			Seq:    seq,
			Kind:   kind,
			Addr:   addr,
			Time:   time.Now().UTC(),
			Detail: detail,
		})
		if err != nil {
			return err
		}
		return bkt.Put(seqKey(seq), data)
	})
}

// Recent returns up to n of the newest events, oldest first.
func (l *Log) Recent(n int) ([]Event, error) {
	if n <= 0 {
		return nil, errors.New("history: n must be positive")
	}
	var out []Event
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	var n int
	l.db.View(func(tx *bolt.Tx) error { //nolint:errcheck
		n = tx.Bucket(bucketEvents).Stats().KeyN
		return nil
	})
	return n
}

// seqKey encodes seq big-endian so bbolt's byte order is insertion order.
func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"stakehub/internal/domain"

	"go.etcd.io/bbolt"
)

var (
	bucketEvents    = []byte("events")
	bucketBySubject = []byte("events_by_subject")
)

// Bolt persists events in a bbolt file. Events are keyed by a monotonically
// increasing sequence; a per-subject index bucket maps subject to sequences.
type Bolt struct {
	db *bbolt.DB
}

var _ Sink = (*Bolt)(nil)

// OpenBolt opens or creates the journal at path, creating parent directories.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketBySubject} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("journal: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) Append(_ context.Context, ev Event) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket(bucketEvents)
		seq, err := events.NextSequence()
		if err != nil {
			return fmt.Errorf("journal: next sequence: %w", err)
		}
		ev.Seq = seq

		data, err := encodeGob(ev)
		if err != nil {
			return fmt.Errorf("journal: encode event: %w", err)
		}
		key := seqKey(seq)
		if err := events.Put(key, data); err != nil {
			return fmt.Errorf("journal: put event: %w", err)
		}

		idx, err := tx.Bucket(bucketBySubject).CreateBucketIfNotExists([]byte(ev.Subject))
		if err != nil {
			return fmt.Errorf("journal: subject index: %w", err)
		}
		return idx.Put(key, nil)
	})
}

func (b *Bolt) List(_ context.Context, subject domain.PoolID) ([]Event, error) {
	var out []Event
	err := b.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketBySubject).Bucket([]byte(subject))
		if idx == nil {
			return nil
		}
		events := tx.Bucket(bucketEvents)
		return idx.ForEach(func(k, _ []byte) error {
			data := events.Get(k)
			if data == nil {
				return fmt.Errorf("journal: dangling index entry %d", binary.BigEndian.Uint64(k))
			}
			var ev Event
			if err := decodeGob(data, &ev); err != nil {
				return fmt.Errorf("journal: decode event: %w", err)
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

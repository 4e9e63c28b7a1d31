package stake

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"stakehub/internal/domain"

	"go.etcd.io/bbolt"
)

var (
	bucketPools             = []byte("pools")
	bucketStakes            = []byte("stakes")
	bucketPoolParticipants  = []byte("pool_participants")
	bucketRounds            = []byte("rounds")
	bucketCommitments       = []byte("commitments")
	bucketRoundParticipants = []byte("round_participants")
)

// Bolt is a Backend over a bbolt file. Every record is stored under its
// natural key, so saving a record again overwrites the previous version.
type Bolt struct {
	db *bbolt.DB
}

var _ Backend = (*Bolt)(nil)

// OpenBolt opens or creates the state file at path, creating parent directories.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("stake: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("stake: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketPools, bucketStakes, bucketPoolParticipants,
			bucketRounds, bucketCommitments, bucketRoundParticipants,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("stake: create bucket %q: %w", name, err)
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

// Save writes the whole batch in one bbolt transaction.
func (b *Bolt) Save(batch *Batch) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, p := range batch.Pools {
			if err := put(tx, bucketPools, idKey(p.ID), p); err != nil {
				return err
			}
		}
		for _, st := range batch.Stakes {
			if err := put(tx, bucketStakes, stakeKey(st.PoolID, st.Participant, st.Choice), st); err != nil {
				return err
			}
		}
		for _, e := range batch.PoolParticipants {
			if err := put(tx, bucketPoolParticipants, participantKey(e.ID, e.Address), e); err != nil {
				return err
			}
		}
		for _, r := range batch.Rounds {
			if err := put(tx, bucketRounds, idKey(r.ID), r); err != nil {
				return err
			}
		}
		for _, c := range batch.Commitments {
			if err := put(tx, bucketCommitments, participantKey(c.RoundID, c.Participant), c); err != nil {
				return err
			}
		}
		for _, e := range batch.RoundParticipants {
			if err := put(tx, bucketRoundParticipants, participantKey(e.ID, e.Address), e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Load() (*Batch, error) {
	out := &Batch{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		if err := each(tx, bucketPools, func(p domain.Pool) { out.Pools = append(out.Pools, p) }); err != nil {
			return err
		}
		if err := each(tx, bucketStakes, func(st domain.UserStake) { out.Stakes = append(out.Stakes, st) }); err != nil {
			return err
		}
		if err := each(tx, bucketPoolParticipants, func(e Participant) { out.PoolParticipants = append(out.PoolParticipants, e) }); err != nil {
			return err
		}
		if err := each(tx, bucketRounds, func(r domain.Round) { out.Rounds = append(out.Rounds, r) }); err != nil {
			return err
		}
		if err := each(tx, bucketCommitments, func(c domain.Commitment) { out.Commitments = append(out.Commitments, c) }); err != nil {
			return err
		}
		return each(tx, bucketRoundParticipants, func(e Participant) { out.RoundParticipants = append(out.RoundParticipants, e) })
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func put(tx *bbolt.Tx, bucket, key []byte, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("stake: encode %s record: %w", bucket, err)
	}
	if err := tx.Bucket(bucket).Put(key, buf.Bytes()); err != nil {
		return fmt.Errorf("stake: put %s record: %w", bucket, err)
	}
	return nil
}

func each[T any](tx *bbolt.Tx, bucket []byte, fn func(T)) error {
	return tx.Bucket(bucket).ForEach(func(k, data []byte) error {
		var v T
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
			return fmt.Errorf("stake: decode %s record %q: %w", bucket, k, err)
		}
		fn(v)
		return nil
	})
}

func idKey(id domain.PoolID) []byte {
	return []byte(id)
}

// participantKey is the id, a zero byte, then the address.
func participantKey(id domain.PoolID, a domain.Address) []byte {
	k := make([]byte, 0, len(id)+1+len(a))
	k = append(k, id...)
	k = append(k, 0)
	return append(k, a.Bytes()...)
}

func stakeKey(id domain.PoolID, a domain.Address, c domain.Choice) []byte {
	return append(participantKey(id, a), byte(c))
}

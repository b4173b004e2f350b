package counter

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var defaultBoltBucket = []byte("goguard_counters")

// BoltStore implements [Store] on an embedded bbolt database. bbolt allows a
// single writer at a time, so every Update transaction is atomic with respect
// to concurrent callers in the same process. It is not a shared store across
// processes; use Redis or SQL for that.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// BoltOptions configures [OpenBoltStore].
type BoltOptions struct {
	Bucket      string
	OpenTimeout time.Duration
	Now         func() time.Time
}

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path string, opts BoltOptions) (*BoltStore, error) {
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt %s: %v", ErrUnavailable, path, err)
	}

	s, err := NewBoltStore(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewBoltStore uses an already opened database and ensures the bucket exists.
func NewBoltStore(db *bolt.DB, opts BoltOptions) (*BoltStore, error) {
	bucket := defaultBoltBucket
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bucket: %v", ErrUnavailable, err)
	}

	return &BoltStore{db: db, bucket: bucket, now: now}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// boltRecord is encoded as count (8 bytes) followed by expiry in unix nanos (8 bytes).
type boltRecord struct {
	count     int64
	expiresAt int64
}

func decodeBoltRecord(v []byte) (boltRecord, bool) {
	if len(v) != 16 {
		return boltRecord{}, false
	}
	return boltRecord{
		count:     int64(binary.BigEndian.Uint64(v[:8])),
		expiresAt: int64(binary.BigEndian.Uint64(v[8:])),
	}, true
}

func (r boltRecord) encode() []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint64(out[:8], uint64(r.count))
	binary.BigEndian.PutUint64(out[8:], uint64(r.expiresAt))
	return out
}

// read returns the live record for key inside a transaction.
func (s *BoltStore) read(tx *bolt.Tx, key string, now int64) (boltRecord, bool) {
	v := tx.Bucket(s.bucket).Get([]byte(key))
	if v == nil {
		return boltRecord{}, false
	}
	rec, ok := decodeBoltRecord(v)
	if !ok || rec.expiresAt <= now {
		return boltRecord{}, false
	}
	return rec, true
}

func (s *BoltStore) Get(_ context.Context, key string) (int64, bool, error) {
	var rec boltRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, found = s.read(tx, key, s.now().UnixNano())
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !found || rec.count <= 0 {
		return 0, false, nil
	}
	return rec.count, true, nil
}

func (s *BoltStore) IncrementOrCreate(_ context.Context, key string, delta int64, ttlOnCreate time.Duration) (int64, error) {
	if err := checkIncrement(key, ttlOnCreate); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		now := s.now()
		rec, ok := s.read(tx, key, now.UnixNano())
		if !ok {
			rec = boltRecord{expiresAt: now.Add(ttlOnCreate).UnixNano()}
		}
		rec.count += delta
		count = rec.count
		return tx.Bucket(s.bucket).Put([]byte(key), rec.encode())
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (s *BoltStore) RemainingTTL(_ context.Context, key string) (time.Duration, error) {
	var remaining time.Duration
	err := s.db.View(func(tx *bolt.Tx) error {
		now := s.now().UnixNano()
		if rec, ok := s.read(tx, key, now); ok {
			remaining = time.Duration(rec.expiresAt - now)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return remaining, nil
}

func (s *BoltStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		now := s.now()
		rec, ok := s.read(tx, key, now.UnixNano())
		if !ok {
			return nil
		}
		rec.expiresAt = now.Add(ttl).UnixNano()
		return tx.Bucket(s.bucket).Put([]byte(key), rec.encode())
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep deletes expired and undecodable records.
func (s *BoltStore) Sweep(_ context.Context) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		now := s.now().UnixNano()
		b := tx.Bucket(s.bucket)

		var expired [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if rec, ok := decodeBoltRecord(v); ok && rec.expiresAt > now {
				continue
			}
			expired = append(expired, append([]byte(nil), k...))
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed, nil
}

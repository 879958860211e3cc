package swap

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

var swapBucket = []byte("swaps")

// BboltStore persists records as JSON in a bbolt bucket keyed by swap id.
type BboltStore struct {
	db *bbolt.DB
}

var _ Store = (*BboltStore)(nil)

// NewBboltStore creates the swaps bucket if needed.
func NewBboltStore(db *bbolt.DB) (*BboltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(swapBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create swaps bucket: %w", err)
	}

	return &BboltStore{db: db}, nil
}

func (p *BboltStore) Create(rec *Record) error {
	return p.put(rec, false)
}

func (p *BboltStore) Update(rec *Record) error {
	return p.put(rec, true)
}

func (p *BboltStore) put(rec *Record, mustExist bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return p.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(swapBucket)
		if b == nil {
			return errors.New("bucket nil")
		}
		exists := b.Get([]byte(rec.ID)) != nil
		switch {
		case mustExist && !exists:
			return ErrDoesNotExist
		case !mustExist && exists:
			return ErrAlreadyExists
		}

		return b.Put([]byte(rec.ID), data)
	})
}

func (p *BboltStore) GetByID(id string) (*Record, error) {
	var data []byte
	err := p.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(swapBucket)
		if b == nil {
			return errors.New("bucket nil")
		}
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s: %w", id, ErrDoesNotExist)
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return decodeRecord(data)
}

// ListAll returns every record in key order. ksuid keys sort by creation time.
func (p *BboltStore) ListAll() ([]*Record, error) {
	var out []*Record
	err := p.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(swapBucket)
		if b == nil {
			return errors.New("bucket nil")
		}

		return b.ForEach(func(_, v []byte) error {
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			out = append(out, rec)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

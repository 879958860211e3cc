package swap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDoesNotExist  = errors.New("swap does not exist")
	ErrAlreadyExists = errors.New("swap already exists")
)

// Store persists swap records.
type Store interface {
	Create(rec *Record) error
	Update(rec *Record) error
	GetByID(id string) (*Record, error)
	ListAll() ([]*Record, error)
}

// MemoryStore keeps records in memory. Records are copied in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Create(rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[rec.ID]; ok {
		return ErrAlreadyExists
	}
	s.data[rec.ID] = b

	return nil
}

func (s *MemoryStore) Update(rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[rec.ID]; !ok {
		return ErrDoesNotExist
	}
	s.data[rec.ID] = b

	return nil
}

func (s *MemoryStore) GetByID(id string) (*Record, error) {
	s.mu.RLock()
	b, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrDoesNotExist)
	}

	return decodeRecord(b)
}

func (s *MemoryStore) ListAll() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := decodeRecord(s.data[id])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// decodeRecord keeps journal numbers as json.Number so amounts in reports survive exactly.
func decodeRecord(b []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	rec := &Record{}
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("failed to decode swap record: %w", err)
	}

	return rec, nil
}

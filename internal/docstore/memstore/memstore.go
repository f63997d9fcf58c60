// Package memstore keeps documents in process memory.
package memstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mrlokans/healthbook/internal/docstore"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

func New() *Store {
	return &Store{docs: make(map[string]map[string][]byte)}
}

func (s *Store) WriteDocument(ctx context.Context, collection, key string, value any) error {
	if err := docstore.Validate(collection, key); err != nil {
		return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return &docstore.Error{Op: "encode", Collection: collection, Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string][]byte)
	}
	s.docs[collection][key] = data
	return nil
}

// Read decodes a stored document into dst. It reports false if the document does not exist.
// Documents are write-only for the application; Read serves tests and operators.
func (s *Store) Read(collection, key string, dst any) (bool, error) {
	s.mu.RLock()
	data, ok := s.docs[collection][key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

package store

import (
	"context"
	"sync"
)

// MemoryStore implements DocumentStore using in-process maps. It backs
// tests and local development where no remote store is reachable.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]Document // collection -> docID -> document
	closed bool
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]Document),
	}
}

// Set replaces the document at collection/docID
func (s *MemoryStore) Set(ctx context.Context, collection, docID string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.data[collection]
	if !ok {
		coll = make(map[string]Document)
		s.data[collection] = coll
	}

	copied := make(Document, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	coll[docID] = copied
	return nil
}

// Merge upserts only the given fields of the document
func (s *MemoryStore) Merge(ctx context.Context, collection, docID string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.data[collection]
	if !ok {
		coll = make(map[string]Document)
		s.data[collection] = coll
	}

	doc, ok := coll[docID]
	if !ok {
		doc = make(Document)
		coll[docID] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

// Get retrieves a document; ErrNotFound when it does not exist
func (s *MemoryStore) Get(ctx context.Context, collection, docID string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[collection][docID]
	if !ok {
		return nil, ErrNotFound
	}

	copied := make(Document, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	return copied, nil
}

// Delete removes a document
func (s *MemoryStore) Delete(ctx context.Context, collection, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[collection], docID)
	return nil
}

// List returns every document in the collection
func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.data[collection]))
	for _, doc := range s.data[collection] {
		copied := make(Document, len(doc))
		for k, v := range doc {
			copied[k] = v
		}
		docs = append(docs, copied)
	}
	return docs, nil
}

// Ping always succeeds while the store is open
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close marks the store closed
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called (used by shutdown tests)
func (s *MemoryStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryObject struct {
	content []byte
	version string
}

// MemoryStore is a process-local VersionedStore used by tests and by the
// "memory" backend.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string]memoryObject
	failWith error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, "", s.failWith
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return append([]byte(nil), obj.content...), obj.version, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, content []byte, expectedVersion string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", s.failWith
	}
	obj, exists := s.objects[key]
	if !exists && expectedVersion != "" || exists && obj.version != expectedVersion {
		return "", fmt.Errorf("%w: %s", ErrVersionConflict, key)
	}
	version := uuid.NewString()
	s.objects[key] = memoryObject{content: append([]byte(nil), content...), version: version}
	return version, nil
}

// SetFailure makes every call return err until it is reset with nil.
func (s *MemoryStore) SetFailure(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

func (s *MemoryStore) Close() error { return nil }

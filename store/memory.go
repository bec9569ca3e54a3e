// Package store provides tuple store implementations: an in-memory store
// for tests and single-process demos, and a database/sql store for
// PostgreSQL (lib/pq) and SQLite (go-sqlite3) durable deployments.
//
// Both implementations satisfy rebar.TupleStore: atomic write batches,
// read-your-writes within the process, empty reads instead of NotFound,
// and revision tokens returned from every write.
package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/rebar-authz/rebar"
)

// MemoryStore is a thread-safe in-memory tuple store. Writes apply under
// a single lock, so a batch is atomic by construction and reads always
// observe a self-consistent snapshot.
type MemoryStore struct {
	mu        sync.RWMutex
	byObject  map[rebar.Object]map[rebar.Tuple]struct{}
	bySubject map[rebar.Object]map[rebar.Tuple]struct{}
	revision  uint64
}

// NewMemoryStore creates an empty in-memory tuple store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byObject:  make(map[rebar.Object]map[rebar.Tuple]struct{}),
		bySubject: make(map[rebar.Object]map[rebar.Tuple]struct{}),
	}
}

// Write applies the batch atomically. Adding an existing tuple and
// removing a missing one are no-ops. A cancelled context aborts before
// anything is applied; once the lock is held the whole batch goes in.
func (s *MemoryStore) Write(ctx context.Context, req rebar.WriteRequest) (rebar.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range req.Removes {
		s.remove(t)
	}
	for _, t := range req.Adds {
		s.add(t)
	}

	s.revision++
	return rebar.Revision("mem-" + strconv.FormatUint(s.revision, 10)), nil
}

func (s *MemoryStore) add(t rebar.Tuple) {
	if s.byObject[t.Object] == nil {
		s.byObject[t.Object] = make(map[rebar.Tuple]struct{})
	}
	s.byObject[t.Object][t] = struct{}{}

	if !t.Subject.Userset() {
		if s.bySubject[t.Subject.Object] == nil {
			s.bySubject[t.Subject.Object] = make(map[rebar.Tuple]struct{})
		}
		s.bySubject[t.Subject.Object][t] = struct{}{}
	}
}

func (s *MemoryStore) remove(t rebar.Tuple) {
	delete(s.byObject[t.Object], t)
	if !t.Subject.Userset() {
		delete(s.bySubject[t.Subject.Object], t)
	}
}

// Read returns all tuples on the object, optionally restricted to one
// relation. An object with no tuples yields an empty result, not an
// error.
func (s *MemoryStore) Read(ctx context.Context, objectType rebar.ObjectType, objectID string, relation rebar.Relation) ([]rebar.Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []rebar.Tuple
	for t := range s.byObject[rebar.Object{Type: objectType, ID: objectID}] {
		if relation != "" && t.Relation != relation {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadBySubject returns all tuples whose subject is the given concrete
// object, optionally restricted to one relation.
func (s *MemoryStore) ReadBySubject(ctx context.Context, subjectType rebar.ObjectType, subjectID string, relation rebar.Relation) ([]rebar.Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []rebar.Tuple
	for t := range s.bySubject[rebar.Object{Type: subjectType, ID: subjectID}] {
		if relation != "" && t.Relation != relation {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// DeleteObject removes every tuple stored on the object.
func (s *MemoryStore) DeleteObject(ctx context.Context, objectType rebar.ObjectType, objectID string) (rebar.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj := rebar.Object{Type: objectType, ID: objectID}
	for t := range s.byObject[obj] {
		s.remove(t)
	}
	delete(s.byObject, obj)

	s.revision++
	return rebar.Revision("mem-" + strconv.FormatUint(s.revision, 10)), nil
}

// Len returns the number of stored tuples. Useful in tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, set := range s.byObject {
		n += len(set)
	}
	return n
}

// Ensure MemoryStore implements rebar.TupleStore.
var _ rebar.TupleStore = (*MemoryStore)(nil)

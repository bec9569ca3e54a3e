package rebar

import "context"

// Revision is an opaque token identifying the state of the tuple store
// after a successful write batch. Callers can surface it to clients the
// way a zedtoken is surfaced, and a production deployment can require it
// back on write as a compare-and-swap precondition. The core does not yet
// enforce CAS; last-applied-batch-wins.
type Revision string

// WriteRequest is an atomic batch of tuple insertions and deletions.
// Either every add and remove in the batch applies, or none do. Adding a
// tuple that already exists and removing one that does not are both
// no-ops, which makes retrying a whole batch safe.
type WriteRequest struct {
	Adds    []Tuple
	Removes []Tuple
}

// Empty reports whether the batch contains no operations.
func (w WriteRequest) Empty() bool {
	return len(w.Adds) == 0 && len(w.Removes) == 0
}

// TupleStore is the durable mapping of relationship tuples. Implemented by
// store.MemoryStore and store.SQLStore.
//
// Reads reflect the latest write that completed before the read started
// (read-your-writes within a single process). Empty relation reads return
// an empty set, not an error; NotFound is not part of the store contract.
// Infrastructure failures wrap ErrStoreUnavailable so callers can tell
// them apart from denials.
type TupleStore interface {
	// Write applies the batch atomically and returns the resulting
	// revision. A cancelled context must not leave partial writes: the
	// batch is rolled back or never started.
	Write(ctx context.Context, req WriteRequest) (Revision, error)

	// Read returns all tuples on the object, optionally restricted to one
	// relation (empty relation means all relations on the object).
	Read(ctx context.Context, objectType ObjectType, objectID string, relation Relation) ([]Tuple, error)

	// ReadBySubject returns all tuples whose subject is the given concrete
	// object, optionally restricted to one relation. This is the reverse
	// index used for hierarchy emptiness checks and cascading deletes.
	ReadBySubject(ctx context.Context, subjectType ObjectType, subjectID string, relation Relation) ([]Tuple, error)

	// DeleteObject removes every tuple stored on the object. Used when a
	// resource is deleted and its own relation tuples go with it.
	DeleteObject(ctx context.Context, objectType ObjectType, objectID string) (Revision, error)
}

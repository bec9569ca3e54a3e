package rebar

import "errors"

// Sentinel errors for failure modes during permission checks and writes.
// These errors indicate infrastructure or configuration problems, not
// permission denials. Denials are returned as (false, nil) - "no" is an
// expected, frequent outcome and is always data, never an error - so
// callers can never mistake an infrastructure fault for a legitimate
// denial.
var (
	// ErrStoreUnavailable wraps transient tuple-store failures. Checks are
	// read-only and writes are atomic batches, so retrying with backoff is
	// safe.
	ErrStoreUnavailable = errors.New("rebar: tuple store unavailable")

	// ErrInvalidSchema is returned when schema parsing fails.
	ErrInvalidSchema = errors.New("rebar: invalid schema")

	// ErrWalkDepthExceeded is returned when a permission walk exceeds the
	// depth bound. Well-formed schemas and acyclic hierarchies never hit
	// this; it guards against tuple data that violates the acyclicity
	// invariant.
	ErrWalkDepthExceeded = errors.New("rebar: permission walk depth exceeded")

	// ErrCyclicHierarchy is returned when a write would create a cycle in
	// a single-parent resource hierarchy. Cycle creation is rejected at
	// write time, before any tuple is applied.
	ErrCyclicHierarchy = errors.New("rebar: cyclic resource hierarchy")

	// ErrDuplicateParent is returned when a write would give a resource a
	// second parent tuple.
	ErrDuplicateParent = errors.New("rebar: resource already has a parent")

	// ErrFolderNotEmpty is returned when deleting a folder that still has
	// child resources. The operation is rejected whole; no tuples are
	// removed.
	ErrFolderNotEmpty = errors.New("rebar: folder not empty")

	// ErrPermissionDenied is returned by Engine lifecycle operations whose
	// precondition check failed. Plain Check calls never return it - they
	// report denial as (false, nil).
	ErrPermissionDenied = errors.New("rebar: permission denied")
)

// IsStoreUnavailableErr returns true if err is or wraps ErrStoreUnavailable.
func IsStoreUnavailableErr(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsInvalidSchemaErr returns true if err is or wraps ErrInvalidSchema.
func IsInvalidSchemaErr(err error) bool {
	return errors.Is(err, ErrInvalidSchema)
}

// IsPermissionDeniedErr returns true if err is or wraps ErrPermissionDenied.
func IsPermissionDeniedErr(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

package schema

import (
	"errors"
	"fmt"
)

// ErrCyclicSchema is returned when the schema contains a cycle in the
// relation graph.
var ErrCyclicSchema = errors.New("rebar/schema: cyclic schema")

// ErrUnknownType is returned when a lookup names an object type the
// schema does not define.
var ErrUnknownType = errors.New("rebar/schema: unknown object type")

// ErrUnknownRelation is returned when a lookup names a relation or
// permission the object type does not define.
var ErrUnknownRelation = errors.New("rebar/schema: unknown relation")

// SchemaError reports a lookup against an undefined type, relation, or
// permission. It is a programmer error: fatal to the calling request and
// never retried.
type SchemaError struct {
	ObjectType string
	Relation   string
	Err        error
}

func (e *SchemaError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.ObjectType)
	}
	return fmt.Sprintf("%v: %s.%s", e.Err, e.ObjectType, e.Relation)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsCyclicSchemaErr returns true if err is or wraps ErrCyclicSchema.
func IsCyclicSchemaErr(err error) bool {
	return errors.Is(err, ErrCyclicSchema)
}

// IsSchemaErr returns true if err is a SchemaError (unknown type,
// relation, or permission).
func IsSchemaErr(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Package rebar implements relationship-based access control (ReBAC):
// permissions are derived by walking a graph of stored relationship tuples
// against a schema of resource types, relations, and permission formulas.
//
// # Core Concepts
//
// Objects represent typed resources. Users and resources are both objects -
// there is no special subject type at the type level.
//
//	user := rebar.Object{Type: "user", ID: "alice"}
//	doc := rebar.Object{Type: "document", ID: "42"}
//
// A Tuple is a stored relationship fact: "subject has relation on object".
// Subjects are either concrete objects (user:alice) or usersets - a
// relation-set on another object (group:7#all_members), which is how group
// shares cover every current and future member without materializing one
// tuple per member.
//
// Permissions (view, edit, manage_sharing) are never stored. They are
// computed by the Checker from relation tuples according to the schema's
// permission formulas: unions, intersections, exclusions, and traversal
// through linking relations such as a folder's parent.
//
// # Basic Usage
//
//	types, _ := parser.ParseSchemaString(schemaDSL)
//	reg, _ := schema.NewRegistry(types)
//	st := store.NewMemoryStore()
//	checker := rebar.NewChecker(st, reg)
//	ok, err := checker.Check(ctx, user, "view", doc)
//
// Most applications use the Engine, which bundles the store, registry, and
// checker behind the two operation families consumed by CRUD surfaces:
// CheckPermission and WriteRelationships, plus resource lifecycle helpers.
//
// # Caching
//
// Use WithCache for repeated checks:
//
//	cache := rebar.NewCache(rebar.WithTTL(time.Minute))
//	checker := rebar.NewChecker(st, reg, rebar.WithCache(cache))
//
// # Decision Overrides
//
// Use WithDecision for testing or admin tools:
//
//	checker := rebar.NewChecker(st, reg, rebar.WithDecision(rebar.DecisionAllow))
package rebar

// ObjectType represents the type of an object.
type ObjectType string

// String returns the string representation of the object type.
func (ot ObjectType) String() string {
	return string(ot)
}

// Object represents a typed resource identifier. IDs are opaque strings
// minted by the surrounding application; rebar never interprets them.
//
// Objects are value types and safe to copy. The canonical string format
// is "type:id", used in logging and debugging.
type Object struct {
	Type ObjectType
	ID   string
}

// String returns the canonical representation "type:id".
func (o Object) String() string {
	return o.Type.String() + ":" + o.ID
}

// RebarObject returns the object itself, implementing ObjectLike.
func (o Object) RebarObject() Object {
	return o
}

// RebarSubject returns the object as a concrete subject, implementing
// SubjectLike. Subjects are also objects - this allows Object to be used
// in either position of a permission check.
func (o Object) RebarSubject() Subject {
	return Subject{Object: o}
}

// ObjectLike defines an interface for types that can be converted to
// Objects. This allows domain models to participate in permission checks
// without importing the domain layer into rebar:
//
//	type Document struct{ ID int64 }
//	func (d Document) RebarObject() rebar.Object {
//	    return rebar.Object{Type: "document", ID: fmt.Sprint(d.ID)}
//	}
type ObjectLike interface {
	RebarObject() Object
}

// SubjectLike defines an interface for types that can be used as subjects -
// the "who" in "who has what relation on what object".
type SubjectLike interface {
	RebarSubject() Subject
}

// Relation represents a named edge kind scoped to an object type.
// Relations can be stored roles (owner, member) or computed permissions
// (view, manage_sharing); rebar treats the names uniformly and the schema
// decides which are directly assignable.
type Relation string

// String returns the canonical representation of the relation.
func (r Relation) String() string {
	return string(r)
}

// Subject is a tagged variant: either a concrete object (user:alice) or a
// userset - all objects holding Relation on Object (group:7#all_members).
// The zero Relation means a concrete subject.
type Subject struct {
	Object   Object
	Relation Relation
}

// Userset reports whether the subject is a relation-set rather than a
// concrete object.
func (s Subject) Userset() bool {
	return s.Relation != ""
}

// String returns "type:id" for concrete subjects and "type:id#relation"
// for usersets.
func (s Subject) String() string {
	if s.Userset() {
		return s.Object.String() + "#" + s.Relation.String()
	}
	return s.Object.String()
}

// RebarSubject returns the subject itself, implementing SubjectLike.
func (s Subject) RebarSubject() Subject {
	return s
}

// Tuple is a stored relationship fact: Subject has Relation on Object.
// Tuples are unique by their full key. Insertion is idempotent and
// deletion removes by exact key match.
type Tuple struct {
	Object   Object
	Relation Relation
	Subject  Subject
}

// String returns the canonical representation "object#relation@subject".
func (t Tuple) String() string {
	return t.Object.String() + "#" + t.Relation.String() + "@" + t.Subject.String()
}

// NewTuple builds a tuple from its components.
func NewTuple(object ObjectLike, relation Relation, subject SubjectLike) Tuple {
	return Tuple{
		Object:   object.RebarObject(),
		Relation: relation,
		Subject:  subject.RebarSubject(),
	}
}

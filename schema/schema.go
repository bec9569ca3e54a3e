// Package schema defines the authorization model: resource types, the
// relations that can exist on them, and the formulas that compute
// permissions from relations.
//
// # Key Types
//
// TypeDefinition represents a parsed object type. Each type has relations
// that define roles and permissions. For example:
//
//	type folder
//	  relations
//	    define owner: [user, group#all_members]
//	    define view: owner or editor or viewer or view from parent
//
// RelationDefinition encodes a permission formula in flattened form:
// direct subject references (including userset references like
// [group#all_members]), implied-by unions, parent traversal
// (tuple-to-userset), exclusions, and intersection groups. Together these
// cover the set algebra {relation, union, intersection, exclusion,
// traverse} that the checker evaluates.
//
// Registry is the runtime lookup over a validated set of type
// definitions. It is fixed at process start; there is no dynamic schema
// mutation. Lookup of an undefined type or relation is a SchemaError -
// a programmer error, fatal to the calling request.
//
// # Validation
//
// NewRegistry rejects schemas with implied-by or cross-type parent cycles
// (ErrCyclicSchema) and with references to undefined types or relations,
// so the checker can rely on every formula it walks being well formed.
// Same-type hierarchical recursion ("view from parent" on folder) is not
// a cycle; it terminates on the acyclicity of the stored hierarchy.
package schema

// TypeDefinition represents a parsed object type and its relations.
type TypeDefinition struct {
	Name      string
	Relations []RelationDefinition
}

// SubjectTypeRef represents a subject type reference in a relation
// definition. For userset references like [group#all_members], Type is
// "group" and Relation is "all_members". For direct references like
// [user], Relation is empty. Wildcard is true for public references like
// [user:*], which a tuple with subject id "*" satisfies for any subject
// of that type.
type SubjectTypeRef struct {
	Type     string
	Relation string
	Wildcard bool
}

// ParentRelationCheck represents a traversal (tuple-to-userset) step.
// For "view from parent" on a folder:
//   - Relation is "view" (evaluated on the parent object)
//   - LinkingRelation is "parent" (the relation whose tuples name the
//     parent object)
//
// The parent type is resolved at runtime from the linking relation's
// tuples, bounded by the single-parent acyclic hierarchy invariant.
type ParentRelationCheck struct {
	Relation        string
	LinkingRelation string
}

// IntersectionGroup is a set of conditions that must ALL hold.
// For "audit: viewer and editor", Relations is ["viewer", "editor"].
// Multiple groups on one relation are alternatives (OR of ANDs).
type IntersectionGroup struct {
	Relations       []string
	ParentRelations []ParentRelationCheck
}

// RelationDefinition represents one relation (stored role or computed
// permission) on a type. A relation can be any combination of:
//   - Direct: grantable via tuples (SubjectTypeRefs non-empty)
//   - Implied: granted by holding another relation (ImpliedBy)
//   - Inherited: granted via a parent object (ParentRelations)
//   - Intersection: granted when a whole group holds (IntersectionGroups)
//   - Exclusive: revoked when an excluded relation holds (ExcludedRelations)
type RelationDefinition struct {
	Name               string
	SubjectTypeRefs    []SubjectTypeRef
	ImpliedBy          []string
	ParentRelations    []ParentRelationCheck
	IntersectionGroups []IntersectionGroup
	ExcludedRelations  []string
}

// Direct reports whether the relation can be granted via stored tuples.
func (r *RelationDefinition) Direct() bool {
	return len(r.SubjectTypeRefs) > 0
}

// AllowsSubject reports whether the relation accepts direct grants from
// the given subject shape. subjectRelation is empty for concrete
// subjects and the userset relation (e.g. "all_members") otherwise.
// Wildcard references admit only the wildcard subject, not concrete
// subjects of the type.
func (r *RelationDefinition) AllowsSubject(subjectType, subjectRelation string) bool {
	for _, ref := range r.SubjectTypeRefs {
		if ref.Wildcard {
			continue
		}
		if ref.Type == subjectType && ref.Relation == subjectRelation {
			return true
		}
	}
	return false
}

// AllowsWildcard reports whether the relation accepts public wildcard
// tuples for the given subject type.
func (r *RelationDefinition) AllowsWildcard(subjectType string) bool {
	for _, ref := range r.SubjectTypeRefs {
		if ref.Type == subjectType && ref.Wildcard {
			return true
		}
	}
	return false
}

// SubjectTypes returns all types that can appear as subjects anywhere in
// the schema.
func SubjectTypes(types []TypeDefinition) []string {
	seen := make(map[string]bool)
	var result []string

	for _, t := range types {
		for _, r := range t.Relations {
			for _, ref := range r.SubjectTypeRefs {
				if !seen[ref.Type] {
					seen[ref.Type] = true
					result = append(result, ref.Type)
				}
			}
		}
	}

	return result
}

package schema

import "fmt"

// childLink identifies a linking relation on a child type that points at
// a parent type, e.g. {child: "document", relation: "parent_folder"}.
type childLink struct {
	childType string
	relation  string
}

// Registry is the runtime schema lookup. Build one with NewRegistry at
// process start and share it; it is immutable afterwards and safe for
// concurrent use.
type Registry struct {
	types     map[string]*TypeDefinition
	relations map[string]map[string]*RelationDefinition

	// linksTo[parentType] lists the (childType, relation) pairs whose
	// tuples attach a child to a parent of that type. Precomputed so the
	// emptiness check can ask "does anything point at this folder?"
	// without rescanning the schema.
	linksTo map[string][]childLink
}

// NewRegistry validates the type definitions and builds the lookup.
// It rejects cyclic schemas and formulas referencing undefined types or
// relations; a Registry that constructs successfully is fully resolvable.
func NewRegistry(types []TypeDefinition) (*Registry, error) {
	if err := DetectCycles(types); err != nil {
		return nil, err
	}

	r := &Registry{
		types:     make(map[string]*TypeDefinition, len(types)),
		relations: make(map[string]map[string]*RelationDefinition, len(types)),
		linksTo:   make(map[string][]childLink),
	}

	for i := range types {
		t := &types[i]
		if _, dup := r.types[t.Name]; dup {
			return nil, fmt.Errorf("rebar/schema: duplicate type %q", t.Name)
		}
		r.types[t.Name] = t
		rels := make(map[string]*RelationDefinition, len(t.Relations))
		for j := range t.Relations {
			rels[t.Relations[j].Name] = &t.Relations[j]
		}
		r.relations[t.Name] = rels
	}

	if err := r.resolveReferences(); err != nil {
		return nil, err
	}
	r.indexChildLinks()

	return r, nil
}

// resolveReferences checks that every name a formula mentions exists.
func (r *Registry) resolveReferences() error {
	for typeName, rels := range r.relations {
		for relName, def := range rels {
			for _, ref := range def.SubjectTypeRefs {
				if _, ok := r.types[ref.Type]; !ok {
					return fmt.Errorf("rebar/schema: %s.%s references undefined subject type %q", typeName, relName, ref.Type)
				}
				if ref.Relation != "" {
					if _, ok := r.relations[ref.Type][ref.Relation]; !ok {
						return fmt.Errorf("rebar/schema: %s.%s references undefined userset %s#%s", typeName, relName, ref.Type, ref.Relation)
					}
				}
			}
			for _, name := range def.ImpliedBy {
				if _, ok := rels[name]; !ok {
					return fmt.Errorf("rebar/schema: %s.%s implied by undefined relation %q", typeName, relName, name)
				}
			}
			for _, name := range def.ExcludedRelations {
				if _, ok := rels[name]; !ok {
					return fmt.Errorf("rebar/schema: %s.%s excludes undefined relation %q", typeName, relName, name)
				}
			}
			for _, p := range def.ParentRelations {
				if _, ok := rels[p.LinkingRelation]; !ok {
					return fmt.Errorf("rebar/schema: %s.%s traverses undefined linking relation %q", typeName, relName, p.LinkingRelation)
				}
			}
			for _, g := range def.IntersectionGroups {
				for _, name := range g.Relations {
					if _, ok := rels[name]; !ok {
						return fmt.Errorf("rebar/schema: %s.%s intersects undefined relation %q", typeName, relName, name)
					}
				}
			}
		}
	}
	return nil
}

// indexChildLinks records, per parent type, which (childType, relation)
// pairs form hierarchy edges. A relation is a hierarchy edge when some
// formula on its type traverses it as a linking relation.
func (r *Registry) indexChildLinks() {
	for typeName, rels := range r.relations {
		linking := make(map[string]bool)
		for _, def := range rels {
			for _, p := range def.ParentRelations {
				linking[p.LinkingRelation] = true
			}
			for _, g := range def.IntersectionGroups {
				for _, p := range g.ParentRelations {
					linking[p.LinkingRelation] = true
				}
			}
		}
		for relName := range linking {
			for _, ref := range rels[relName].SubjectTypeRefs {
				r.linksTo[ref.Type] = append(r.linksTo[ref.Type], childLink{
					childType: typeName,
					relation:  relName,
				})
			}
		}
	}
}

// HasType reports whether the schema defines the object type.
func (r *Registry) HasType(objectType string) bool {
	_, ok := r.types[objectType]
	return ok
}

// Type returns the definition of an object type, or a SchemaError if the
// schema does not define it.
func (r *Registry) Type(objectType string) (*TypeDefinition, error) {
	t, ok := r.types[objectType]
	if !ok {
		return nil, &SchemaError{ObjectType: objectType, Err: ErrUnknownType}
	}
	return t, nil
}

// Relation returns the formula for a relation or permission on an object
// type. Undefined names are a SchemaError, fatal to the calling request.
func (r *Registry) Relation(objectType, relation string) (*RelationDefinition, error) {
	rels, ok := r.relations[objectType]
	if !ok {
		return nil, &SchemaError{ObjectType: objectType, Relation: relation, Err: ErrUnknownType}
	}
	def, ok := rels[relation]
	if !ok {
		return nil, &SchemaError{ObjectType: objectType, Relation: relation, Err: ErrUnknownRelation}
	}
	return def, nil
}

// IsHierarchyEdge reports whether tuples on (childType, relation) attach
// the child to a parent resource, e.g. (document, parent_folder) or
// (folder, parent).
func (r *Registry) IsHierarchyEdge(childType, relation string) bool {
	for _, links := range r.linksTo {
		for _, l := range links {
			if l.childType == childType && l.relation == relation {
				return true
			}
		}
	}
	return false
}

// ChildLinks returns the (childType, relation) pairs whose tuples can
// point at a parent of the given type. Used by the folder emptiness
// check: a parent is empty when no tuple on any of these pairs names it
// as subject.
func (r *Registry) ChildLinks(parentType string) [][2]string {
	links := r.linksTo[parentType]
	out := make([][2]string, 0, len(links))
	for _, l := range links {
		out = append(out, [2]string{l.childType, l.relation})
	}
	return out
}

// Package parser converts OpenFGA DSL schemas into rebar's internal
// schema model. It wraps the official OpenFGA language parser, which
// keeps rebar compatible with the OpenFGA ecosystem and its tooling, and
// isolates that dependency from the rest of the module: consumers of
// parsed schemas only see the dependency-free schema package.
//
// # Basic Usage
//
//	types, err := parser.ParseSchema("schema.fga")
//	reg, err := schema.NewRegistry(types)
//
// Or from an embedded string:
//
//	//go:embed schema.fga
//	var schemaDSL string
//
//	types, err := parser.ParseSchemaString(schemaDSL)
package parser

import (
	"fmt"
	"os"
	"sort"

	openfgav1 "github.com/openfga/api/proto/openfga/v1"
	"github.com/openfga/language/pkg/go/transformer"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/schema"
)

// ParseSchema reads an OpenFGA .fga file and returns type definitions.
func ParseSchema(path string) ([]schema.TypeDefinition, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path is from trusted source
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	return ParseSchemaString(string(content))
}

// ParseSchemaString parses OpenFGA DSL content and returns type
// definitions. Syntax errors wrap rebar.ErrInvalidSchema.
func ParseSchemaString(content string) ([]schema.TypeDefinition, error) {
	model, err := transformer.TransformDSLToProto(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rebar.ErrInvalidSchema, err)
	}

	return convertModel(model), nil
}

// convertModel extracts the authorization rules from OpenFGA's protobuf
// representation: type definitions, relations, directly related subject
// types from metadata, and rewrite rules (implied relations, parent
// traversal, exclusions, intersections).
func convertModel(model *openfgav1.AuthorizationModel) []schema.TypeDefinition {
	typeDefs := model.GetTypeDefinitions()
	types := make([]schema.TypeDefinition, 0, len(typeDefs))

	for _, td := range typeDefs {
		typeDef := schema.TypeDefinition{
			Name: td.GetType(),
		}

		// Directly related subject types come from metadata. This covers
		// simple references [user], userset references [group#all_members],
		// and wildcards [user:*].
		directRefs := make(map[string][]schema.SubjectTypeRef)
		if meta := td.GetMetadata(); meta != nil {
			for relName, relMeta := range meta.GetRelations() {
				for _, t := range relMeta.GetDirectlyRelatedUserTypes() {
					ref := schema.SubjectTypeRef{Type: t.GetType()}
					switch v := t.GetRelationOrWildcard().(type) {
					case *openfgav1.RelationReference_Wildcard:
						ref.Wildcard = true
					case *openfgav1.RelationReference_Relation:
						ref.Relation = v.Relation
					}
					directRefs[relName] = append(directRefs[relName], ref)
				}
			}
		}

		// Sort relation names for deterministic order; the protobuf map
		// iterates randomly.
		relMap := td.GetRelations()
		relNames := make([]string, 0, len(relMap))
		for relName := range relMap {
			relNames = append(relNames, relName)
		}
		sort.Strings(relNames)

		for _, relName := range relNames {
			relDef := schema.RelationDefinition{
				Name:            relName,
				SubjectTypeRefs: directRefs[relName],
			}
			extractUserset(relMap[relName], &relDef)
			typeDef.Relations = append(typeDef.Relations, relDef)
		}

		types = append(types, typeDef)
	}

	return types
}

// extractUserset recursively extracts rewrite rules from a Userset tree.
//
// Supported patterns:
//   - This: direct tuple assignment (subject types come from metadata)
//   - ComputedUserset: implied relation (owner grants view)
//   - TupleToUserset: traversal ("view from parent")
//   - Union: any child grants
//   - Intersection: all children must grant
//   - Difference: base minus exclusions ("view but not banned")
func extractUserset(us *openfgav1.Userset, rel *schema.RelationDefinition) {
	if us == nil {
		return
	}

	switch v := us.Userset.(type) {
	case *openfgav1.Userset_This:
		// Direct assignment - handled via metadata.

	case *openfgav1.Userset_ComputedUserset:
		rel.ImpliedBy = append(rel.ImpliedBy, v.ComputedUserset.GetRelation())

	case *openfgav1.Userset_TupleToUserset:
		rel.ParentRelations = append(rel.ParentRelations, schema.ParentRelationCheck{
			Relation:        v.TupleToUserset.GetComputedUserset().GetRelation(),
			LinkingRelation: v.TupleToUserset.GetTupleset().GetRelation(),
		})

	case *openfgav1.Userset_Union:
		for _, child := range v.Union.GetChild() {
			extractUserset(child, rel)
		}

	case *openfgav1.Userset_Intersection:
		if group := extractIntersection(v.Intersection, rel.Name); len(group.Relations) > 0 || len(group.ParentRelations) > 0 {
			rel.IntersectionGroups = append(rel.IntersectionGroups, group)
		}

	case *openfgav1.Userset_Difference:
		// The base may itself be a Difference, so recurse first, then
		// collect every excluded relation from the subtract side.
		extractUserset(v.Difference.GetBase(), rel)
		rel.ExcludedRelations = append(rel.ExcludedRelations, extractSubtractRelations(v.Difference.GetSubtract())...)
	}
}

// extractIntersection flattens an intersection node into one group of
// conditions that must all hold. "viewer and editor" yields
// Relations: ["viewer", "editor"]; a TTU child like "view from parent"
// yields a ParentRelations entry.
func extractIntersection(intersection *openfgav1.Usersets, relationName string) schema.IntersectionGroup {
	var group schema.IntersectionGroup

	for _, child := range intersection.GetChild() {
		switch cv := child.Userset.(type) {
		case *openfgav1.Userset_ComputedUserset:
			group.Relations = append(group.Relations, cv.ComputedUserset.GetRelation())

		case *openfgav1.Userset_This:
			// "[user] and writer" - This inside an intersection means a
			// direct tuple on the relation being defined.
			group.Relations = append(group.Relations, relationName)

		case *openfgav1.Userset_TupleToUserset:
			group.ParentRelations = append(group.ParentRelations, schema.ParentRelationCheck{
				Relation:        cv.TupleToUserset.GetComputedUserset().GetRelation(),
				LinkingRelation: cv.TupleToUserset.GetTupleset().GetRelation(),
			})

		case *openfgav1.Userset_Intersection:
			nested := extractIntersection(cv.Intersection, relationName)
			group.Relations = append(group.Relations, nested.Relations...)
			group.ParentRelations = append(group.ParentRelations, nested.ParentRelations...)
		}
	}

	return group
}

// extractSubtractRelations collects relation names from the subtract side
// of a difference. "but not banned" yields ["banned"]; a union
// "but not (a or b)" yields both.
func extractSubtractRelations(us *openfgav1.Userset) []string {
	if us == nil {
		return nil
	}

	switch v := us.Userset.(type) {
	case *openfgav1.Userset_ComputedUserset:
		return []string{v.ComputedUserset.GetRelation()}

	case *openfgav1.Userset_Union:
		var rels []string
		for _, child := range v.Union.GetChild() {
			rels = append(rels, extractSubtractRelations(child)...)
		}
		return rels

	default:
		return nil
	}
}

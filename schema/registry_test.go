package schema

import (
	"errors"
	"testing"
)

func folderDocTypes() []TypeDefinition {
	return []TypeDefinition{
		{Name: "user"},
		{
			Name: "group",
			Relations: []RelationDefinition{
				{Name: "admin", SubjectTypeRefs: []SubjectTypeRef{{Type: "user"}}},
				{Name: "member", SubjectTypeRefs: []SubjectTypeRef{{Type: "user"}}},
				{Name: "all_members", ImpliedBy: []string{"admin", "member"}},
			},
		},
		{
			Name: "folder",
			Relations: []RelationDefinition{
				{Name: "owner", SubjectTypeRefs: []SubjectTypeRef{{Type: "user"}, {Type: "group", Relation: "all_members"}}},
				{Name: "viewer", SubjectTypeRefs: []SubjectTypeRef{{Type: "user"}, {Type: "user", Wildcard: true}}},
				{Name: "parent", SubjectTypeRefs: []SubjectTypeRef{{Type: "folder"}}},
				{Name: "view", ImpliedBy: []string{"owner", "viewer"}, ParentRelations: []ParentRelationCheck{{Relation: "view", LinkingRelation: "parent"}}},
			},
		},
		{
			Name: "document",
			Relations: []RelationDefinition{
				{Name: "owner", SubjectTypeRefs: []SubjectTypeRef{{Type: "user"}}},
				{Name: "parent_folder", SubjectTypeRefs: []SubjectTypeRef{{Type: "folder"}}},
				{Name: "view", ImpliedBy: []string{"owner"}, ParentRelations: []ParentRelationCheck{{Relation: "view", LinkingRelation: "parent_folder"}}},
			},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(folderDocTypes())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	t.Run("type and relation lookup", func(t *testing.T) {
		if !reg.HasType("folder") {
			t.Error("HasType(folder) = false")
		}
		if reg.HasType("galaxy") {
			t.Error("HasType(galaxy) = true")
		}
		def, err := reg.Relation("folder", "view")
		if err != nil {
			t.Fatalf("Relation: %v", err)
		}
		if def.Direct() {
			t.Error("view is computed, not direct")
		}
	})

	t.Run("unknown names are schema errors", func(t *testing.T) {
		if _, err := reg.Relation("galaxy", "view"); !errors.Is(err, ErrUnknownType) {
			t.Errorf("expected ErrUnknownType, got %v", err)
		}
		if _, err := reg.Relation("folder", "fly"); !errors.Is(err, ErrUnknownRelation) {
			t.Errorf("expected ErrUnknownRelation, got %v", err)
		}
		if !IsSchemaErr(mustErr(reg.Relation("folder", "fly"))) {
			t.Error("IsSchemaErr should match relation lookup failures")
		}
	})

	t.Run("hierarchy edges", func(t *testing.T) {
		if !reg.IsHierarchyEdge("folder", "parent") {
			t.Error("folder parent should be a hierarchy edge")
		}
		if !reg.IsHierarchyEdge("document", "parent_folder") {
			t.Error("document parent_folder should be a hierarchy edge")
		}
		if reg.IsHierarchyEdge("folder", "owner") {
			t.Error("owner is not a hierarchy edge")
		}

		links := reg.ChildLinks("folder")
		if len(links) != 2 {
			t.Fatalf("ChildLinks(folder) = %v, want folder/parent and document/parent_folder", links)
		}
		if len(reg.ChildLinks("document")) != 0 {
			t.Error("documents have no children")
		}
	})
}

func mustErr(_ any, err error) error {
	return err
}

func TestNewRegistryRejectsBadSchemas(t *testing.T) {
	t.Run("implied-by cycle", func(t *testing.T) {
		types := []TypeDefinition{{
			Name: "doc",
			Relations: []RelationDefinition{
				{Name: "a", ImpliedBy: []string{"b"}},
				{Name: "b", ImpliedBy: []string{"a"}},
			},
		}}
		if _, err := NewRegistry(types); !IsCyclicSchemaErr(err) {
			t.Fatalf("expected ErrCyclicSchema, got %v", err)
		}
	})

	t.Run("cross-type parent cycle", func(t *testing.T) {
		types := []TypeDefinition{
			{
				Name: "a",
				Relations: []RelationDefinition{
					{Name: "parent", SubjectTypeRefs: []SubjectTypeRef{{Type: "b"}}},
					{Name: "view", ParentRelations: []ParentRelationCheck{{Relation: "view", LinkingRelation: "parent"}}},
				},
			},
			{
				Name: "b",
				Relations: []RelationDefinition{
					{Name: "parent", SubjectTypeRefs: []SubjectTypeRef{{Type: "a"}}},
					{Name: "view", ParentRelations: []ParentRelationCheck{{Relation: "view", LinkingRelation: "parent"}}},
				},
			},
		}
		if _, err := NewRegistry(types); !IsCyclicSchemaErr(err) {
			t.Fatalf("expected ErrCyclicSchema, got %v", err)
		}
	})

	t.Run("same-type recursion is allowed", func(t *testing.T) {
		if _, err := NewRegistry(folderDocTypes()); err != nil {
			t.Fatalf("folder-on-folder recursion should be valid: %v", err)
		}
	})

	t.Run("reference to undefined relation", func(t *testing.T) {
		types := []TypeDefinition{{
			Name: "doc",
			Relations: []RelationDefinition{
				{Name: "view", ImpliedBy: []string{"owner"}},
			},
		}}
		if _, err := NewRegistry(types); err == nil {
			t.Fatal("expected an error for undefined implied relation")
		}
	})

	t.Run("reference to undefined type", func(t *testing.T) {
		types := []TypeDefinition{{
			Name: "doc",
			Relations: []RelationDefinition{
				{Name: "owner", SubjectTypeRefs: []SubjectTypeRef{{Type: "robot"}}},
			},
		}}
		if _, err := NewRegistry(types); err == nil {
			t.Fatal("expected an error for undefined subject type")
		}
	})
}

func TestRelationDefinition(t *testing.T) {
	def := &RelationDefinition{
		Name: "viewer",
		SubjectTypeRefs: []SubjectTypeRef{
			{Type: "user"},
			{Type: "user", Wildcard: true},
			{Type: "group", Relation: "all_members"},
		},
	}

	if !def.AllowsSubject("user", "") {
		t.Error("concrete user should be allowed")
	}
	if !def.AllowsSubject("group", "all_members") {
		t.Error("group#all_members should be allowed")
	}
	if def.AllowsSubject("group", "") {
		t.Error("bare group should not be allowed")
	}
	if !def.AllowsWildcard("user") {
		t.Error("user wildcard should be allowed")
	}
	if def.AllowsWildcard("group") {
		t.Error("group wildcard should not be allowed")
	}
}

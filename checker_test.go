package rebar_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/parser"
	"github.com/rebar-authz/rebar/schema"
	"github.com/rebar-authz/rebar/store"
)

const testModel = `model
  schema 1.1

type user

type team
  relations
    define lead: [user]
    define member: [user, user:*]
    define everyone: lead or member

type project
  relations
    define owner: [user, team#everyone]
    define contributor: [user]
    define banned: [user]
    define parent: [project]
    define view: owner or contributor or view from parent
    define approve: owner and contributor
    define comment: view but not banned
`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	types, err := parser.ParseSchemaString(testModel)
	if err != nil {
		t.Fatalf("parse model: %v", err)
	}
	reg, err := schema.NewRegistry(types)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func seed(t *testing.T, st rebar.TupleStore, tuples ...rebar.Tuple) {
	t.Helper()
	if _, err := st.Write(context.Background(), rebar.WriteRequest{Adds: tuples}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func obj(typ, id string) rebar.Object {
	return rebar.Object{Type: rebar.ObjectType(typ), ID: id}
}

func userset(typ, id, relation string) rebar.Subject {
	return rebar.Subject{Object: obj(typ, id), Relation: rebar.Relation(relation)}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	checker := rebar.NewChecker(st, testRegistry(t))

	seed(t, st,
		rebar.NewTuple(obj("project", "p1"), "owner", obj("user", "alice")),
		rebar.NewTuple(obj("project", "p1"), "contributor", obj("user", "bob")),
		rebar.NewTuple(obj("project", "p1"), "banned", obj("user", "bob")),
		rebar.NewTuple(obj("project", "p2"), "parent", obj("project", "p1")),
		rebar.NewTuple(obj("project", "p3"), "owner", userset("team", "core", "everyone")),
		rebar.NewTuple(obj("team", "core"), "lead", obj("user", "carol")),
		rebar.NewTuple(obj("team", "core"), "member", obj("user", "dave")),
	)

	cases := []struct {
		name     string
		subject  rebar.SubjectLike
		relation rebar.Relation
		object   rebar.Object
		want     bool
	}{
		{"direct relation", obj("user", "bob"), "contributor", obj("project", "p1"), true},
		{"implied relation", obj("user", "alice"), "view", obj("project", "p1"), true},
		{"no tuple no access", obj("user", "mallory"), "view", obj("project", "p1"), false},
		{"hierarchy ascent", obj("user", "alice"), "view", obj("project", "p2"), true},
		{"no access through unrelated project", obj("user", "alice"), "view", obj("project", "p3"), false},
		{"userset via implied lead", obj("user", "carol"), "view", obj("project", "p3"), true},
		{"userset via member", obj("user", "dave"), "view", obj("project", "p3"), true},
		{"userset exact match", userset("team", "core", "everyone"), "owner", obj("project", "p3"), true},
		{"intersection holds only with both", obj("user", "alice"), "approve", obj("project", "p1"), false},
		{"exclusion removes access", obj("user", "bob"), "comment", obj("project", "p1"), false},
		{"exclusion leaves others", obj("user", "alice"), "comment", obj("project", "p1"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := checker.Check(ctx, tc.subject, tc.relation, tc.object)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if got != tc.want {
				t.Errorf("Check = %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("intersection requires every condition", func(t *testing.T) {
		seed(t, st, rebar.NewTuple(obj("project", "p1"), "contributor", obj("user", "alice")))
		got, err := checker.Check(ctx, obj("user", "alice"), "approve", obj("project", "p1"))
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !got {
			t.Error("owner and contributor together should satisfy approve")
		}
	})

	t.Run("unknown relation is a schema error", func(t *testing.T) {
		_, err := checker.Check(ctx, obj("user", "alice"), "deploy", obj("project", "p1"))
		if !schema.IsSchemaErr(err) {
			t.Fatalf("expected SchemaError, got %v", err)
		}
	})

	t.Run("unknown object type is a schema error", func(t *testing.T) {
		_, err := checker.Check(ctx, obj("user", "alice"), "view", obj("galaxy", "g1"))
		if !schema.IsSchemaErr(err) {
			t.Fatalf("expected SchemaError, got %v", err)
		}
	})
}

func TestCheckWildcard(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	checker := rebar.NewChecker(st, testRegistry(t))

	seed(t, st,
		rebar.NewTuple(obj("team", "open"), "member", obj("user", rebar.Wildcard)),
	)

	got, err := checker.Check(ctx, obj("user", "anyone"), "everyone", obj("team", "open"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !got {
		t.Error("wildcard member tuple should admit any user")
	}

	t.Run("wildcard only where the schema allows it", func(t *testing.T) {
		seed(t, st, rebar.NewTuple(obj("team", "open"), "lead", obj("user", rebar.Wildcard)))
		got, err := checker.Check(ctx, obj("user", "anyone"), "lead", obj("team", "open"))
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if got {
			t.Error("lead does not admit wildcard subjects")
		}
	})
}

func TestCheckDepthLimit(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	checker := rebar.NewChecker(st, testRegistry(t))

	// A parent chain longer than the walk limit. The stored hierarchy
	// is acyclic, so only the depth guard stops the ascent.
	var tuples []rebar.Tuple
	for i := 0; i < 40; i++ {
		child := obj("project", "p"+strconv.Itoa(i))
		parent := obj("project", "p"+strconv.Itoa(i+1))
		tuples = append(tuples, rebar.NewTuple(child, "parent", parent))
	}
	seed(t, st, tuples...)
	seed(t, st, rebar.NewTuple(obj("project", "p40"), "owner", obj("user", "alice")))

	_, err := checker.Check(ctx, obj("user", "alice"), "view", obj("project", "p0"))
	if !errors.Is(err, rebar.ErrWalkDepthExceeded) {
		t.Fatalf("expected ErrWalkDepthExceeded, got %v", err)
	}
}

func TestCheckDecisionOverrides(t *testing.T) {
	ctx := context.Background()
	sub := obj("user", "alice")
	object := obj("project", "p1")

	t.Run("WithDecision allow skips the store", func(t *testing.T) {
		checker := rebar.NewChecker(nil, nil, rebar.WithDecision(rebar.DecisionAllow))
		got, err := checker.Check(ctx, sub, "view", object)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !got {
			t.Error("DecisionAllow should allow everything")
		}
	})

	t.Run("WithDecision deny skips the store", func(t *testing.T) {
		checker := rebar.NewChecker(nil, nil, rebar.WithDecision(rebar.DecisionDeny))
		got, err := checker.Check(ctx, sub, "view", object)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if got {
			t.Error("DecisionDeny should deny everything")
		}
	})

	t.Run("context decision wins when enabled", func(t *testing.T) {
		checker := rebar.NewChecker(nil, nil, rebar.WithContextDecision())
		ctx := rebar.WithDecisionContext(context.Background(), rebar.DecisionAllow)
		got, err := checker.Check(ctx, sub, "view", object)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if !got {
			t.Error("context DecisionAllow should allow")
		}
	})

	t.Run("context decision ignored when not enabled", func(t *testing.T) {
		st := store.NewMemoryStore()
		checker := rebar.NewChecker(st, testRegistry(t))
		ctx := rebar.WithDecisionContext(context.Background(), rebar.DecisionAllow)
		got, err := checker.Check(ctx, sub, "view", object)
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if got {
			t.Error("decision context must be opt-in")
		}
	})
}

func TestCheckUsesCache(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	cache := rebar.NewCache()
	checker := rebar.NewChecker(st, testRegistry(t), rebar.WithCache(cache))

	seed(t, st, rebar.NewTuple(obj("project", "p1"), "owner", obj("user", "alice")))

	got, err := checker.Check(ctx, obj("user", "alice"), "view", obj("project", "p1"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !got {
		t.Fatal("expected allow")
	}
	if cache.Size() == 0 {
		t.Fatal("expected the result to be cached")
	}

	// The cached answer survives a store mutation until Clear.
	if _, err := st.Write(ctx, rebar.WriteRequest{Removes: []rebar.Tuple{
		rebar.NewTuple(obj("project", "p1"), "owner", obj("user", "alice")),
	}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = checker.Check(ctx, obj("user", "alice"), "view", obj("project", "p1"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !got {
		t.Error("expected the stale cached allow before Clear")
	}

	cache.Clear()
	got, err = checker.Check(ctx, obj("user", "alice"), "view", obj("project", "p1"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got {
		t.Error("expected deny after Clear")
	}
}

func TestIsEmpty(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	checker := rebar.NewChecker(st, testRegistry(t))

	empty, err := checker.IsEmpty(ctx, obj("project", "p1"))
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Error("project with no children should be empty")
	}

	seed(t, st, rebar.NewTuple(obj("project", "p2"), "parent", obj("project", "p1")))
	empty, err = checker.IsEmpty(ctx, obj("project", "p1"))
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if empty {
		t.Error("project with a child should not be empty")
	}
}

package rebar_test

import (
	"testing"

	"github.com/rebar-authz/rebar"
)

func TestStringFormats(t *testing.T) {
	doc := rebar.Object{Type: "document", ID: "d1"}
	alice := rebar.Subject{Object: rebar.Object{Type: "user", ID: "alice"}}
	members := rebar.Subject{Object: rebar.Object{Type: "group", ID: "7"}, Relation: "all_members"}

	if got := doc.String(); got != "document:d1" {
		t.Errorf("Object.String() = %q", got)
	}
	if got := alice.String(); got != "user:alice" {
		t.Errorf("concrete Subject.String() = %q", got)
	}
	if got := members.String(); got != "group:7#all_members" {
		t.Errorf("userset Subject.String() = %q", got)
	}

	tup := rebar.NewTuple(doc, "reader", members)
	if got := tup.String(); got != "document:d1#reader@group:7#all_members" {
		t.Errorf("Tuple.String() = %q", got)
	}
}

func TestSubjectUserset(t *testing.T) {
	concrete := rebar.Subject{Object: rebar.Object{Type: "user", ID: "alice"}}
	if concrete.Userset() {
		t.Error("concrete subject is not a userset")
	}
	members := rebar.Subject{Object: rebar.Object{Type: "group", ID: "7"}, Relation: "all_members"}
	if !members.Userset() {
		t.Error("subject with a relation is a userset")
	}
}

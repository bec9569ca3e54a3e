package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rebar-authz/rebar"
)

func tuple(obj, rel, sub string) rebar.Tuple {
	o := parseObj(obj)
	var s rebar.Subject
	if i := strings.IndexByte(sub, '#'); i >= 0 {
		s = rebar.Subject{Object: parseObj(sub[:i]), Relation: rebar.Relation(sub[i+1:])}
	} else {
		s = rebar.Subject{Object: parseObj(sub)}
	}
	return rebar.Tuple{Object: o, Relation: rebar.Relation(rel), Subject: s}
}

func parseObj(s string) rebar.Object {
	i := strings.IndexByte(s, ':')
	return rebar.Object{Type: rebar.ObjectType(s[:i]), ID: s[i+1:]}
}

func stores(t *testing.T) map[string]rebar.TupleStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sq := NewSQLStore(db, DialectSQLite)
	if err := sq.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return map[string]rebar.TupleStore{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func TestWriteAndRead(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rev, err := st.Write(ctx, rebar.WriteRequest{Adds: []rebar.Tuple{
				tuple("document:1", "owner", "user:alice"),
				tuple("document:1", "reader", "user:bob"),
				tuple("document:1", "reader", "group:7#all_members"),
				tuple("document:2", "owner", "user:alice"),
			}})
			if err != nil {
				t.Fatalf("write: %v", err)
			}
			if rev == "" {
				t.Fatal("expected a revision token")
			}

			got, err := st.Read(ctx, "document", "1", "")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 tuples on document:1, got %d", len(got))
			}

			got, err = st.Read(ctx, "document", "1", "reader")
			if err != nil {
				t.Fatalf("read reader: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 reader tuples, got %d", len(got))
			}
		})
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			add := rebar.WriteRequest{Adds: []rebar.Tuple{tuple("folder:f1", "viewer", "user:carol")}}

			if _, err := st.Write(ctx, add); err != nil {
				t.Fatalf("first write: %v", err)
			}
			if _, err := st.Write(ctx, add); err != nil {
				t.Fatalf("second write: %v", err)
			}

			got, err := st.Read(ctx, "folder", "f1", "viewer")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 tuple after duplicate add, got %d", len(got))
			}

			// Removing a missing tuple is a no-op, not an error.
			if _, err := st.Write(ctx, rebar.WriteRequest{Removes: []rebar.Tuple{tuple("folder:f1", "viewer", "user:nobody")}}); err != nil {
				t.Fatalf("remove missing: %v", err)
			}
		})
	}
}

func TestReadBySubject(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := st.Write(ctx, rebar.WriteRequest{Adds: []rebar.Tuple{
				tuple("folder:child1", "parent", "folder:root"),
				tuple("folder:child2", "parent", "folder:root"),
				tuple("document:d1", "parent_folder", "folder:root"),
				tuple("document:d1", "reader", "user:alice"),
			}}); err != nil {
				t.Fatalf("write: %v", err)
			}

			got, err := st.ReadBySubject(ctx, "folder", "root", "parent")
			if err != nil {
				t.Fatalf("read by subject: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 parent tuples, got %d", len(got))
			}

			got, err = st.ReadBySubject(ctx, "folder", "root", "")
			if err != nil {
				t.Fatalf("read by subject all: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 tuples with subject folder:root, got %d", len(got))
			}
		})
	}
}

func TestDeleteObject(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := st.Write(ctx, rebar.WriteRequest{Adds: []rebar.Tuple{
				tuple("document:gone", "owner", "user:alice"),
				tuple("document:gone", "reader", "user:bob"),
				tuple("document:kept", "owner", "user:alice"),
			}}); err != nil {
				t.Fatalf("write: %v", err)
			}

			if _, err := st.DeleteObject(ctx, "document", "gone"); err != nil {
				t.Fatalf("delete object: %v", err)
			}

			got, err := st.Read(ctx, "document", "gone", "")
			if err != nil {
				t.Fatalf("read deleted: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected 0 tuples after delete, got %d", len(got))
			}

			got, err = st.Read(ctx, "document", "kept", "")
			if err != nil {
				t.Fatalf("read kept: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected document:kept untouched, got %d tuples", len(got))
			}
		})
	}
}

func TestBatchMixesAddsAndRemoves(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := st.Write(ctx, rebar.WriteRequest{Adds: []rebar.Tuple{
				tuple("document:d", "reader", "user:old"),
			}}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			if _, err := st.Write(ctx, rebar.WriteRequest{
				Adds:    []rebar.Tuple{tuple("document:d", "editor", "user:new")},
				Removes: []rebar.Tuple{tuple("document:d", "reader", "user:old")},
			}); err != nil {
				t.Fatalf("mixed batch: %v", err)
			}

			got, err := st.Read(ctx, "document", "d", "")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 1 || got[0].Relation != "editor" {
				t.Fatalf("expected only the editor tuple, got %v", got)
			}
		})
	}
}

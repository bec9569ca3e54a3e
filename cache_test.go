package rebar_test

import (
	"testing"
	"time"

	"github.com/rebar-authz/rebar"
)

func TestCache(t *testing.T) {
	alice := rebar.Subject{Object: rebar.Object{Type: "user", ID: "alice"}}
	groupAll := rebar.Subject{Object: rebar.Object{Type: "group", ID: "7"}, Relation: "all_members"}
	doc := rebar.Object{Type: "document", ID: "d1"}

	t.Run("miss then hit", func(t *testing.T) {
		c := rebar.NewCache()
		if _, found := c.Get(alice, "view", doc); found {
			t.Fatal("expected miss on empty cache")
		}
		c.Set(alice, "view", doc, true)
		allowed, found := c.Get(alice, "view", doc)
		if !found || !allowed {
			t.Fatalf("Get = (%v, %v), want (true, true)", allowed, found)
		}
	})

	t.Run("denied results are cached too", func(t *testing.T) {
		c := rebar.NewCache()
		c.Set(alice, "edit", doc, false)
		allowed, found := c.Get(alice, "edit", doc)
		if !found || allowed {
			t.Fatalf("Get = (%v, %v), want (false, true)", allowed, found)
		}
	})

	t.Run("subject relation is part of the key", func(t *testing.T) {
		c := rebar.NewCache()
		groupPlain := rebar.Subject{Object: rebar.Object{Type: "group", ID: "7"}}
		c.Set(groupAll, "view", doc, true)
		if _, found := c.Get(groupPlain, "view", doc); found {
			t.Fatal("userset and concrete subjects must not collide")
		}
	})

	t.Run("entries expire after the TTL", func(t *testing.T) {
		c := rebar.NewCache(rebar.WithTTL(10 * time.Millisecond))
		c.Set(alice, "view", doc, true)
		if _, found := c.Get(alice, "view", doc); !found {
			t.Fatal("expected hit before expiry")
		}
		time.Sleep(20 * time.Millisecond)
		if _, found := c.Get(alice, "view", doc); found {
			t.Fatal("expected miss after expiry")
		}
	})

	t.Run("clear empties the cache", func(t *testing.T) {
		c := rebar.NewCache()
		c.Set(alice, "view", doc, true)
		c.Set(alice, "edit", doc, false)
		if c.Size() != 2 {
			t.Fatalf("Size = %d, want 2", c.Size())
		}
		c.Clear()
		if c.Size() != 0 {
			t.Fatalf("Size = %d after Clear, want 0", c.Size())
		}
	})
}

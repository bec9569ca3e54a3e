// Package testutil provides shared helpers for rebar integration tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/engine"
	"github.com/rebar-authz/rebar/store"
)

// NewSQLiteStore opens an in-memory sqlite tuple store with the schema
// migrated, so integration tests run against the real SQL path.
func NewSQLiteStore(t *testing.T) *store.SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.NewSQLStore(db, store.DialectSQLite)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// NewEngine builds an engine with the embedded default model over an
// in-memory sqlite store.
func NewEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()

	e, err := engine.New(NewSQLiteStore(t), opts...)
	require.NoError(t, err)
	return e
}

// Allowed asserts the outcome of a permission check.
func Allowed(t *testing.T, e *engine.Engine, resourceType rebar.ObjectType, resourceID string, permission rebar.Relation, userID string, want bool) {
	t.Helper()

	got, err := e.CheckPermission(context.Background(), resourceType, resourceID, permission, "user", userID)
	require.NoError(t, err)
	require.Equalf(t, want, got,
		"check(%s:%s, %s, user:%s)", resourceType, resourceID, permission, userID)
}

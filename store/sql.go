package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rebar-authz/rebar"
)

//go:embed ddl.sql
var ddl string

// Dialect selects the SQL placeholder style for a SQLStore.
type Dialect int

const (
	// DialectSQLite uses ? placeholders (mattn/go-sqlite3).
	DialectSQLite Dialect = iota
	// DialectPostgres uses $N placeholders (lib/pq).
	DialectPostgres
)

// SQLStore is a tuple store backed by a relational database. Batches
// apply inside a transaction, so partial writes never become visible.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database handle. The caller owns the
// handle's lifecycle. Call Migrate before first use on a fresh
// database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Migrate creates the tuples table and indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: migrate: %v", rebar.ErrStoreUnavailable, err)
	}
	return nil
}

// rebind converts ? placeholders to $N for postgres. Queries are
// written in the sqlite style and rebound at execution time.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	insertTuple = `INSERT INTO rebar_tuples
		(object_type, object_id, relation, subject_type, subject_id, subject_relation)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`

	deleteTuple = `DELETE FROM rebar_tuples
		WHERE object_type = ? AND object_id = ? AND relation = ?
		AND subject_type = ? AND subject_id = ? AND subject_relation = ?`

	selectByObject = `SELECT object_type, object_id, relation, subject_type, subject_id, subject_relation
		FROM rebar_tuples
		WHERE object_type = ? AND object_id = ?`

	selectBySubject = `SELECT object_type, object_id, relation, subject_type, subject_id, subject_relation
		FROM rebar_tuples
		WHERE subject_type = ? AND subject_id = ? AND subject_relation = ''`

	deleteByObject = `DELETE FROM rebar_tuples
		WHERE object_type = ? AND object_id = ?`
)

// Write applies the batch in a single transaction. Removes run before
// adds so a tuple present in both lists ends up written.
func (s *SQLStore) Write(ctx context.Context, req rebar.WriteRequest) (rebar.Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: begin: %v", rebar.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	for _, t := range req.Removes {
		if _, err := tx.ExecContext(ctx, s.rebind(deleteTuple),
			string(t.Object.Type), t.Object.ID, string(t.Relation),
			string(t.Subject.Object.Type), t.Subject.Object.ID, string(t.Subject.Relation)); err != nil {
			return "", fmt.Errorf("%w: delete tuple: %v", rebar.ErrStoreUnavailable, err)
		}
	}
	for _, t := range req.Adds {
		if _, err := tx.ExecContext(ctx, s.rebind(insertTuple),
			string(t.Object.Type), t.Object.ID, string(t.Relation),
			string(t.Subject.Object.Type), t.Subject.Object.ID, string(t.Subject.Relation)); err != nil {
			return "", fmt.Errorf("%w: insert tuple: %v", rebar.ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit: %v", rebar.ErrStoreUnavailable, err)
	}
	return rebar.Revision(uuid.NewString()), nil
}

// Read returns all tuples on the object, optionally restricted to one
// relation.
func (s *SQLStore) Read(ctx context.Context, objectType rebar.ObjectType, objectID string, relation rebar.Relation) ([]rebar.Tuple, error) {
	query := selectByObject
	args := []any{string(objectType), objectID}
	if relation != "" {
		query += " AND relation = ?"
		args = append(args, string(relation))
	}
	return s.queryTuples(ctx, query, args...)
}

// ReadBySubject returns all tuples whose subject is the given concrete
// object, optionally restricted to one relation.
func (s *SQLStore) ReadBySubject(ctx context.Context, subjectType rebar.ObjectType, subjectID string, relation rebar.Relation) ([]rebar.Tuple, error) {
	query := selectBySubject
	args := []any{string(subjectType), subjectID}
	if relation != "" {
		query += " AND relation = ?"
		args = append(args, string(relation))
	}
	return s.queryTuples(ctx, query, args...)
}

func (s *SQLStore) queryTuples(ctx context.Context, query string, args ...any) ([]rebar.Tuple, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query tuples: %v", rebar.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []rebar.Tuple
	for rows.Next() {
		var ot, oid, rel, st, sid, srel string
		if err := rows.Scan(&ot, &oid, &rel, &st, &sid, &srel); err != nil {
			return nil, fmt.Errorf("%w: scan tuple: %v", rebar.ErrStoreUnavailable, err)
		}
		out = append(out, rebar.Tuple{
			Object:   rebar.Object{Type: rebar.ObjectType(ot), ID: oid},
			Relation: rebar.Relation(rel),
			Subject: rebar.Subject{
				Object:   rebar.Object{Type: rebar.ObjectType(st), ID: sid},
				Relation: rebar.Relation(srel),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate tuples: %v", rebar.ErrStoreUnavailable, err)
	}
	return out, nil
}

// DeleteObject removes every tuple stored on the object.
func (s *SQLStore) DeleteObject(ctx context.Context, objectType rebar.ObjectType, objectID string) (rebar.Revision, error) {
	if _, err := s.db.ExecContext(ctx, s.rebind(deleteByObject), string(objectType), objectID); err != nil {
		return "", fmt.Errorf("%w: delete object: %v", rebar.ErrStoreUnavailable, err)
	}
	return rebar.Revision(uuid.NewString()), nil
}

// Ensure SQLStore implements rebar.TupleStore.
var _ rebar.TupleStore = (*SQLStore)(nil)

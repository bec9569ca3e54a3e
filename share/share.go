// Package share plans share mutations on folders and documents.
//
// A share is the user-facing view of the role tuples granted on one
// resource. The planner translates role-level requests into tuple
// writes, computes diffs between current and desired share state, and
// reads the share view back out of a tuple store. It does not enforce
// the manage_sharing precondition; the calling boundary does that
// before it applies a plan.
package share

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rebar-authz/rebar"
)

// GroupSubjectRelation is the userset relation attached to group
// subjects on share tuples, so a share to a group reaches every
// member through the group's membership relations.
const GroupSubjectRelation rebar.Relation = "all_members"

// Request is one entry in a share mutation batch.
type Request struct {
	SubjectType rebar.ObjectType
	SubjectID   string
	Role        string
}

// Entry is one row of a resource's share view.
type Entry struct {
	SubjectType rebar.ObjectType
	SubjectID   string
	Role        string
}

// MalformedShareRequestError reports the first invalid entry in a
// batch. The whole batch is rejected; nothing is committed.
type MalformedShareRequestError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedShareRequestError) Error() string {
	return fmt.Sprintf("malformed share request at index %d: %s: %s", e.Index, e.Field, e.Reason)
}

// IsMalformedShareRequestErr returns true if the error is a
// MalformedShareRequestError.
func IsMalformedShareRequestErr(err error) bool {
	var e *MalformedShareRequestError
	return errors.As(err, &e)
}

// Role vocabularies are distinct per resource type. A folder role
// applied to a document is rejected, never silently remapped.
var roleVocabulary = map[rebar.ObjectType]map[string]rebar.Relation{
	"document": {
		"reader": "reader",
		"editor": "editor",
		"owner":  "owner",
	},
	"folder": {
		"viewer": "viewer",
		"editor": "editor",
		"owner":  "owner",
	},
}

// Plan translates explicit add and remove share requests into a single
// atomic write batch. Each request maps to exactly one tuple. Group
// subjects carry the all_members userset relation.
func Plan(resourceType rebar.ObjectType, resourceID string, toAdd, toRemove []Request) (rebar.WriteRequest, error) {
	vocab, ok := roleVocabulary[resourceType]
	if !ok {
		return rebar.WriteRequest{}, &MalformedShareRequestError{
			Index:  0,
			Field:  "resourceType",
			Reason: fmt.Sprintf("no share roles defined for %q", resourceType),
		}
	}

	var req rebar.WriteRequest
	for i, r := range toAdd {
		t, err := requestTuple(resourceType, resourceID, vocab, i, r)
		if err != nil {
			return rebar.WriteRequest{}, err
		}
		req.Adds = append(req.Adds, t)
	}
	for i, r := range toRemove {
		t, err := requestTuple(resourceType, resourceID, vocab, len(toAdd)+i, r)
		if err != nil {
			return rebar.WriteRequest{}, err
		}
		req.Removes = append(req.Removes, t)
	}
	return req, nil
}

func requestTuple(resourceType rebar.ObjectType, resourceID string, vocab map[string]rebar.Relation, index int, r Request) (rebar.Tuple, error) {
	relation, ok := vocab[r.Role]
	if !ok {
		return rebar.Tuple{}, &MalformedShareRequestError{
			Index:  index,
			Field:  "role",
			Reason: fmt.Sprintf("role %q is not valid for %s shares", r.Role, resourceType),
		}
	}
	if r.SubjectID == "" {
		return rebar.Tuple{}, &MalformedShareRequestError{
			Index:  index,
			Field:  "subjectId",
			Reason: "subject id is empty",
		}
	}

	subject := rebar.Subject{Object: rebar.Object{Type: r.SubjectType, ID: r.SubjectID}}
	switch r.SubjectType {
	case "user":
	case "group":
		subject.Relation = GroupSubjectRelation
	default:
		return rebar.Tuple{}, &MalformedShareRequestError{
			Index:  index,
			Field:  "subjectType",
			Reason: fmt.Sprintf("subject type %q cannot hold shares", r.SubjectType),
		}
	}

	return rebar.Tuple{
		Object:   rebar.Object{Type: resourceType, ID: resourceID},
		Relation: relation,
		Subject:  subject,
	}, nil
}

// Reconcile diffs the current share state against the desired state
// and returns the batch that moves one to the other. Entries present
// in both sets produce no writes. Output ordering is deterministic.
func Reconcile(resourceType rebar.ObjectType, resourceID string, current, desired []Entry) (rebar.WriteRequest, error) {
	have := make(map[Entry]struct{}, len(current))
	for _, e := range current {
		have[e] = struct{}{}
	}
	want := make(map[Entry]struct{}, len(desired))
	for _, e := range desired {
		want[e] = struct{}{}
	}

	var toAdd, toRemove []Request
	for _, e := range sortedEntries(want) {
		if _, ok := have[e]; !ok {
			toAdd = append(toAdd, Request(e))
		}
	}
	for _, e := range sortedEntries(have) {
		if _, ok := want[e]; !ok {
			toRemove = append(toRemove, Request(e))
		}
	}
	return Plan(resourceType, resourceID, toAdd, toRemove)
}

func sortedEntries(set map[Entry]struct{}) []Entry {
	out := make([]Entry, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SubjectType != b.SubjectType {
			return a.SubjectType < b.SubjectType
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.Role < b.Role
	})
	return out
}

// Apply plans the batch and writes it atomically.
func Apply(ctx context.Context, st rebar.TupleStore, resourceType rebar.ObjectType, resourceID string, toAdd, toRemove []Request) (rebar.Revision, error) {
	req, err := Plan(resourceType, resourceID, toAdd, toRemove)
	if err != nil {
		return "", err
	}
	if req.Empty() {
		return "", nil
	}
	return st.Write(ctx, req)
}

// List reads the share view of a resource. Only role relations appear;
// hierarchy tuples like parent links are not shares.
func List(ctx context.Context, st rebar.TupleStore, resourceType rebar.ObjectType, resourceID string) ([]Entry, error) {
	vocab, ok := roleVocabulary[resourceType]
	if !ok {
		return nil, &MalformedShareRequestError{
			Index:  0,
			Field:  "resourceType",
			Reason: fmt.Sprintf("no share roles defined for %q", resourceType),
		}
	}

	tuples, err := st.Read(ctx, resourceType, resourceID, "")
	if err != nil {
		return nil, err
	}

	roleOf := make(map[rebar.Relation]string, len(vocab))
	for role, relation := range vocab {
		roleOf[relation] = role
	}

	var out []Entry
	for _, t := range tuples {
		role, ok := roleOf[t.Relation]
		if !ok {
			continue
		}
		out = append(out, Entry{
			SubjectType: t.Subject.Object.Type,
			SubjectID:   t.Subject.Object.ID,
			Role:        role,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SubjectType != b.SubjectType {
			return a.SubjectType < b.SubjectType
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.Role < b.Role
	})
	return out, nil
}

// Package preflight classifies document links embedded in free text
// before a gated action such as sending mail.
//
// For every document referenced in the text, the sender must hold
// manage_sharing on it before the recipient's access is even
// evaluated; a sender who cannot manage sharing is not authorized to
// learn the document's access state, so the id lands in Uncheckable.
// Otherwise the recipient's view permission decides Accessible or
// Inaccessible. The gated action proceeds only when every referenced
// document is accessible.
package preflight

import (
	"context"
	"regexp"

	"github.com/rebar-authz/rebar"
)

// Checker is the permission evaluator the preflight consults.
// *rebar.Checker satisfies it.
type Checker interface {
	Check(ctx context.Context, subject rebar.SubjectLike, relation rebar.Relation, object rebar.ObjectLike) (bool, error)
}

// documentRef matches a document reference in a URL-like path
// segment. The id runs to the next path or query delimiter.
var documentRef = regexp.MustCompile(`/documents/([^/\s?#"')>]+)`)

// Result partitions the referenced document ids into three disjoint
// sets. Each set preserves first-appearance order from the text.
type Result struct {
	Accessible   []string
	Inaccessible []string
	Uncheckable  []string
}

// Allowed reports whether the gated action may proceed. Any
// inaccessible or uncheckable reference is a hard rejection.
func (r Result) Allowed() bool {
	return len(r.Inaccessible) == 0 && len(r.Uncheckable) == 0
}

// ExtractDocumentIDs scans text for /documents/<id> references and
// returns the ids de-duplicated in order of first appearance.
func ExtractDocumentIDs(text string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, m := range documentRef.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Check classifies every document referenced in text. A store or
// schema failure aborts the whole preflight; partial classification
// is never returned.
func Check(ctx context.Context, checker Checker, text string, sender, recipient rebar.SubjectLike) (Result, error) {
	var res Result
	for _, id := range ExtractDocumentIDs(text) {
		doc := rebar.Object{Type: "document", ID: id}

		canShare, err := checker.Check(ctx, sender, "manage_sharing", doc)
		if err != nil {
			return Result{}, err
		}
		if !canShare {
			res.Uncheckable = append(res.Uncheckable, id)
			continue
		}

		canView, err := checker.Check(ctx, recipient, "view", doc)
		if err != nil {
			return Result{}, err
		}
		if canView {
			res.Accessible = append(res.Accessible, id)
		} else {
			res.Inaccessible = append(res.Inaccessible, id)
		}
	}
	return res, nil
}

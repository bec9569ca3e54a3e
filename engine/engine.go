// Package engine wires the tuple store, schema registry, checker,
// share planner and preflight into the operation surface the
// surrounding application consumes. Lifecycle operations enforce
// their permission gates here; the packages below stay policy-free.
package engine

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/parser"
	"github.com/rebar-authz/rebar/preflight"
	"github.com/rebar-authz/rebar/schema"
	"github.com/rebar-authz/rebar/share"
)

// DefaultSchema is the embedded authorization model: users, groups
// with admin/member roles, and a folder/document hierarchy with
// role-based shares.
//
//go:embed schema.fga
var DefaultSchema string

// GroupRole is a directory-level group role as supplied by the group
// management boundary. Roles map onto group relations: OWNER and
// MANAGER administer the group, MEMBER only belongs to it.
type GroupRole string

const (
	GroupRoleOwner   GroupRole = "OWNER"
	GroupRoleManager GroupRole = "MANAGER"
	GroupRoleMember  GroupRole = "MEMBER"
)

func (r GroupRole) relation() (rebar.Relation, error) {
	switch r {
	case GroupRoleOwner, GroupRoleManager:
		return "admin", nil
	case GroupRoleMember:
		return "member", nil
	default:
		return "", fmt.Errorf("unknown group role %q", string(r))
	}
}

// Engine is the authorization facade. It is safe for concurrent use.
type Engine struct {
	store    rebar.TupleStore
	registry *schema.Registry
	checker  *rebar.Checker
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	schemaDSL   string
	checkerOpts []rebar.Option
}

// WithSchema replaces the embedded default model.
func WithSchema(dsl string) Option {
	return func(c *config) {
		c.schemaDSL = dsl
	}
}

// WithCheckerOptions forwards options to the underlying checker, for
// example rebar.WithCache.
func WithCheckerOptions(opts ...rebar.Option) Option {
	return func(c *config) {
		c.checkerOpts = append(c.checkerOpts, opts...)
	}
}

// New builds an Engine over the store. The schema is parsed and
// validated once here; an invalid schema fails construction rather
// than the first check.
func New(st rebar.TupleStore, opts ...Option) (*Engine, error) {
	cfg := config{schemaDSL: DefaultSchema}
	for _, opt := range opts {
		opt(&cfg)
	}

	types, err := parser.ParseSchemaString(cfg.schemaDSL)
	if err != nil {
		return nil, err
	}
	reg, err := schema.NewRegistry(types)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:    st,
		registry: reg,
		checker:  rebar.NewChecker(st, reg, cfg.checkerOpts...),
	}, nil
}

// Checker exposes the underlying permission evaluator.
func (e *Engine) Checker() *rebar.Checker {
	return e.checker
}

// CheckPermission evaluates one permission for a concrete subject.
// Denial is the false return, never an error.
func (e *Engine) CheckPermission(ctx context.Context, resourceType rebar.ObjectType, resourceID string, permission rebar.Relation, subjectType rebar.ObjectType, subjectID string) (bool, error) {
	subject := rebar.Subject{Object: rebar.Object{Type: subjectType, ID: subjectID}}
	return e.checker.Check(ctx, subject, permission, rebar.Object{Type: resourceType, ID: resourceID})
}

// WriteRelationships validates every tuple against the schema and
// applies the batch atomically. Hierarchy edges additionally enforce
// the single-parent rule and reject writes that would close a cycle.
func (e *Engine) WriteRelationships(ctx context.Context, adds, removes []rebar.Tuple) (rebar.Revision, error) {
	req := rebar.WriteRequest{Adds: adds, Removes: removes}
	overlay := newEdgeOverlay(e.store, removes)
	for _, t := range adds {
		if err := e.validateTuple(t); err != nil {
			return "", err
		}
		if e.registry.IsHierarchyEdge(string(t.Object.Type), string(t.Relation)) {
			if err := e.validateHierarchyEdge(ctx, overlay, t); err != nil {
				return "", err
			}
			overlay.add(t)
		}
	}
	for _, t := range removes {
		if err := e.validateTuple(t); err != nil {
			return "", err
		}
	}
	return e.store.Write(ctx, req)
}

func (e *Engine) validateTuple(t rebar.Tuple) error {
	def, err := e.registry.Relation(string(t.Object.Type), string(t.Relation))
	if err != nil {
		return err
	}
	if !def.Direct() {
		return &schema.SchemaError{
			ObjectType: string(t.Object.Type),
			Relation:   string(t.Relation),
			Err:        fmt.Errorf("relation is computed, tuples cannot be written to it: %w", schema.ErrUnknownRelation),
		}
	}
	if t.Subject.Object.ID == rebar.Wildcard {
		if !def.AllowsWildcard(string(t.Subject.Object.Type)) {
			return &schema.SchemaError{
				ObjectType: string(t.Object.Type),
				Relation:   string(t.Relation),
				Err:        fmt.Errorf("wildcard subject %s not allowed: %w", t.Subject, schema.ErrUnknownRelation),
			}
		}
		return nil
	}
	if !def.AllowsSubject(string(t.Subject.Object.Type), string(t.Subject.Relation)) {
		return &schema.SchemaError{
			ObjectType: string(t.Object.Type),
			Relation:   string(t.Relation),
			Err:        fmt.Errorf("subject %s not allowed: %w", t.Subject, schema.ErrUnknownRelation),
		}
	}
	return nil
}

// edgeOverlay presents hierarchy edges as they will look after the
// batch applies: removed tuples are filtered out of store reads and
// edges accepted earlier in the same batch are included. Validating
// each add against this view keeps the single-parent and cycle checks
// honest for multi-edge batches.
type edgeOverlay struct {
	store   rebar.TupleStore
	removed map[rebar.Tuple]struct{}
	added   []rebar.Tuple
}

func newEdgeOverlay(store rebar.TupleStore, removes []rebar.Tuple) *edgeOverlay {
	removed := make(map[rebar.Tuple]struct{}, len(removes))
	for _, r := range removes {
		removed[r] = struct{}{}
	}
	return &edgeOverlay{store: store, removed: removed}
}

func (o *edgeOverlay) add(t rebar.Tuple) {
	o.added = append(o.added, t)
}

func (o *edgeOverlay) read(ctx context.Context, obj rebar.Object, relation rebar.Relation) ([]rebar.Tuple, error) {
	stored, err := o.store.Read(ctx, obj.Type, obj.ID, relation)
	if err != nil {
		return nil, err
	}
	var out []rebar.Tuple
	for _, t := range stored {
		if _, ok := o.removed[t]; ok {
			continue
		}
		out = append(out, t)
	}
	for _, t := range o.added {
		if t.Object == obj && t.Relation == relation {
			out = append(out, t)
		}
	}
	return out, nil
}

// validateHierarchyEdge enforces the single-parent rule and walks the
// proposed ancestor chain to reject cycles before anything is stored.
// Both checks read through the overlay so that edges removed or added
// elsewhere in the batch are accounted for.
func (e *Engine) validateHierarchyEdge(ctx context.Context, overlay *edgeOverlay, t rebar.Tuple) error {
	if t.Subject.Object == t.Object {
		return fmt.Errorf("%s cannot be its own parent: %w", t.Object, rebar.ErrCyclicHierarchy)
	}

	existing, err := overlay.read(ctx, t.Object, t.Relation)
	if err != nil {
		return err
	}
	for _, cur := range existing {
		if cur == t {
			continue
		}
		return fmt.Errorf("%s already has parent %s: %w", t.Object, cur.Subject, rebar.ErrDuplicateParent)
	}
	return e.walkAncestors(ctx, overlay, t.Subject.Object, t.Object, 0)
}

func (e *Engine) walkAncestors(ctx context.Context, overlay *edgeOverlay, from, target rebar.Object, depth int) error {
	if depth >= 32 {
		return fmt.Errorf("ancestor chain from %s: %w", from, rebar.ErrWalkDepthExceeded)
	}
	typ, err := e.registry.Type(string(from.Type))
	if err != nil {
		return err
	}
	for _, rel := range typ.Relations {
		if !e.registry.IsHierarchyEdge(string(from.Type), rel.Name) {
			continue
		}
		parents, err := overlay.read(ctx, from, rebar.Relation(rel.Name))
		if err != nil {
			return err
		}
		for _, p := range parents {
			if p.Subject.Object == target {
				return fmt.Errorf("%s is an ancestor of %s: %w", target, from, rebar.ErrCyclicHierarchy)
			}
			if err := e.walkAncestors(ctx, overlay, p.Subject.Object, target, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateFolder writes the folder's owner tuple and, when parentID is
// set, its parent link. Creating under a parent requires the owner to
// hold create_content there. A root folder additionally gets the
// world creator tuple so every user can add content to the shared
// root; creator feeds create_content only, so the grant never reaches
// view or edit on anything below.
func (e *Engine) CreateFolder(ctx context.Context, folderID, parentID, owner string) (rebar.Revision, error) {
	folder := rebar.Object{Type: "folder", ID: folderID}
	adds := []rebar.Tuple{
		rebar.NewTuple(folder, "owner", rebar.Object{Type: "user", ID: owner}),
	}

	if parentID == "" {
		adds = append(adds, rebar.NewTuple(folder, "creator", rebar.Object{Type: "user", ID: rebar.Wildcard}))
		return e.WriteRelationships(ctx, adds, nil)
	}

	parent := rebar.Object{Type: "folder", ID: parentID}
	allowed, err := e.checker.Check(ctx, rebar.Object{Type: "user", ID: owner}, "create_content", parent)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("user:%s cannot create content in %s: %w", owner, parent, rebar.ErrPermissionDenied)
	}
	adds = append(adds, rebar.NewTuple(folder, "parent", parent))
	return e.WriteRelationships(ctx, adds, nil)
}

// CreateDocument writes the document's owner tuple and its
// parent_folder link. The owner must hold create_content on the
// folder.
func (e *Engine) CreateDocument(ctx context.Context, documentID, folderID, owner string) (rebar.Revision, error) {
	folder := rebar.Object{Type: "folder", ID: folderID}
	allowed, err := e.checker.Check(ctx, rebar.Object{Type: "user", ID: owner}, "create_content", folder)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("user:%s cannot create content in %s: %w", owner, folder, rebar.ErrPermissionDenied)
	}

	document := rebar.Object{Type: "document", ID: documentID}
	return e.WriteRelationships(ctx, []rebar.Tuple{
		rebar.NewTuple(document, "owner", rebar.Object{Type: "user", ID: owner}),
		rebar.NewTuple(document, "parent_folder", folder),
	}, nil)
}

// DeleteFolder removes all of the folder's tuples. The caller must
// hold delete on the folder and the folder must have no child
// resources; a rejected delete removes nothing.
func (e *Engine) DeleteFolder(ctx context.Context, folderID, caller string) (rebar.Revision, error) {
	folder := rebar.Object{Type: "folder", ID: folderID}
	allowed, err := e.checker.Check(ctx, rebar.Object{Type: "user", ID: caller}, "delete", folder)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("user:%s cannot delete %s: %w", caller, folder, rebar.ErrPermissionDenied)
	}

	empty, err := e.checker.IsEmpty(ctx, folder)
	if err != nil {
		return "", err
	}
	if !empty {
		return "", fmt.Errorf("%s has child resources: %w", folder, rebar.ErrFolderNotEmpty)
	}
	return e.store.DeleteObject(ctx, folder.Type, folder.ID)
}

// DeleteDocument removes all of the document's tuples. The caller
// must hold delete on the document.
func (e *Engine) DeleteDocument(ctx context.Context, documentID, caller string) (rebar.Revision, error) {
	document := rebar.Object{Type: "document", ID: documentID}
	allowed, err := e.checker.Check(ctx, rebar.Object{Type: "user", ID: caller}, "delete", document)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("user:%s cannot delete %s: %w", caller, document, rebar.ErrPermissionDenied)
	}
	return e.store.DeleteObject(ctx, document.Type, document.ID)
}

// AddGroupMember writes the membership tuple for the role. OWNER and
// MANAGER become group admins, MEMBER becomes a plain member.
func (e *Engine) AddGroupMember(ctx context.Context, groupID, username string, role GroupRole) (rebar.Revision, error) {
	relation, err := role.relation()
	if err != nil {
		return "", err
	}
	group := rebar.Object{Type: "group", ID: groupID}
	return e.WriteRelationships(ctx, []rebar.Tuple{
		rebar.NewTuple(group, relation, rebar.Object{Type: "user", ID: username}),
	}, nil)
}

// RemoveGroupMember deletes both the admin and member tuples so the
// user is gone from the group regardless of which role they held.
func (e *Engine) RemoveGroupMember(ctx context.Context, groupID, username string) (rebar.Revision, error) {
	group := rebar.Object{Type: "group", ID: groupID}
	user := rebar.Object{Type: "user", ID: username}
	return e.WriteRelationships(ctx, nil, []rebar.Tuple{
		rebar.NewTuple(group, "admin", user),
		rebar.NewTuple(group, "member", user),
	})
}

// UpdateShares applies a share mutation batch. The caller must hold
// manage_sharing on the resource; a malformed batch writes nothing.
func (e *Engine) UpdateShares(ctx context.Context, resourceType rebar.ObjectType, resourceID, caller string, toAdd, toRemove []share.Request) (rebar.Revision, error) {
	resource := rebar.Object{Type: resourceType, ID: resourceID}
	allowed, err := e.checker.Check(ctx, rebar.Object{Type: "user", ID: caller}, "manage_sharing", resource)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("user:%s cannot manage sharing on %s: %w", caller, resource, rebar.ErrPermissionDenied)
	}

	req, err := share.Plan(resourceType, resourceID, toAdd, toRemove)
	if err != nil {
		return "", err
	}
	if req.Empty() {
		return "", nil
	}
	return e.WriteRelationships(ctx, req.Adds, req.Removes)
}

// ListShares returns the resource's share view.
func (e *Engine) ListShares(ctx context.Context, resourceType rebar.ObjectType, resourceID string) ([]share.Entry, error) {
	return share.List(ctx, e.store, resourceType, resourceID)
}

// PreflightSend classifies the document links in body before a send
// from sender to recipient. The send may proceed only when the result
// reports Allowed.
func (e *Engine) PreflightSend(ctx context.Context, body, sender, recipient string) (preflight.Result, error) {
	return preflight.Check(ctx, e.checker, body,
		rebar.Object{Type: "user", ID: sender},
		rebar.Object{Type: "user", ID: recipient})
}

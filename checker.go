package rebar

import (
	"context"
	"fmt"

	"github.com/rebar-authz/rebar/schema"
)

// Wildcard is the subject id of a public tuple. A tuple like
// folder:root#creator@user:* grants creator to every user, provided
// the schema allows wildcard subjects on that relation.
const Wildcard = "*"

// maxWalkDepth bounds the recursion of a permission walk. The schema is
// validated acyclic and the stored hierarchy is single-parent acyclic, so
// legitimate walks stay shallow; hitting the bound means the tuple data
// violates an invariant and the check fails with ErrWalkDepthExceeded
// rather than running away.
const maxWalkDepth = 32

// Checker answers permission checks by walking the tuple graph according
// to the schema's permission formulas.
//
// Checkers are lightweight and safe to create per request. They hold no
// state beyond the store handle, registry, cache, and decision override,
// and may run checks with unlimited concurrency - checks are read-only.
//
// The result of a check is a plain boolean: absence of tuples is "no
// permission", never an error. Store failures surface as errors distinct
// from denial.
type Checker struct {
	store              TupleStore
	registry           *schema.Registry
	cache              Cache
	decision           Decision
	useContextDecision bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithCache enables caching for permission check results.
// Caching is safe across goroutines but scoped to a single Checker
// instance. For request-scoped caching, create a new Checker per request
// with a request-scoped cache.
func WithCache(c Cache) Option {
	return func(ch *Checker) {
		ch.cache = c
	}
}

// WithDecision sets a decision override that bypasses the tuple store.
// Use DecisionAllow for admin tools or testing authorized paths, and
// DecisionDeny for testing unauthorized paths.
func WithDecision(d Decision) Option {
	return func(ch *Checker) {
		ch.decision = d
	}
}

// WithContextDecision enables context-based decision overrides.
// When enabled, Check consults GetDecisionContext(ctx) before walking
// the graph, letting authorization decisions propagate through
// middleware layers.
//
// Decision precedence when enabled:
//  1. Context decision (via WithDecisionContext)
//  2. Checker decision (via WithDecision)
//  3. Graph walk
//
// By default, context decisions are NOT consulted. This opt-in design
// ensures explicit control over when context can override authorization.
func WithContextDecision() Option {
	return func(ch *Checker) {
		ch.useContextDecision = true
	}
}

// NewChecker creates a checker over the given tuple store and schema
// registry. The registry must be fully constructed (NewRegistry
// validates it); the store may be any TupleStore implementation.
func NewChecker(st TupleStore, reg *schema.Registry, opts ...Option) *Checker {
	c := &Checker{
		store:    st,
		registry: reg,
		decision: DecisionUnset,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns true if subject has the relation (or computed permission)
// on object. The walk evaluates direct tuples, group userset indirection,
// implied relations, hierarchy traversal, intersections, and exclusions
// according to the loaded schema.
//
// Example:
//
//	ok, err := checker.Check(ctx, alice, "view", doc)
//
// If a cache is configured via WithCache, successful results are cached
// by (subject, relation, object). Errors are not cached.
func (c *Checker) Check(ctx context.Context, subject SubjectLike, relation Relation, object ObjectLike) (bool, error) {
	if c.useContextDecision {
		if d := GetDecisionContext(ctx); d != DecisionUnset {
			return d == DecisionAllow, nil
		}
	}
	if c.decision != DecisionUnset {
		return c.decision == DecisionAllow, nil
	}

	sub := subject.RebarSubject()
	obj := object.RebarObject()

	if c.cache != nil {
		if allowed, found := c.cache.Get(sub, relation, obj); found {
			return allowed, nil
		}
	}

	allowed, err := c.check(ctx, sub, relation, obj, 0)
	if err != nil {
		return false, err
	}

	if c.cache != nil {
		c.cache.Set(sub, relation, obj, allowed)
	}

	return allowed, nil
}

// check is the recursive walker. depth counts rewrite hops: userset
// expansion, implied relations, and hierarchy ascent each add one.
func (c *Checker) check(ctx context.Context, sub Subject, relation Relation, obj Object, depth int) (bool, error) {
	if depth >= maxWalkDepth {
		return false, fmt.Errorf("%w: %s on %s", ErrWalkDepthExceeded, relation, obj)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	def, err := c.registry.Relation(string(obj.Type), string(relation))
	if err != nil {
		return false, err
	}

	granted, err := c.checkRewrite(ctx, sub, relation, obj, def, depth)
	if err != nil || !granted {
		return false, err
	}

	// Exclusions subtract from an otherwise granted base.
	for _, excl := range def.ExcludedRelations {
		hit, err := c.check(ctx, sub, Relation(excl), obj, depth+1)
		if err != nil {
			return false, err
		}
		if hit {
			return false, nil
		}
	}

	return true, nil
}

// checkRewrite evaluates the relation's formula minus exclusions: direct
// tuples, implied-by unions, hierarchy traversal, and intersections.
// Any branch granting is enough.
func (c *Checker) checkRewrite(ctx context.Context, sub Subject, relation Relation, obj Object, def *schema.RelationDefinition, depth int) (bool, error) {
	if def.Direct() {
		ok, err := c.checkDirect(ctx, sub, relation, obj, def, depth)
		if err != nil || ok {
			return ok, err
		}
	}

	for _, implier := range def.ImpliedBy {
		ok, err := c.check(ctx, sub, Relation(implier), obj, depth+1)
		if err != nil || ok {
			return ok, err
		}
	}

	for _, p := range def.ParentRelations {
		ok, err := c.checkTraverse(ctx, sub, p, obj, depth)
		if err != nil || ok {
			return ok, err
		}
	}

	for _, group := range def.IntersectionGroups {
		ok, err := c.checkIntersection(ctx, sub, group, obj, depth)
		if err != nil || ok {
			return ok, err
		}
	}

	return false, nil
}

// checkDirect tests the relation's own tuples. A concrete subject matches
// its own tuple or a wildcard tuple. A userset tuple (group:7#all_members)
// matches when the subject satisfies that relation on the named object -
// this is the group-membership indirection, one extra walk level.
func (c *Checker) checkDirect(ctx context.Context, sub Subject, relation Relation, obj Object, def *schema.RelationDefinition, depth int) (bool, error) {
	tuples, err := c.store.Read(ctx, obj.Type, obj.ID, relation)
	if err != nil {
		return false, err
	}

	for _, t := range tuples {
		if t.Subject.Userset() {
			if sub.Userset() {
				if t.Subject == sub {
					return true, nil
				}
				continue
			}
			ok, err := c.check(ctx, sub, t.Subject.Relation, t.Subject.Object, depth+1)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			continue
		}

		if sub.Userset() {
			continue
		}
		if t.Subject.Object == sub.Object {
			return true, nil
		}
		if t.Subject.Object.ID == Wildcard &&
			t.Subject.Object.Type == sub.Object.Type &&
			def.AllowsWildcard(string(sub.Object.Type)) {
			return true, nil
		}
	}

	return false, nil
}

// checkTraverse resolves the linking relation to parent object(s) and
// evaluates the named relation on each, unioning results. With the
// single-parent invariant there is at most one tuple to follow, but the
// walk handles any number.
func (c *Checker) checkTraverse(ctx context.Context, sub Subject, p schema.ParentRelationCheck, obj Object, depth int) (bool, error) {
	links, err := c.store.Read(ctx, obj.Type, obj.ID, Relation(p.LinkingRelation))
	if err != nil {
		return false, err
	}

	for _, link := range links {
		if link.Subject.Userset() {
			continue
		}
		ok, err := c.check(ctx, sub, Relation(p.Relation), link.Subject.Object, depth+1)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return false, nil
}

// checkIntersection requires every condition in the group to hold.
func (c *Checker) checkIntersection(ctx context.Context, sub Subject, group schema.IntersectionGroup, obj Object, depth int) (bool, error) {
	for _, rel := range group.Relations {
		ok, err := c.check(ctx, sub, Relation(rel), obj, depth+1)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, p := range group.ParentRelations {
		ok, err := c.checkTraverse(ctx, sub, p, obj, depth)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// IsEmpty reports whether no resource hangs below the object in the
// hierarchy: no tuple on any hierarchy edge (folder.parent,
// document.parent_folder) names it as subject. Folder deletion is gated
// on this.
func (c *Checker) IsEmpty(ctx context.Context, object ObjectLike) (bool, error) {
	obj := object.RebarObject()
	for _, link := range c.registry.ChildLinks(string(obj.Type)) {
		childType, relation := link[0], link[1]
		tuples, err := c.store.ReadBySubject(ctx, obj.Type, obj.ID, Relation(relation))
		if err != nil {
			return false, err
		}
		for _, t := range tuples {
			if string(t.Object.Type) == childType {
				return false, nil
			}
		}
	}
	return true, nil
}

// Must panics if the permission check fails or errors. Use for internal
// invariants where unauthorized access indicates a bug in the calling
// code; prefer Check for user-facing authorization.
func (c *Checker) Must(ctx context.Context, subject SubjectLike, relation Relation, object ObjectLike) {
	ok, err := c.Check(ctx, subject, relation, object)
	if err != nil {
		panic(fmt.Sprintf("rebar.Must: %v", err))
	}
	if !ok {
		panic(fmt.Sprintf("rebar.Must: subject %s lacks %s on %s", subject.RebarSubject(), relation, object.RebarObject()))
	}
}

package schema

import (
	"fmt"
	"strings"
)

// color represents the state of a node during DFS cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // in current DFS path (cycle if revisited)
	black              // fully processed
)

// relationNode represents a (objectType, relation) pair in the relation graph.
type relationNode struct {
	objectType string
	relation   string
}

// DetectCycles checks for cycles in the relation graph. It validates both
// implied-by cycles (within a single type) and parent traversal cycles
// (across types). Returns an error describing the cycle if one is found.
//
// Same-type recursive traversal like "view from parent" where
// parent: [folder] is NOT a cycle - it is hierarchical inheritance,
// which terminates on the acyclicity of the stored parent tuples.
// Only cross-type loops are rejected.
func DetectCycles(types []TypeDefinition) error {
	if err := detectImpliedByCycles(types); err != nil {
		return err
	}
	return detectParentCycles(types)
}

// detectImpliedByCycles checks for cycles in implied-by relations within
// each type, e.g. "admin implies owner, owner implies admin".
func detectImpliedByCycles(types []TypeDefinition) error {
	for _, t := range types {
		graph := make(map[relationNode][]relationNode)

		for _, r := range t.Relations {
			n := relationNode{objectType: t.Name, relation: r.Name}
			for _, impliedBy := range r.ImpliedBy {
				graph[n] = append(graph[n], relationNode{objectType: t.Name, relation: impliedBy})
			}
		}

		if cycle := detectCycleInGraph(graph); cycle != nil {
			return fmt.Errorf("%w: implied-by cycle in type %q: %s",
				ErrCyclicSchema, t.Name, formatCycle(cycle))
		}
	}
	return nil
}

// detectParentCycles checks for traversal cycles across types, e.g.
// document.view from folder.view and folder.view from document.view.
func detectParentCycles(types []TypeDefinition) error {
	graph := buildParentGraph(types)
	if cycle := detectCycleInGraph(graph); cycle != nil {
		return fmt.Errorf("%w: parent traversal cycle: %s", ErrCyclicSchema, formatCycle(cycle))
	}
	return nil
}

// buildParentGraph builds the cross-type traversal graph. Nodes are
// (objectType, relation) pairs; edges point from a relation to the parent
// relation it inherits through a linking relation. Same-type edges are
// omitted: recursion like "view from parent" on folder is hierarchical
// inheritance, terminating on the acyclicity of the stored parent
// tuples, not a schema cycle.
func buildParentGraph(types []TypeDefinition) map[relationNode][]relationNode {
	graph := make(map[relationNode][]relationNode)

	// linkTargets[objectType][linkingRelation] = possible parent types
	linkTargets := make(map[string]map[string][]string)
	for _, t := range types {
		linkTargets[t.Name] = make(map[string][]string)
		for _, r := range t.Relations {
			for _, ref := range r.SubjectTypeRefs {
				linkTargets[t.Name][r.Name] = append(linkTargets[t.Name][r.Name], ref.Type)
			}
		}
	}

	for _, t := range types {
		for _, r := range t.Relations {
			n := relationNode{objectType: t.Name, relation: r.Name}
			for _, p := range r.ParentRelations {
				for _, parentType := range linkTargets[t.Name][p.LinkingRelation] {
					if parentType == t.Name {
						continue
					}
					graph[n] = append(graph[n], relationNode{objectType: parentType, relation: p.Relation})
				}
			}
		}
	}

	return graph
}

// detectCycleInGraph uses DFS with three-color marking to detect cycles.
// Returns the cycle path if found, nil otherwise.
func detectCycleInGraph(graph map[relationNode][]relationNode) []relationNode {
	colors := make(map[relationNode]color)
	parent := make(map[relationNode]relationNode)

	var dfs func(n relationNode) []relationNode
	dfs = func(n relationNode) []relationNode {
		colors[n] = gray

		for _, neighbor := range graph[n] {
			switch colors[neighbor] {
			case gray:
				return reconstructCycle(n, neighbor, parent)
			case white:
				parent[neighbor] = n
				if cycle := dfs(neighbor); cycle != nil {
					return cycle
				}
			}
		}

		colors[n] = black
		return nil
	}

	for n := range graph {
		if colors[n] == white {
			if cycle := dfs(n); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// reconstructCycle builds the cycle path from parent pointers.
func reconstructCycle(from, to relationNode, parent map[relationNode]relationNode) []relationNode {
	cycle := []relationNode{to}
	for n := from; n != to; n = parent[n] {
		cycle = append([]relationNode{n}, cycle...)
	}
	return append([]relationNode{to}, cycle...)
}

// formatCycle converts a cycle path to a human-readable string.
func formatCycle(cycle []relationNode) string {
	parts := make([]string, len(cycle))
	for i, n := range cycle {
		parts[i] = fmt.Sprintf("%s.%s", n.objectType, n.relation)
	}
	return strings.Join(parts, " -> ")
}

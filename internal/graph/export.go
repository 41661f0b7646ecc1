package graph

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// suggestMaxDistance bounds how far a near-miss suggestion may drift from
// the unresolved header name.
const suggestMaxDistance = 2

// ExportDOT writes the graph in Graphviz DOT format. Graphs larger than
// maxNodes are reduced to their internal nodes to stay renderable.
func (g *Graph) ExportDOT(w io.Writer, maxNodes int) error {
	internalOnly := maxNodes > 0 && len(g.nodes) > maxNodes

	include := func(id string) bool {
		if !internalOnly {
			return true
		}
		node := g.nodes[id]
		return node != nil && !node.IsExternal
	}

	if _, err := fmt.Fprintln(w, "digraph includes {"); err != nil {
		return err
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		if include(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := g.nodes[id]
		shape := "box"
		if node.IsExternal {
			shape = "ellipse"
		}
		label := filepath.Base(strings.Trim(id, "<>"))
		if _, err := fmt.Fprintf(w, "  %q [label=%q, shape=%s];\n", id, label, shape); err != nil {
			return err
		}
	}

	for _, from := range ids {
		for _, to := range sortedKeys(g.forward[from]) {
			if !include(to) {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", from, to); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// SuggestResolution proposes the closest internal file for an unresolved
// quoted include, typically a typo or a stale relative path. Returns the
// candidate node ID and true when a basename within edit distance 2 exists.
func (g *Graph) SuggestResolution(header string) (string, bool) {
	node := g.nodes[header]
	if node == nil || !node.IsExternal || node.IsSystem {
		return "", false
	}

	want := strings.ToLower(filepath.Base(header))
	bestID := ""
	bestDist := suggestMaxDistance + 1

	names := g.InternalBasenames()
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	for _, name := range ordered {
		dist := edlib.LevenshteinDistance(want, name)
		if dist < bestDist {
			bestDist = dist
			bestID = names[name]
		}
	}

	if bestID == "" || bestDist > suggestMaxDistance {
		return "", false
	}
	return bestID, true
}

// UnresolvedSuggestions maps every suggestible unresolved user header to its
// closest internal candidate.
func (g *Graph) UnresolvedSuggestions() map[string]string {
	suggestions := make(map[string]string)
	for id, node := range g.nodes {
		if !node.IsExternal || node.IsSystem {
			continue
		}
		if candidate, ok := g.SuggestResolution(id); ok {
			suggestions[id] = candidate
		}
	}
	return suggestions
}

package graph

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/includeguard/includeguard/internal/types"
)

// MaxCycles caps cycle enumeration so pathological graphs stay bounded.
const MaxCycles = 1000

// Node is one entry in the dependency graph's string-keyed node table.
// Internal nodes carry the metrics of the file they were built from;
// external nodes are synthetic stand-ins for unresolved or system headers.
type Node struct {
	ID         string
	IsExternal bool
	IsSystem   bool
	IsHeader   bool
	Analysis   *types.FileAnalysis // nil for external nodes
}

// Graph is a directed graph of "includes" edges over files and headers.
// Explicit forward and reverse adjacency sets; at most one edge per distinct
// (source, target) pair. The graph may legally contain cycles, so every
// query terminates via visited-set traversal.
type Graph struct {
	nodes   map[string]*Node
	forward map[string]map[string]struct{}
	reverse map[string]map[string]struct{}
	edges   int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
	}
}

// Build constructs the graph from parsed analyses in two passes: all file
// nodes first, then one edge per distinct include target, creating synthetic
// external nodes on first encounter.
func Build(analyses []*types.FileAnalysis) *Graph {
	g := New()

	for _, a := range analyses {
		g.nodes[a.Filepath] = &Node{
			ID:       a.Filepath,
			IsHeader: a.IsHeader(),
			Analysis: a,
		}
	}

	for _, a := range analyses {
		for _, inc := range a.Includes {
			target := inc.NodeID()
			if _, ok := g.nodes[target]; !ok {
				g.nodes[target] = &Node{
					ID:         target,
					IsExternal: true,
					IsSystem:   inc.IsSystem,
					IsHeader:   true,
				}
			}
			g.addEdge(a.Filepath, target)
		}
	}

	log.Debugf("graph built: %d nodes, %d edges", len(g.nodes), g.edges)
	return g
}

func (g *Graph) addEdge(from, to string) {
	if g.forward[from] == nil {
		g.forward[from] = make(map[string]struct{})
	}
	if _, exists := g.forward[from][to]; exists {
		return
	}
	g.forward[from][to] = struct{}{}
	if g.reverse[to] == nil {
		g.reverse[to] = make(map[string]struct{})
	}
	g.reverse[to][from] = struct{}{}
	g.edges++
}

// Node returns the node for key, or nil if unknown.
func (g *Graph) Node(key string) *Node {
	return g.nodes[key]
}

// HasNode reports whether key exists in the node table.
func (g *Graph) HasNode(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the total number of distinct edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// DirectDependencies returns the immediate include targets of a file,
// sorted. Unknown keys yield an empty slice, never an error.
func (g *Graph) DirectDependencies(key string) []string {
	return sortedKeys(g.forward[key])
}

// Dependents returns the files that include the given file or header.
func (g *Graph) Dependents(key string) []string {
	return sortedKeys(g.reverse[key])
}

// TransitiveDependencies returns every node reachable from key by following
// include edges, excluding key itself unless it sits on a cycle. Cycles are
// handled by visiting each node at most once.
func (g *Graph) TransitiveDependencies(key string) map[string]struct{} {
	reached := make(map[string]struct{})
	if _, ok := g.nodes[key]; !ok {
		return reached
	}

	stack := []string{key}
	visited := map[string]struct{}{key: {}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range g.forward[cur] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			reached[next] = struct{}{}
			stack = append(stack, next)
		}
	}

	// A self-loop or a cycle back to key counts key among its own
	// transitive dependencies.
	if _, ok := g.forward[key]; ok {
		for next := range g.forward[key] {
			if next == key {
				reached[key] = struct{}{}
			}
		}
	}
	for node := range reached {
		if _, back := g.forward[node][key]; back {
			reached[key] = struct{}{}
			break
		}
	}

	return reached
}

// DependencyDepth returns the maximum shortest-path length from key to any
// of its transitive dependencies, computed as BFS layer count. 0 when the
// node has no dependencies or is unknown.
func (g *Graph) DependencyDepth(key string) int {
	if _, ok := g.nodes[key]; !ok {
		return 0
	}

	depth := 0
	visited := map[string]struct{}{key: {}}
	frontier := []string{key}

	for len(frontier) > 0 {
		var next []string
		for _, cur := range frontier {
			for dep := range g.forward[cur] {
				if _, seen := visited[dep]; seen {
					continue
				}
				visited[dep] = struct{}{}
				next = append(next, dep)
			}
		}
		if len(next) > 0 {
			depth++
		}
		frontier = next
	}

	return depth
}

// FindCycles enumerates elementary cycles, Johnson-style: nodes are given a
// fixed order and each cycle is discovered only from its least-ordered
// member, over simple paths restricted to members at or after it. A file
// including itself directly is reported as a length-1 cycle. Enumeration is
// capped at MaxCycles.
func (g *Graph) FindCycles() [][]string {
	order := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		order = append(order, id)
	}
	sort.Strings(order)

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	var cycles [][]string

	for startIdx, start := range order {
		if len(cycles) >= MaxCycles {
			break
		}

		// Iterative DFS over simple paths whose members all have
		// order >= startIdx; a return to start closes a cycle.
		type frame struct {
			node  string
			succs []string
			pos   int
		}

		onPath := map[string]struct{}{start: {}}
		path := []string{start}
		stack := []frame{{node: start, succs: g.successorsFrom(start, index, startIdx)}}

		for len(stack) > 0 && len(cycles) < MaxCycles {
			top := &stack[len(stack)-1]
			if top.pos >= len(top.succs) {
				stack = stack[:len(stack)-1]
				path = path[:len(path)-1]
				delete(onPath, top.node)
				continue
			}

			next := top.succs[top.pos]
			top.pos++

			if next == start {
				cycle := make([]string, len(path))
				copy(cycle, path)
				cycles = append(cycles, cycle)
				continue
			}
			if _, seen := onPath[next]; seen {
				continue
			}

			onPath[next] = struct{}{}
			path = append(path, next)
			stack = append(stack, frame{node: next, succs: g.successorsFrom(next, index, startIdx)})
		}
	}

	return cycles
}

// successorsFrom returns sorted successors of node whose order index is at
// least min.
func (g *Graph) successorsFrom(node string, index map[string]int, min int) []string {
	var succs []string
	for next := range g.forward[node] {
		if index[next] >= min {
			succs = append(succs, next)
		}
	}
	sort.Strings(succs)
	return succs
}

// HeaderCount pairs a node ID with a tally for ranking queries.
type HeaderCount struct {
	Header string `json:"header"`
	Count  int    `json:"count"`
}

// MostIncluded ranks nodes by in-degree, highest first, restricted to nodes
// that are included at least once.
func (g *Graph) MostIncluded(topN int) []HeaderCount {
	var counts []HeaderCount
	for id, preds := range g.reverse {
		if len(preds) > 0 {
			counts = append(counts, HeaderCount{Header: id, Count: len(preds)})
		}
	}
	sortCounts(counts)
	return truncate(counts, topN)
}

// HeaviestFiles ranks internal nodes by the size of their transitive
// dependency set, highest first.
func (g *Graph) HeaviestFiles(topN int) []HeaderCount {
	var counts []HeaderCount
	for id, node := range g.nodes {
		if node.IsExternal {
			continue
		}
		if n := len(g.TransitiveDependencies(id)); n > 0 {
			counts = append(counts, HeaderCount{Header: id, Count: n})
		}
	}
	sortCounts(counts)
	return truncate(counts, topN)
}

// Statistics summarizes the graph: node and edge tallies, average degree,
// cycle count, and the maximum dependency depth over internal nodes.
func (g *Graph) Statistics() types.GraphStats {
	stats := types.GraphStats{
		TotalNodes: len(g.nodes),
		TotalEdges: g.edges,
	}

	for id, node := range g.nodes {
		if node.IsExternal {
			stats.ExternalNodes++
			continue
		}
		stats.InternalNodes++
		if d := g.DependencyDepth(id); d > stats.MaxDepth {
			stats.MaxDepth = d
		}
	}

	if len(g.nodes) > 0 {
		// Each edge contributes one out-degree and one in-degree.
		stats.AvgDegree = float64(2*g.edges) / float64(len(g.nodes))
	}

	stats.Cycles = len(g.FindCycles())
	return stats
}

func sortCounts(counts []HeaderCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Header < counts[j].Header
	})
}

func truncate(counts []HeaderCount, topN int) []HeaderCount {
	if topN >= 0 && len(counts) > topN {
		return counts[:topN]
	}
	return counts
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InternalBasenames maps the basename of every internal node to its ID,
// used for near-miss resolution suggestions.
func (g *Graph) InternalBasenames() map[string]string {
	names := make(map[string]string)
	for id, node := range g.nodes {
		if node.IsExternal {
			continue
		}
		names[strings.ToLower(filepath.Base(id))] = id
	}
	return names
}

package template

import (
	"maps"
	"slices"
	"sync"
)

// Graph records which files an importing file pulled in during one
// build. It is rebuilt from scratch per build and handed to the
// watcher as a full replacement of its watch set. The graph is shared
// across plugin clones: dependency edges are build-global bookkeeping,
// not scoped registration state.
type Graph struct {
	mu    sync.Mutex
	edges map[string]map[string]struct{}
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]map[string]struct{})}
}

// Add records that importer pulled in imported.
func (g *Graph) Add(importer, imported string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.edges[importer]
	if !ok {
		set = make(map[string]struct{})
		g.edges[importer] = set
	}
	set[imported] = struct{}{}
}

// Reset drops every edge, for the start of a new build.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = make(map[string]map[string]struct{})
}

// Imports returns the files imported directly by importer, sorted.
func (g *Graph) Imports(importer string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.edges[importer]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}

// Files returns every file that participated as an import target in
// this build, sorted. Edges are recorded at import time at any depth,
// so the set is transitively complete.
func (g *Graph) Files() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := make(map[string]struct{})
	for _, targets := range g.edges {
		for target := range targets {
			set[target] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

package lifecycle

import (
	"fmt"
	"slices"
	"sync"
)

// orderedSet keeps insertion order.
type orderedSet struct {
	items []string
	index map[string]struct{}
}

func (s *orderedSet) add(v string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet) remove(v string) {
	if _, ok := s.index[v]; !ok {
		return
	}
	delete(s.index, v)
	s.items = slices.DeleteFunc(s.items, func(x string) bool { return x == v })
}

func (s *orderedSet) has(v string) bool {
	_, ok := s.index[v]
	return ok
}

// DependencyGraph records which managed objects depend on which. It holds
// two inverse maps kept in step.
type DependencyGraph struct {
	mu           sync.Mutex
	dependents   map[string]*orderedSet
	dependencies map[string]*orderedSet
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		dependents:   make(map[string]*orderedSet),
		dependencies: make(map[string]*orderedSet),
	}
}

// Register records that dependent depends on name.
func (g *DependencyGraph) Register(name, dependent string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.dependents[name]
	if set == nil {
		set = &orderedSet{}
		g.dependents[name] = set
	}
	if !set.add(dependent) {
		return
	}
	deps := g.dependencies[dependent]
	if deps == nil {
		deps = &orderedSet{}
		g.dependencies[dependent] = deps
	}
	deps.add(name)
}

// Dependents returns the names depending on name, in registration order.
func (g *DependencyGraph) Dependents(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.dependents[name]; s != nil {
		return slices.Clone(s.items)
	}
	return nil
}

// Dependencies returns the names name depends on, in registration order.
func (g *DependencyGraph) Dependencies(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s := g.dependencies[name]; s != nil {
		return slices.Clone(s.items)
	}
	return nil
}

// HasDependents reports whether anything depends on name.
func (g *DependencyGraph) HasDependents(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.dependents[name]
	return s != nil && len(s.items) > 0
}

// IsDependent reports whether dependent depends on name, directly or
// transitively.
func (g *DependencyGraph) IsDependent(name, dependent string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isDependentLocked(name, dependent, make(map[string]bool))
}

func (g *DependencyGraph) isDependentLocked(name, dependent string, seen map[string]bool) bool {
	if seen[name] {
		return false
	}
	seen[name] = true
	s := g.dependents[name]
	if s == nil {
		return false
	}
	if s.has(dependent) {
		return true
	}
	for _, d := range s.items {
		if g.isDependentLocked(d, dependent, seen) {
			return true
		}
	}
	return false
}

// takeDependents removes and returns the dependents of name.
func (g *DependencyGraph) takeDependents(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.dependents[name]
	if s == nil {
		return nil
	}
	delete(g.dependents, name)
	return s.items
}

// Remove drops name from the graph entirely.
func (g *DependencyGraph) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dependents, name)
	for key, s := range g.dependents {
		s.remove(name)
		if len(s.items) == 0 {
			delete(g.dependents, key)
		}
	}
	delete(g.dependencies, name)
	for key, s := range g.dependencies {
		s.remove(name)
		if len(s.items) == 0 {
			delete(g.dependencies, key)
		}
	}
}

// Clear empties the graph.
func (g *DependencyGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dependents = make(map[string]*orderedSet)
	g.dependencies = make(map[string]*orderedSet)
}

// Edges returns a copy of the name -> dependencies map.
func (g *DependencyGraph) Edges() map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string][]string, len(g.dependencies))
	for k, s := range g.dependencies {
		out[k] = slices.Clone(s.items)
	}
	return out
}

// Levels groups names into dependency levels with Kahn's algorithm: level 0
// holds names depending on nothing in the set, level n names whose
// dependencies all sit in lower levels. Edges to names outside the set are
// ignored. A cycle is an error.
func (g *DependencyGraph) Levels(names []string) ([][]string, error) {
	inSet := make(map[string]bool, len(names))
	uniq := names[:0:0]
	for _, n := range names {
		if !inSet[n] {
			inSet[n] = true
			uniq = append(uniq, n)
		}
	}
	names = uniq

	g.mu.Lock()
	inDegree := make(map[string]int, len(names))
	children := make(map[string][]string, len(names))
	for _, n := range names {
		if s := g.dependencies[n]; s != nil {
			for _, dep := range s.items {
				if !inSet[dep] || dep == n {
					continue
				}
				inDegree[n]++
				children[dep] = append(children[dep], n)
			}
		}
	}
	g.mu.Unlock()

	var queue []string
	for _, n := range names {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var levels [][]string
	processed := 0
	for len(queue) > 0 {
		level := queue
		queue = nil
		levels = append(levels, level)
		processed += len(level)
		for _, n := range level {
			for _, child := range children[n] {
				inDegree[child]--
				if inDegree[child] == 0 {
					queue = append(queue, child)
				}
			}
		}
	}

	if processed != len(names) {
		var stuck []string
		for _, n := range names {
			if inDegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		return nil, fmt.Errorf("dependency cycle among %v", stuck)
	}
	return levels, nil
}

package curriculum

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrTopicNotFound is returned for unknown topic IDs.
	ErrTopicNotFound = errors.New("curriculum: topic not found")
	// ErrCycle is returned when prerequisite edges form a cycle.
	ErrCycle = errors.New("curriculum: prerequisite cycle")
)

// Graph is the immutable topic graph. It is safe for concurrent use because
// nothing mutates it after NewGraph returns.
type Graph struct {
	topics     map[string]Topic
	dependents map[string][]string // prerequisite -> topics that require it
	order      []string            // prerequisites before dependents
}

// NewGraph validates topics and builds the graph. Duplicate IDs, unknown
// prerequisites, self references and cycles are rejected.
func NewGraph(topics []Topic) (*Graph, error) {
	g := &Graph{
		topics:     make(map[string]Topic, len(topics)),
		dependents: make(map[string][]string),
	}
	for _, t := range topics {
		if t.ID == "" {
			return nil, fmt.Errorf("topic with empty id")
		}
		if _, dup := g.topics[t.ID]; dup {
			return nil, fmt.Errorf("duplicate topic id %s", t.ID)
		}
		g.topics[t.ID] = t
	}

	for _, t := range g.topics {
		for _, p := range t.Prerequisites {
			if p == t.ID {
				return nil, fmt.Errorf("%w: %s requires itself", ErrCycle, t.ID)
			}
			if _, ok := g.topics[p]; !ok {
				return nil, fmt.Errorf("topic %s: unknown prerequisite %s", t.ID, p)
			}
			g.dependents[p] = append(g.dependents[p], t.ID)
		}
	}
	for k := range g.dependents {
		sort.Strings(g.dependents[k])
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	g.order = g.topologicalOrder()
	return g, nil
}

// detectCycles runs a three-colour depth-first search over prerequisite edges.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool, len(g.topics))
	temporary := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("%w involving topic %s", ErrCycle, id)
		}
		temporary[id] = true
		for _, dep := range g.dependents[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, id := range g.sortedIDs() {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// topologicalOrder is Kahn's algorithm with ascending-ID tie-breaks, so the
// order is stable across loads.
func (g *Graph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.topics))
	for id, t := range g.topics {
		indegree[id] = len(t.Prerequisites)
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.topics))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}
	return order
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.topics))
	for id := range g.topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetTopic returns a topic by ID.
func (g *Graph) GetTopic(id string) (Topic, error) {
	t, ok := g.topics[id]
	if !ok {
		return Topic{}, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return t, nil
}

// Len returns the number of topics.
func (g *Graph) Len() int {
	return len(g.topics)
}

// TopologicalOrder returns topic IDs with every prerequisite before the
// topics that depend on it.
func (g *Graph) TopologicalOrder() []string {
	return append([]string(nil), g.order...)
}

// Dependents returns the IDs of topics that list id as a prerequisite.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

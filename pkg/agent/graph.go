// Package agent implements the query and comparison workflows as compiled
// state graphs. A graph is a set of named nodes transforming a shared state,
// connected by static or state-dependent edges, executed until it reaches
// the END sentinel.
package agent

import (
	"context"
	"fmt"
)

// END terminates graph execution when used as an edge target.
const END = "__end__"

// NodeFunc transforms the graph state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// ConditionFunc picks the next node from the current state.
type ConditionFunc[S any] func(state S) string

type conditionalEdge[S any] struct {
	cond    ConditionFunc[S]
	targets []string
}

type Graph[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entry       string
}

func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:       map[string]NodeFunc[S]{},
		edges:       map[string]string{},
		conditional: map[string]conditionalEdge[S]{},
	}
}

func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	g.nodes[name] = fn
	return g
}

func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes from a node to whichever of the declared targets
// cond returns. Targets are validated at compile time.
func (g *Graph[S]) AddConditionalEdge(from string, cond ConditionFunc[S], targets ...string) *Graph[S] {
	g.conditional[from] = conditionalEdge[S]{cond: cond, targets: targets}
	return g
}

func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	g.entry = name
	return g
}

// Compile validates the graph and returns a runnable form. Every edge,
// static or conditional, must target a known node or END; every node needs
// an outgoing edge and must be reachable from the entry point.
func (g *Graph[S]) Compile(maxSteps int) (*Runner[S], error) {
	if g.entry == "" {
		return nil, fmt.Errorf("graph has no entry point")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("entry point %q is not a node", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if to != END {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("edge %q -> %q targets unknown node", from, to)
			}
		}
	}
	for from, ce := range g.conditional {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("conditional edge from unknown node %q", from)
		}
		if len(ce.targets) == 0 {
			return nil, fmt.Errorf("conditional edge from %q declares no targets", from)
		}
		for _, to := range ce.targets {
			if to != END {
				if _, ok := g.nodes[to]; !ok {
					return nil, fmt.Errorf("conditional edge %q -> %q targets unknown node", from, to)
				}
			}
		}
	}
	for name := range g.nodes {
		_, hasEdge := g.edges[name]
		_, hasCond := g.conditional[name]
		if !hasEdge && !hasCond {
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		}
	}

	reached := map[string]bool{}
	queue := []string{g.entry}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == END || reached[name] {
			continue
		}
		reached[name] = true
		if to, ok := g.edges[name]; ok {
			queue = append(queue, to)
		}
		if ce, ok := g.conditional[name]; ok {
			queue = append(queue, ce.targets...)
		}
	}
	for name := range g.nodes {
		if !reached[name] {
			return nil, fmt.Errorf("node %q is unreachable from entry point %q", name, g.entry)
		}
	}

	if maxSteps <= 0 {
		maxSteps = 10
	}
	return &Runner[S]{graph: g, maxSteps: maxSteps}, nil
}

type Runner[S any] struct {
	graph    *Graph[S]
	maxSteps int
}

// Invoke executes the graph from its entry point until END. The step limit
// guards against cycles introduced by conditional edges.
func (r *Runner[S]) Invoke(ctx context.Context, state S) (S, error) {
	current := r.graph.entry
	for step := 0; ; step++ {
		if step >= r.maxSteps {
			return state, fmt.Errorf("graph exceeded %d steps at node %q", r.maxSteps, current)
		}
		if err := ctx.Err(); err != nil {
			return state, err
		}

		next, err := r.graph.nodes[current](ctx, state)
		if err != nil {
			return state, fmt.Errorf("node %q: %w", current, err)
		}
		state = next

		if ce, ok := r.graph.conditional[current]; ok {
			current = ce.cond(state)
		} else {
			current = r.graph.edges[current]
		}
		if current == END {
			return state, nil
		}
		if _, ok := r.graph.nodes[current]; !ok {
			return state, fmt.Errorf("transition to unknown node %q", current)
		}
	}
}

package netlist

import (
	"fmt"
	"strings"

	"github.com/roach88/netsim/internal/ir"
)

// CycleWarning reports a combinational loop inside one component body.
//
// A loop is only legal when it passes through a FLIPFLOP; loops without
// one stall the evaluator, which then returns COMBINATIONAL_CYCLE.
type CycleWarning struct {
	Component ir.ComponentID `json:"component"`
	Path      []string       `json:"path"`    // Cycle path: ["n1", "n2", "n1"]
	Message   string         `json:"message"` // Human-readable description
	Level     string         `json:"level"`   // "error" for combinational loops
}

// AnalyzeCycles finds combinational loops in every composite body.
//
// The algorithm:
//  1. Build a node → node dependency graph per body from its connections
//  2. Erase every edge leaving a FLIPFLOP node
//  3. Use Tarjan's algorithm to find strongly connected components
//  4. Report each SCC with size > 1 or a self-loop
//
// Composite children are treated as opaque: every input feeds every output.
// That matches the evaluator, which runs a composite child only after all
// of its wired inputs arrived.
//
// An acyclic netlist returns an empty warning list.
func AnalyzeCycles(m Model) []CycleWarning {
	warnings := []CycleWarning{}
	for _, c := range m.Components() {
		if c.IsIntrinsic {
			continue
		}
		order, graph := buildDependencyGraph(m, c.ID)
		for _, scc := range tarjanSCC(order, graph) {
			if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
				w := cycleSCCToWarning(scc, graph)
				w.Component = c.ID
				warnings = append(warnings, w)
			}
		}
	}
	return warnings
}

// dependencyGraph maps node_id → nodes fed by its outputs.
type dependencyGraph map[string][]string

// buildDependencyGraph returns the body's node ids in registration order
// and the graph over them.
func buildDependencyGraph(m Model, component ir.ComponentID) ([]string, dependencyGraph) {
	graph := make(dependencyGraph)
	var order []string
	for _, n := range m.ChildNodesOf(component) {
		id := string(n.ID)
		order = append(order, id)
		graph[id] = []string{}

		if def, ok := m.Component(n.ComponentID); ok && def.IsIntrinsic && def.IntrinsicType == ir.IntrinsicFlipFlop {
			continue
		}
		for _, np := range m.NodePinsOf(n.ID) {
			for _, conn := range m.ConnectionsFrom(np.ID) {
				if target, ok := m.NodePin(conn.To); ok {
					graph[id] = append(graph[id], string(target.NodeID))
				}
			}
		}
	}
	return order, graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Roots are visited in order so results are deterministic.
func tarjanSCC(order []string, graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root of an SCC: pop it off the stack
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("node feeds itself without a FLIPFLOP: %s → %s", id, id),
			Level:   "error",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("combinational cycle without FLIPFLOP: %s", strings.Join(path, " → ")),
		Level:   "error",
	}
}

// reconstructCyclePath follows edges inside the SCC from its last-popped
// member until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	// The SCC root is popped last; it was visited first.
	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

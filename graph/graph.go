package graph

import (
	"github.com/hupe1980/agentgraph/core"
)

// Validate checks the structural invariants of a definition: it has at least
// one node, every edge endpoint references a node in the same definition
// (the reserved initial-input key is a legal source) and the graph is
// acyclic. A violation is a definition error raised before anything
// executes. An acyclic graph always has an entry node, so there is no
// separate entry check.
func Validate(def *core.AgentDefinition) error {
	if len(def.Nodes) == 0 {
		return ErrEmptyDefinition
	}

	ids := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.ID == core.InitialInputKey {
			return ErrReservedNodeID
		}
		ids[n.ID] = true
	}

	for _, e := range def.Edges {
		if !ids[e.Source] && e.Source != core.InitialInputKey {
			return &UnknownNodeError{Edge: "source", Node: e.Source}
		}
		if !ids[e.Target] {
			return &UnknownNodeError{Edge: "target", Node: e.Target}
		}
	}

	return detectCycle(def)
}

// EntryNodes returns the nodes a run may start from: nodes with no incoming
// edges, plus input-type nodes regardless of incoming edges. Edges sourced
// from the reserved initial-input key are not dependencies; the seed is
// available before any node runs. Order follows the definition's node array.
func EntryNodes(def *core.AgentDefinition) []string {
	incoming := make(map[string]int, len(def.Nodes))
	for _, e := range def.Edges {
		if e.Source == core.InitialInputKey {
			continue
		}
		incoming[e.Target]++
	}

	var entries []string
	for _, n := range def.Nodes {
		if incoming[n.ID] == 0 || n.Type == core.NodeTypeInput {
			entries = append(entries, n.ID)
		}
	}
	return entries
}

// TopologicalOrder computes a deterministic execution order: every node
// appears after all nodes it depends on, and when several nodes are eligible
// at once the definition's node array order breaks the tie. The definition
// must already have passed Validate; a cycle still surfaces as a CycleError.
func TopologicalOrder(def *core.AgentDefinition) ([]string, error) {
	if err := detectCycle(def); err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(def.Nodes))
	for _, n := range def.Nodes {
		remaining[n.ID] = 0
	}
	for _, e := range def.Edges {
		if e.Source == core.InitialInputKey {
			continue
		}
		remaining[e.Target]++
	}

	done := make(map[string]bool, len(def.Nodes))
	order := make([]string, 0, len(def.Nodes))

	for len(order) < len(def.Nodes) {
		progressed := false
		for _, n := range def.Nodes {
			if done[n.ID] || remaining[n.ID] > 0 {
				continue
			}
			done[n.ID] = true
			order = append(order, n.ID)
			for _, e := range def.Edges {
				if e.Source == n.ID {
					remaining[e.Target]--
				}
			}
			progressed = true
			break // restart the scan so array order breaks ties
		}
		if !progressed {
			// Unreachable after detectCycle, kept as a hard stop.
			for _, n := range def.Nodes {
				if !done[n.ID] {
					return nil, &CycleError{Node: n.ID}
				}
			}
		}
	}

	return order, nil
}

// detectCycle runs a depth-first traversal tracking a "currently visiting"
// set; revisiting a node still on the stack is a cycle through that node.
func detectCycle(def *core.AgentDefinition) error {
	adjacent := make(map[string][]string, len(def.Nodes))
	for _, e := range def.Edges {
		adjacent[e.Source] = append(adjacent[e.Source], e.Target)
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[string]int, len(def.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return &CycleError{Node: id}
		case visited:
			return nil
		}
		state[id] = visiting
		for _, next := range adjacent[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[id] = visited
		return nil
	}

	for _, n := range def.Nodes {
		if err := visit(n.ID); err != nil {
			return err
		}
	}
	return nil
}

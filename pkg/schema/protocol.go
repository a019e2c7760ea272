package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node kinds in a protocol graph. The set is closed; the interpreter
// rejects anything else.
const (
	NodeStart  = "start"
	NodeCall   = "call"
	NodeBranch = "branch"
	NodeMerge  = "merge"
	NodeReturn = "return"
	NodeSet    = "set"
)

// Condition operators on branch edges.
const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpGt       = "gt"
	OpLt       = "lt"
	OpContains = "contains"
	OpEmpty    = "empty"
)

// ProtocolGraph is the executable body of a protocol entity, stored under
// its data "graph" field.
type ProtocolGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one step of a protocol graph.
//
// Kind-specific fields: Primitive and Inputs for call nodes (Inputs values
// may be "$.path" references or "{$.path}" templates over the binding map),
// Assign for set nodes, Outputs for return nodes.
type Node struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Primitive string         `json:"primitive,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Assign    map[string]any `json:"assign,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
}

// Edge connects two nodes. Branch arms carry a Condition; a Default edge
// is taken when no condition matches. An edge with neither is unconditional.
type Edge struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Condition *EdgeCondition `json:"condition,omitempty"`
	Default   bool           `json:"default,omitempty"`
}

// EdgeCondition is a pure predicate over the binding map. Left is a "$.path"
// reference resolved against bindings; Value is the comparison operand
// (unused for the empty operator).
type EdgeCondition struct {
	Left  string `json:"left"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
}

// ParseGraph decodes a protocol entity's "graph" data field. Node kinds are
// matched case-insensitively so authored graphs may use START/CALL spelling.
func ParseGraph(data map[string]any) (*ProtocolGraph, error) {
	raw, ok := data["graph"]
	if !ok {
		return nil, fmt.Errorf("protocol has no graph field")
	}

	// Round-trip through JSON so the free-form map decodes into the
	// typed graph structures.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}

	g := &ProtocolGraph{}
	if err := json.Unmarshal(buf, g); err != nil {
		return nil, fmt.Errorf("parsing graph: %w", err)
	}

	for i := range g.Nodes {
		g.Nodes[i].Kind = strings.ToLower(g.Nodes[i].Kind)
	}

	if err := g.validate(); err != nil {
		return nil, err
	}

	return g, nil
}

func (g *ProtocolGraph) validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}

	starts := 0
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("graph node missing id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate graph node id %q", n.ID)
		}
		seen[n.ID] = true

		switch n.Kind {
		case NodeStart:
			starts++
		case NodeCall:
			if n.Primitive == "" {
				return fmt.Errorf("call node %q has no primitive", n.ID)
			}
		case NodeBranch, NodeMerge, NodeReturn, NodeSet:
		default:
			return fmt.Errorf("node %q has unknown kind %q", n.ID, n.Kind)
		}
	}

	if starts != 1 {
		return fmt.Errorf("graph must have exactly one start node, found %d", starts)
	}

	for _, e := range g.Edges {
		if !seen[e.From] || !seen[e.To] {
			return fmt.Errorf("edge %s -> %s references unknown node", e.From, e.To)
		}
	}

	return nil
}

// Start returns the unique start node.
func (g *ProtocolGraph) Start() *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == NodeStart {
			return &g.Nodes[i]
		}
	}
	return nil
}

// NodeByID looks up a node, returning nil when absent.
func (g *ProtocolGraph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// EdgesFrom returns the outgoing edges of a node in declaration order.
func (g *ProtocolGraph) EdgesFrom(id string) []Edge {
	out := []Edge{}
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

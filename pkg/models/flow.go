// Package models defines the core domain models for business-process execution.
package models

import (
	"strings"
	"time"
)

// NodeType represents the kind of node in a flow graph.
type NodeType string

const (
	NodeTypeStart    NodeType = "start"    // Entry marker, never executed
	NodeTypeStep     NodeType = "step"     // Regular human task
	NodeTypeDecision NodeType = "decision" // Branch point, outgoing edges carry conditions
	NodeTypeTarget   NodeType = "target"   // Milestone step
	NodeTypeEnd      NodeType = "end"      // Terminal marker, never executed
)

// EdgeCondition represents the condition attached to a flow edge.
type EdgeCondition string

const (
	EdgeConditionDefault EdgeCondition = "default"
	EdgeConditionYes     EdgeCondition = "yes"
	EdgeConditionNo      EdgeCondition = "no"
)

// Flow represents an authored process graph. The execution engine only reads
// flows; authoring is owned by the flow designer module.
type Flow struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"       validate:"required,min=3"`
	Nodes     []*FlowNode `json:"nodes"`
	Edges     []*FlowEdge `json:"edges"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ValidationRules gate the completion of a step.
type ValidationRules struct {
	CommentRequired    bool `json:"comment_required"`
	AttachmentRequired bool `json:"attachment_required"`
}

// FlowNode represents a single node in a flow graph.
type FlowNode struct {
	ID       string          `json:"id"        validate:"required"`
	Type     NodeType        `json:"type"      validate:"required"`
	Label    string          `json:"label"`
	StepCode string          `json:"step_code,omitempty"`
	Rules    ValidationRules `json:"validation_rules"`
}

// IsStart reports whether the node is the flow entry. Older graphs predate the
// typed node column and mark the entry by id or label instead.
func (n *FlowNode) IsStart() bool {
	return n.Type == NodeTypeStart ||
		strings.EqualFold(n.ID, "start") ||
		strings.EqualFold(n.Label, "start")
}

// IsEnd reports whether the node is a flow terminal, with the same legacy
// id/label heuristics as IsStart.
func (n *FlowNode) IsEnd() bool {
	return n.Type == NodeTypeEnd ||
		strings.EqualFold(n.ID, "end") ||
		strings.EqualFold(n.Label, "end")
}

// IsExecutable reports whether the node materializes as a run step.
func (n *FlowNode) IsExecutable() bool {
	return !n.IsStart() && !n.IsEnd()
}

// FlowEdge represents a directed connection between two nodes.
type FlowEdge struct {
	ID           string        `json:"id"`
	SourceNodeID string        `json:"source_node_id" validate:"required"`
	TargetNodeID string        `json:"target_node_id" validate:"required"`
	Condition    EdgeCondition `json:"condition_type"`
}

// Node returns the node with the given id, or nil.
func (f *Flow) Node(id string) *FlowNode {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// StartNode returns the flow entry node, or nil when the graph has none.
func (f *Flow) StartNode() *FlowNode {
	for _, node := range f.Nodes {
		if node.IsStart() {
			return node
		}
	}

	return nil
}

// EdgesFrom returns the outgoing edges of a node in declaration order.
func (f *Flow) EdgesFrom(nodeID string) []*FlowEdge {
	edges := make([]*FlowEdge, 0)

	for _, edge := range f.Edges {
		if edge.SourceNodeID == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// MatchEdges returns the outgoing edges of a node whose condition matches the
// given decision, compared case-insensitively. An empty decision matches
// "default" edges, so unconditional branches work without caller input.
func (f *Flow) MatchEdges(nodeID, decision string) []*FlowEdge {
	if decision == "" {
		decision = string(EdgeConditionDefault)
	}

	matched := make([]*FlowEdge, 0)

	for _, edge := range f.EdgesFrom(nodeID) {
		if strings.EqualFold(string(edge.Condition), decision) {
			matched = append(matched, edge)
		}
	}

	return matched
}

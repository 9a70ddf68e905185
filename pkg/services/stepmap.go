package services

import (
	"github.com/runline/runline/pkg/models"
)

// MappedStep is one entry of a form's resolved step mapping: an executable
// flow node in deterministic execution order, with assignee and duration
// suggestions merged in from any existing assignment.
type MappedStep struct {
	NodeID          string `json:"node_id"`
	StepName        string `json:"step_name"`
	StepCode        string `json:"step_code,omitempty"`
	DoerID          string `json:"doer_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	SortOrder       int    `json:"sort_order"`
}

// ResolveExecutableSteps computes the ordered list of executable steps for a
// flow: a breadth-first walk from the start node following edges in
// declaration order, visiting each node at most once. Start and end markers
// are traversed through but excluded from the output. Executable nodes the
// walk never reaches are appended afterwards in declaration order, so an
// authored step is never silently dropped even when the graph is disconnected.
//
// The output order is the contract run instantiation depends on for sort
// order, so it must stay deterministic.
func ResolveExecutableSteps(flow *models.Flow, assignments []*models.StepAssignment) []MappedStep {
	byNode := make(map[string]*models.StepAssignment, len(assignments))
	for _, assignment := range assignments {
		byNode[assignment.NodeID] = assignment
	}

	visited := make(map[string]bool, len(flow.Nodes))
	ordered := make([]*models.FlowNode, 0, len(flow.Nodes))

	if start := flow.StartNode(); start != nil {
		queue := []*models.FlowNode{start}
		visited[start.ID] = true

		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]

			if node.IsExecutable() {
				ordered = append(ordered, node)
			}

			for _, edge := range flow.EdgesFrom(node.ID) {
				target := flow.Node(edge.TargetNodeID)
				if target == nil || visited[target.ID] {
					continue
				}

				visited[target.ID] = true
				queue = append(queue, target)
			}
		}
	}

	// Unreached executable nodes, in declaration order.
	for _, node := range flow.Nodes {
		if node.IsExecutable() && !visited[node.ID] {
			ordered = append(ordered, node)
		}
	}

	steps := make([]MappedStep, 0, len(ordered))

	for i, node := range ordered {
		step := MappedStep{
			NodeID:    node.ID,
			StepName:  node.Label,
			StepCode:  node.StepCode,
			SortOrder: i,
		}

		if assignment, ok := byNode[node.ID]; ok {
			step.DoerID = assignment.DoerID
			step.DurationMinutes = assignment.DurationMinutes
		}

		steps = append(steps, step)
	}

	return steps
}

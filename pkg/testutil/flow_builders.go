// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/runline/runline/pkg/models"
)

// CreateTestNode creates a test FlowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.FlowNode)) *models.FlowNode {
	node := &models.FlowNode{
		ID:    uuid.New().String(),
		Type:  models.NodeTypeStep,
		Label: "Test Step",
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Type = nodeType
	}
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Label = label
	}
}

// WithStepCode sets the node step code.
func WithStepCode(code string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.StepCode = code
	}
}

// WithRules sets the node validation rules.
func WithRules(rules models.ValidationRules) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Rules = rules
	}
}

// CreateTestEdge creates an unconditional edge between two nodes.
func CreateTestEdge(sourceNodeID, targetNodeID string) *models.FlowEdge {
	return CreateConditionalEdge(sourceNodeID, targetNodeID, models.EdgeConditionDefault)
}

// CreateConditionalEdge creates an edge carrying a branch condition.
func CreateConditionalEdge(sourceNodeID, targetNodeID string, condition models.EdgeCondition) *models.FlowEdge {
	return &models.FlowEdge{
		ID:           uuid.New().String(),
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
		Condition:    condition,
	}
}

// CreateTestFlow creates an empty test flow.
func CreateTestFlow() *models.Flow {
	now := time.Now().UTC()

	return &models.Flow{
		ID:        uuid.New().String(),
		Name:      "Test Flow",
		Nodes:     []*models.FlowNode{},
		Edges:     []*models.FlowEdge{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateLinearFlow creates start -> step-a -> step-b -> end.
func CreateLinearFlow() *models.Flow {
	flow := CreateTestFlow()

	flow.Nodes = []*models.FlowNode{
		CreateTestNode(WithID("start"), WithType(models.NodeTypeStart), WithLabel("Start")),
		CreateTestNode(WithID("step-a"), WithLabel("Step A"), WithStepCode("A")),
		CreateTestNode(WithID("step-b"), WithLabel("Step B"), WithStepCode("B")),
		CreateTestNode(WithID("end"), WithType(models.NodeTypeEnd), WithLabel("End")),
	}
	flow.Edges = []*models.FlowEdge{
		CreateTestEdge("start", "step-a"),
		CreateTestEdge("step-a", "step-b"),
		CreateTestEdge("step-b", "end"),
	}

	return flow
}

// CreateDecisionFlow creates start -> review -> check -(yes)-> approve -> end,
// with check -(no)-> rework -> end on the other branch.
func CreateDecisionFlow() *models.Flow {
	flow := CreateTestFlow()

	flow.Nodes = []*models.FlowNode{
		CreateTestNode(WithID("start"), WithType(models.NodeTypeStart), WithLabel("Start")),
		CreateTestNode(WithID("review"), WithLabel("Review")),
		CreateTestNode(WithID("check"), WithType(models.NodeTypeDecision), WithLabel("Check")),
		CreateTestNode(WithID("approve"), WithLabel("Approve")),
		CreateTestNode(WithID("rework"), WithLabel("Rework")),
		CreateTestNode(WithID("end"), WithType(models.NodeTypeEnd), WithLabel("End")),
	}
	flow.Edges = []*models.FlowEdge{
		CreateTestEdge("start", "review"),
		CreateTestEdge("review", "check"),
		CreateConditionalEdge("check", "approve", models.EdgeConditionYes),
		CreateConditionalEdge("check", "rework", models.EdgeConditionNo),
		CreateTestEdge("approve", "end"),
		CreateTestEdge("rework", "end"),
	}

	return flow
}

// CreateTestForm creates an active form bound to the given flow.
func CreateTestForm(flowID string) *models.Form {
	now := time.Now().UTC()

	return &models.Form{
		ID:     uuid.New().String(),
		FlowID: flowID,
		Name:   "Test Form",
		Status: models.FormStatusActive,
		Fields: []*models.FormField{
			{
				ID:        uuid.New().String(),
				Name:      "subject",
				Label:     "Subject",
				FieldType: "text",
				Required:  true,
				SortOrder: 1,
			},
			{
				ID:        uuid.New().String(),
				Name:      "notes",
				Label:     "Notes",
				FieldType: "text",
				SortOrder: 2,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestAssignment binds one flow node to a doer for the given form.
func CreateTestAssignment(formID, nodeID, doerID string, sortOrder int) *models.StepAssignment {
	return &models.StepAssignment{
		ID:              uuid.New().String(),
		FormID:          formID,
		NodeID:          nodeID,
		DoerID:          doerID,
		DurationMinutes: 60,
		SortOrder:       sortOrder,
	}
}

// AssignmentsFor creates assignments for the flow's executable nodes in the
// order given, all bound to the same doer.
func AssignmentsFor(formID, doerID string, nodeIDs ...string) []*models.StepAssignment {
	assignments := make([]*models.StepAssignment, 0, len(nodeIDs))

	for i, nodeID := range nodeIDs {
		assignments = append(assignments, CreateTestAssignment(formID, nodeID, doerID, i+1))
	}

	return assignments
}

package models_test

import (
	"testing"

	"github.com/runline/runline/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestFlowNode_Terminals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		node    models.FlowNode
		isStart bool
		isEnd   bool
	}{
		{
			name:    "typed start node",
			node:    models.FlowNode{ID: "n1", Type: models.NodeTypeStart},
			isStart: true,
		},
		{
			name:  "typed end node",
			node:  models.FlowNode{ID: "n9", Type: models.NodeTypeEnd},
			isEnd: true,
		},
		{
			name:    "legacy graph marks start by id",
			node:    models.FlowNode{ID: "Start", Type: models.NodeTypeStep},
			isStart: true,
		},
		{
			name:  "legacy graph marks end by label",
			node:  models.FlowNode{ID: "n5", Type: models.NodeTypeStep, Label: "END"},
			isEnd: true,
		},
		{
			name: "regular step",
			node: models.FlowNode{ID: "review", Type: models.NodeTypeStep, Label: "Review"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.isStart, tt.node.IsStart())
			assert.Equal(t, tt.isEnd, tt.node.IsEnd())
			assert.Equal(t, !tt.isStart && !tt.isEnd, tt.node.IsExecutable())
		})
	}
}

func TestFlow_MatchEdges(t *testing.T) {
	t.Parallel()

	flow := &models.Flow{
		Nodes: []*models.FlowNode{
			{ID: "check", Type: models.NodeTypeDecision},
			{ID: "approve", Type: models.NodeTypeStep},
			{ID: "rework", Type: models.NodeTypeStep},
		},
		Edges: []*models.FlowEdge{
			{ID: "e1", SourceNodeID: "check", TargetNodeID: "approve", Condition: models.EdgeConditionYes},
			{ID: "e2", SourceNodeID: "check", TargetNodeID: "rework", Condition: models.EdgeConditionNo},
		},
	}

	t.Run("matches case-insensitively", func(t *testing.T) {
		t.Parallel()

		matched := flow.MatchEdges("check", "YES")
		assert.Len(t, matched, 1)
		assert.Equal(t, "approve", matched[0].TargetNodeID)
	})

	t.Run("empty decision matches default edges only", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, flow.MatchEdges("check", ""))
	})

	t.Run("unknown decision matches nothing", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, flow.MatchEdges("check", "maybe"))
	})
}

func TestFlow_EdgesFrom_DeclarationOrder(t *testing.T) {
	t.Parallel()

	flow := &models.Flow{
		Edges: []*models.FlowEdge{
			{ID: "e1", SourceNodeID: "a", TargetNodeID: "b"},
			{ID: "e2", SourceNodeID: "a", TargetNodeID: "c"},
			{ID: "e3", SourceNodeID: "b", TargetNodeID: "c"},
		},
	}

	edges := flow.EdgesFrom("a")
	assert.Len(t, edges, 2)
	assert.Equal(t, "e1", edges[0].ID)
	assert.Equal(t, "e2", edges[1].ID)
}

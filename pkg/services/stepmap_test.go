package services_test

import (
	"testing"

	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/services"
	"github.com/runline/runline/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(steps []services.MappedStep) []string {
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.NodeID)
	}

	return ids
}

func TestResolveExecutableSteps_LinearFlow(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateLinearFlow()

	steps := services.ResolveExecutableSteps(flow, nil)

	assert.Equal(t, []string{"step-a", "step-b"}, nodeIDs(steps))

	for i, step := range steps {
		assert.Equal(t, i, step.SortOrder)
	}
}

func TestResolveExecutableSteps_DecisionBranchOrder(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateDecisionFlow()

	steps := services.ResolveExecutableSteps(flow, nil)

	// Breadth-first from start, edges in declaration order: the yes branch
	// (approve) was declared before the no branch (rework).
	assert.Equal(t, []string{"review", "check", "approve", "rework"}, nodeIDs(steps))
}

func TestResolveExecutableSteps_UnreachedNodesAppended(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateLinearFlow()
	flow.Nodes = append(flow.Nodes,
		testutil.CreateTestNode(testutil.WithID("orphan-1"), testutil.WithLabel("Orphan 1")),
		testutil.CreateTestNode(testutil.WithID("orphan-2"), testutil.WithLabel("Orphan 2")),
	)

	steps := services.ResolveExecutableSteps(flow, nil)

	assert.Equal(t, []string{"step-a", "step-b", "orphan-1", "orphan-2"}, nodeIDs(steps))
}

func TestResolveExecutableSteps_NoStartNode(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow()
	flow.Nodes = []*models.FlowNode{
		testutil.CreateTestNode(testutil.WithID("step-a")),
		testutil.CreateTestNode(testutil.WithID("step-b")),
	}

	steps := services.ResolveExecutableSteps(flow, nil)

	// Without an entry the walk finds nothing; declaration order still wins.
	assert.Equal(t, []string{"step-a", "step-b"}, nodeIDs(steps))
}

func TestResolveExecutableSteps_MergesAssignments(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateLinearFlow()
	assignments := []*models.StepAssignment{
		{NodeID: "step-b", DoerID: "bob", DurationMinutes: 45},
	}

	steps := services.ResolveExecutableSteps(flow, assignments)
	require.Len(t, steps, 2)

	assert.Empty(t, steps[0].DoerID)
	assert.Equal(t, "bob", steps[1].DoerID)
	assert.Equal(t, 45, steps[1].DurationMinutes)
	assert.Equal(t, "Step B", steps[1].StepName)
}

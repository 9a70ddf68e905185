package services_test

import (
	"context"
	"testing"

	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
	"github.com/runline/runline/pkg/services"
	"github.com/runline/runline/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flow := testutil.CreateLinearFlow()
	form := testutil.CreateTestForm(flow.ID)
	assignments := testutil.AssignmentsFor(form.ID, "bob", "step-a", "step-b")

	engine, _ := setupEngine(t, flow, form, assignments)
	runID := mustSubmit(t, engine, form.ID)

	detail, err := engine.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, detail.Run.ID)
	require.Len(t, detail.Steps, 2)
	assert.Equal(t, "step-a", detail.Steps[0].NodeID)
	assert.Equal(t, "step-b", detail.Steps[1].NodeID)

	_, err = engine.GetRun(ctx, "no-such-run")
	require.Error(t, err)
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestListRuns_FiltersAndProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flow := testutil.CreateLinearFlow()
	form := testutil.CreateTestForm(flow.ID)
	assignments := testutil.AssignmentsFor(form.ID, "bob", "step-a", "step-b")

	engine, store := setupEngine(t, flow, form, assignments)

	first := mustSubmit(t, engine, form.ID)
	second := mustSubmit(t, engine, form.ID)

	require.NoError(t, engine.CancelRun(ctx, second, "carol"))

	stepA := stepByNode(t, store, first, "step-a")
	_, err := engine.CompleteStep(ctx, services.CompleteStepRequest{StepID: stepA.ID}, "bob")
	require.NoError(t, err)

	all, err := engine.ListRuns(ctx, persistence.ListRunsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running := models.RunStatusRunning
	filtered, err := engine.ListRuns(ctx, persistence.ListRunsOptions{Status: &running})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first, filtered[0].Run.ID)
	assert.Equal(t, 2, filtered[0].TotalSteps)
	assert.Equal(t, 1, filtered[0].CompletedSteps)

	byFlow, err := engine.ListRuns(ctx, persistence.ListRunsOptions{FlowID: "other-flow"})
	require.NoError(t, err)
	assert.Empty(t, byFlow)

	limited, err := engine.ListRuns(ctx, persistence.ListRunsOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMyActiveTasksAndHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flow := testutil.CreateLinearFlow()
	form := testutil.CreateTestForm(flow.ID)
	assignments := testutil.AssignmentsFor(form.ID, "bob", "step-a", "step-b")

	engine, store := setupEngine(t, flow, form, assignments)
	runID := mustSubmit(t, engine, form.ID)

	tasks, err := engine.MyActiveTasks(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "step-a", tasks[0].NodeID)

	none, err := engine.MyActiveTasks(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, none)

	stepA := stepByNode(t, store, runID, "step-a")
	_, err = engine.CompleteStep(ctx, services.CompleteStepRequest{StepID: stepA.ID}, "bob")
	require.NoError(t, err)

	// step-a moved to history, step-b became the active task.
	tasks, err = engine.MyActiveTasks(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "step-b", tasks[0].NodeID)

	history, err := engine.MyHistory(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "step-a", history[0].NodeID)
	assert.Equal(t, models.RunStepStatusCompleted, history[0].Status)
}

func TestStepMapping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flow := testutil.CreateDecisionFlow()
	form := testutil.CreateTestForm(flow.ID)
	assignments := []*models.StepAssignment{
		testutil.CreateTestAssignment(form.ID, "review", "bob", 1),
	}

	engine, _ := setupEngine(t, flow, form, assignments)

	mapping, err := engine.StepMapping(ctx, flow.ID, form.ID)
	require.NoError(t, err)
	require.Len(t, mapping, 4)
	assert.Equal(t, "review", mapping[0].NodeID)
	assert.Equal(t, "bob", mapping[0].DoerID)
	assert.Empty(t, mapping[1].DoerID)

	// Without a form the mapping still resolves, just unassigned.
	mapping, err = engine.StepMapping(ctx, flow.ID, "")
	require.NoError(t, err)
	require.Len(t, mapping, 4)
	assert.Empty(t, mapping[0].DoerID)

	_, err = engine.StepMapping(ctx, "no-such-flow", "")
	require.Error(t, err)
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestGetFlowAndForm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	flow := testutil.CreateLinearFlow()
	form := testutil.CreateTestForm(flow.ID)

	engine, _ := setupEngine(t, flow, form, nil)

	got, err := engine.GetFlow(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, flow.Name, got.Name)
	assert.Len(t, got.Nodes, 4)

	gotForm, err := engine.GetForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.Name, gotForm.Name)
	assert.Equal(t, models.FormStatusActive, gotForm.Status)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	engine, _ := setupEngine(t, nil, nil, nil)

	_, healthy := engine.HealthCheck(context.Background())
	assert.True(t, healthy)
}

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence/file"
	"github.com/runline/runline/pkg/services"
	"github.com/runline/runline/pkg/testutil"
	"github.com/runline/runline/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app       *fiber.App
	store     *file.Persistence
	engine    *services.Engine
	form      *models.Form
	attachDir string
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	flow := testutil.CreateLinearFlow()
	form := testutil.CreateTestForm(flow.ID)
	assignments := testutil.AssignmentsFor(form.ID, "bob", "step-a", "step-b")

	require.NoError(t, store.FlowRepository().Save(ctx, flow))
	require.NoError(t, store.FormRepository().Save(ctx, form, assignments))

	engine := services.NewEngine(store, services.AllowAllAuthorizer{}, nil, nil)
	attachDir := t.TempDir()
	attachments := services.NewLocalAttachmentStore(attachDir)
	handlers := web.NewAPIHandlers(engine, attachments, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	r := app.Group("/runs")
	r.Post("/", handlers.SubmitRun)
	r.Get("/", handlers.ListRuns)
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)

	s := app.Group("/steps")
	s.Post("/:id/start", handlers.StartStep)
	s.Post("/:id/complete", handlers.CompleteStep)

	tg := app.Group("/tasks")
	tg.Get("/", handlers.MyTasks)
	tg.Get("/history", handlers.MyHistory)

	app.Get("/flows/:id", handlers.GetFlow)
	app.Get("/forms/:id", handlers.GetForm)
	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, store: store, engine: engine, form: form, attachDir: attachDir}
}

func jsonRequest(t *testing.T, method, target, userID string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	return req
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func submitRun(t *testing.T, env *testEnv) string {
	t.Helper()

	req := jsonRequest(t, http.MethodPost, "/runs/", "alice", web.SubmitRunRequest{
		FormID:   env.form.ID,
		Title:    "Vendor onboarding",
		FormData: map[string]any{"subject": "Acme Corp"},
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body web.SubmitRunResponse

	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.RunID)

	return body.RunID
}

func pendingStepID(t *testing.T, env *testEnv, runID string) string {
	t.Helper()

	steps, err := env.store.RunRepository().StepsByRun(context.Background(), runID)
	require.NoError(t, err)

	for _, step := range steps {
		if step.IsOpen() {
			return step.ID
		}
	}

	t.Fatalf("run %s has no open step", runID)

	return ""
}

func TestSubmitRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		userID         string
		body           any
		expectedStatus int
	}{
		{
			name:           "missing identity header",
			body:           web.SubmitRunRequest{FormID: "f", Title: "t"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid JSON",
			userID:         "alice",
			body:           "not-json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing form id",
			userID:         "alice",
			body:           web.SubmitRunRequest{Title: "t"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown form",
			userID:         "alice",
			body:           web.SubmitRunRequest{FormID: "ghost", Title: "t"},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/runs/", tt.userID, tt.body))
			require.NoError(t, err)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}

	t.Run("successful submission", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t)
		runID := submitRun(t, env)

		run, err := env.store.RunRepository().RunByID(context.Background(), runID)
		require.NoError(t, err)
		assert.Equal(t, "alice", run.InitiatedBy)
		assert.Equal(t, models.RunStatusRunning, run.Status)
	})

	t.Run("title is optional", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t)

		req := jsonRequest(t, http.MethodPost, "/runs/", "alice", web.SubmitRunRequest{
			FormID:   env.form.ID,
			FormData: map[string]any{"subject": "Acme Corp"},
		})

		resp, err := env.app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body web.SubmitRunResponse

		decodeBody(t, resp, &body)

		run, err := env.store.RunRepository().RunByID(context.Background(), body.RunID)
		require.NoError(t, err)
		assert.Empty(t, run.Title)
	})

	t.Run("missing required field is a 400", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t)

		req := jsonRequest(t, http.MethodPost, "/runs/", "alice", web.SubmitRunRequest{
			FormID:   env.form.ID,
			Title:    "Vendor onboarding",
			FormData: map[string]any{"notes": "missing subject"},
		})

		resp, err := env.app.Test(req)
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("inactive form is a 409", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t)

		env.form.Status = models.FormStatusInactive
		require.NoError(t, env.store.FormRepository().Save(context.Background(), env.form, nil))

		req := jsonRequest(t, http.MethodPost, "/runs/", "alice", web.SubmitRunRequest{
			FormID:   env.form.ID,
			Title:    "Vendor onboarding",
			FormData: map[string]any{"subject": "Acme Corp"},
		})

		resp, err := env.app.Test(req)
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	runID := submitRun(t, env)

	resp, err := env.app.Test(jsonRequest(t, http.MethodGet, "/runs/"+runID, "", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail services.RunDetail

	decodeBody(t, resp, &detail)
	assert.Equal(t, runID, detail.Run.ID)
	assert.Len(t, detail.Steps, 2)

	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/runs/missing", "", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	submitRun(t, env)

	resp, err := env.app.Test(jsonRequest(t, http.MethodGet, "/runs/?status=running", "", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}

	decodeBody(t, resp, &body)
	assert.Equal(t, 1, body.Count)

	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/runs/?status=bogus", "", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartAndCompleteStep(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	runID := submitRun(t, env)
	stepID := pendingStepID(t, env, runID)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/steps/"+stepID+"/start", "bob", nil))
	require.NoError(t, err)

	func() {
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}()

	// Wrong assignee gets a 403.
	resp, err = env.app.Test(jsonRequest(t, http.MethodPost, "/steps/"+stepID+"/complete", "mallory", web.CompleteStepRequest{}))
	require.NoError(t, err)

	func() {
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}()

	resp, err = env.app.Test(jsonRequest(t, http.MethodPost, "/steps/"+stepID+"/complete", "bob", web.CompleteStepRequest{Comment: "done"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result services.CompleteResult

	decodeBody(t, resp, &result)
	assert.True(t, result.Completed)
	assert.Equal(t, "step-b", result.NextNodeID)
}

func TestCompleteStep_WithAttachment(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	runID := submitRun(t, env)
	stepID := pendingStepID(t, env, runID)

	req := jsonRequest(t, http.MethodPost, "/steps/"+stepID+"/complete", "bob", web.CompleteStepRequest{
		Attachment:     []byte("report contents"),
		AttachmentName: "report.pdf",
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	step, err := env.store.RunRepository().StepByID(context.Background(), stepID)
	require.NoError(t, err)
	assert.NotEmpty(t, step.AttachmentPath)
	assert.Contains(t, step.AttachmentPath, "report.pdf")
}

func TestCompleteStep_RejectedUploadIsDiscarded(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	runID := submitRun(t, env)
	stepID := pendingStepID(t, env, runID)

	req := jsonRequest(t, http.MethodPost, "/steps/"+stepID+"/complete", "mallory", web.CompleteStepRequest{
		Attachment:     []byte("report contents"),
		AttachmentName: "report.pdf",
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The rejected completion leaves neither a file nor a recorded path behind.
	entries, err := os.ReadDir(filepath.Join(env.attachDir, "attachments"))
	if err == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(err))
	}

	step, err := env.store.RunRepository().StepByID(context.Background(), stepID)
	require.NoError(t, err)
	assert.Empty(t, step.AttachmentPath)
}

func TestCompleteStep_StalledBranchIsConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := setupTestApp(t)

	// A flow whose only step has no outgoing edges stalls on completion.
	flow := testutil.CreateTestFlow()
	flow.Nodes = []*models.FlowNode{
		testutil.CreateTestNode(testutil.WithID("start"), testutil.WithType(models.NodeTypeStart)),
		testutil.CreateTestNode(testutil.WithID("lonely"), testutil.WithLabel("Lonely")),
	}
	flow.Edges = []*models.FlowEdge{testutil.CreateTestEdge("start", "lonely")}
	require.NoError(t, env.store.FlowRepository().Save(ctx, flow))

	form := testutil.CreateTestForm(flow.ID)
	form.Fields = nil
	require.NoError(t, env.store.FormRepository().Save(ctx, form,
		testutil.AssignmentsFor(form.ID, "bob", "lonely")))

	runID, err := env.engine.Submit(ctx, services.SubmitRequest{FormID: form.ID, Title: "t", SubmitterID: "alice"})
	require.NoError(t, err)

	stepID := pendingStepID(t, env, runID)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/steps/"+stepID+"/complete", "bob", web.CompleteStepRequest{}))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	run, err := env.store.RunRepository().RunByID(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPaused, run.Status)
}

func TestCancelRun(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	runID := submitRun(t, env)

	resp, err := env.app.Test(jsonRequest(t, http.MethodPost, "/runs/"+runID+"/cancel", "carol", nil))
	require.NoError(t, err)

	func() {
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}()

	run, err := env.store.RunRepository().RunByID(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, run.Status)

	// Cancelling again conflicts with the closed state.
	resp, err = env.app.Test(jsonRequest(t, http.MethodPost, "/runs/"+runID+"/cancel", "carol", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTaskFeeds(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	runID := submitRun(t, env)
	stepID := pendingStepID(t, env, runID)

	resp, err := env.app.Test(jsonRequest(t, http.MethodGet, "/tasks/", "bob", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tasks struct {
		Count int `json:"count"`
	}

	decodeBody(t, resp, &tasks)
	assert.Equal(t, 1, tasks.Count)

	_, err = env.engine.CompleteStep(context.Background(), services.CompleteStepRequest{StepID: stepID}, "bob")
	require.NoError(t, err)

	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/tasks/history?limit=5", "bob", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Count int `json:"count"`
	}

	decodeBody(t, resp, &history)
	assert.Equal(t, 1, history.Count)

	// The feed is identity-scoped; no header, no feed.
	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/tasks/", "", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFlowAndFormEndpoints(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodGet, "/forms/"+env.form.ID, "", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var form models.Form

	decodeBody(t, resp, &form)
	assert.Equal(t, env.form.ID, form.ID)

	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/flows/"+form.FlowID, "", nil))
	require.NoError(t, err)

	func() {
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}()

	resp, err = env.app.Test(jsonRequest(t, http.MethodGet, "/flows/missing", "", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	resp, err := env.app.Test(jsonRequest(t, http.MethodGet, "/health", "", nil))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

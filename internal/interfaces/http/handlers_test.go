package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/image-annotation/internal/application/service"
	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	domainwf "github.com/garyjia/image-annotation/internal/domain/workflow"
)

type mockLogger struct{}

func (mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeEngine records the last call and returns canned results
type fakeEngine struct {
	workflow.Engine

	err error

	gotActor  workflow.Actor
	gotSubmit workflow.SubmitInput
	gotReview workflow.ReviewInput
	gotBatch  []workflow.ReviewInput
	gotFilter entity.TaskFilter
	gotTaskID int64
}

func (f *fakeEngine) Claim(ctx context.Context, actor workflow.Actor, taskID int64) (*entity.Task, error) {
	f.gotActor, f.gotTaskID = actor, taskID
	if f.err != nil {
		return nil, f.err
	}
	assignee := actor.UserID
	return &entity.Task{ID: taskID, Status: domainwf.StateAnnotating, AssignedTo: &assignee}, nil
}

func (f *fakeEngine) SubmitAnnotation(ctx context.Context, actor workflow.Actor, input workflow.SubmitInput) (*workflow.SubmitOutcome, error) {
	f.gotActor, f.gotSubmit = actor, input
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.SubmitOutcome{
		Task:       &entity.Task{ID: input.TaskID, Status: domainwf.StateReviewing},
		Annotation: &entity.Annotation{ID: 7, TaskID: input.TaskID, Label: input.Label},
	}, nil
}

func (f *fakeEngine) DecideReview(ctx context.Context, actor workflow.Actor, input workflow.ReviewInput) (*workflow.ReviewOutcome, error) {
	f.gotActor, f.gotReview = actor, input
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.ReviewOutcome{
		Task:   &entity.Task{ID: 1, Status: domainwf.StateCompleted},
		Review: &entity.Review{AnnotationID: input.AnnotationID, Decision: input.Decision},
	}, nil
}

func (f *fakeEngine) BatchDecideReview(ctx context.Context, actor workflow.Actor, inputs []workflow.ReviewInput) (*workflow.BatchResult, error) {
	f.gotActor, f.gotBatch = actor, inputs
	if f.err != nil {
		return &workflow.BatchResult{}, f.err
	}
	return &workflow.BatchResult{
		Applied: len(inputs) - 1,
		Skipped: []workflow.BatchSkip{{AnnotationID: inputs[len(inputs)-1].AnnotationID, Kind: "conflict"}},
	}, nil
}

func (f *fakeEngine) ListAssignable(ctx context.Context, actor workflow.Actor, filter entity.TaskFilter) (*workflow.TaskPage, error) {
	f.gotActor, f.gotFilter = actor, filter
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.TaskPage{Tasks: []*entity.Task{{ID: 1, Status: domainwf.StatePending}}, Total: 1, Limit: 20}, nil
}

func (f *fakeEngine) DeleteTask(ctx context.Context, actor workflow.Actor, taskID int64) error {
	f.gotActor, f.gotTaskID = actor, taskID
	return f.err
}

type fakeUsers struct {
	service.UserService
	users map[int64]*entity.User
	err   error
}

func (f *fakeUsers) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user %d", id)
}

type fakeArchive struct {
	service.ArchiveService
	exportErr error
}

func (f *fakeArchive) ExportCompleted(ctx context.Context, actor workflow.Actor, w io.Writer) (string, error) {
	if f.exportErr != nil {
		return "", f.exportErr
	}
	_, _ = w.Write([]byte("xlsx-bytes"))
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
}

func newTestServer(engine *fakeEngine, users *fakeUsers, archive *fakeArchive, health HealthFunc) *Server {
	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	return NewServer(cfg, engine, users, archive, health, mockLogger{})
}

func defaultUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]*entity.User{
		1: {ID: 1, Username: "admin", Role: entity.RoleAdmin},
		2: {ID: 2, Username: "r1", Role: entity.RoleReviewer},
		3: {ID: 3, Username: "u1", Role: entity.RoleAnnotator},
	}}
}

func do(t *testing.T, s *Server, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestIdentityMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		users  *fakeUsers
		want   int
	}{
		{"missing header", "", defaultUsers(), http.StatusUnauthorized},
		{"not a number", "abc", defaultUsers(), http.StatusUnauthorized},
		{"unknown user", "99", defaultUsers(), http.StatusUnauthorized},
		{"directory down", "3", &fakeUsers{err: apperr.Transient(errors.New("database is locked"))}, http.StatusServiceUnavailable},
		{"known user", "3", defaultUsers(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeEngine{}, tt.users, &fakeArchive{}, nil)
			w, _ := do(t, s, http.MethodPost, "/api/tasks/5/claim", tt.header, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestClaimTask(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/tasks/5/claim", "3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(5), engine.gotTaskID)
	assert.Equal(t, workflow.Actor{UserID: 3, Role: entity.RoleAnnotator}, engine.gotActor)
}

func TestClaimTask_BadID(t *testing.T) {
	s := newTestServer(&fakeEngine{}, defaultUsers(), &fakeArchive{}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/tasks/zero/claim", "3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", resp.Kind)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"not found", apperr.NotFound("task 5"), http.StatusNotFound, "not_found"},
		{"lost race", apperr.Conflict("task 5 already claimed"), http.StatusConflict, "conflict"},
		{"forbidden", apperr.Forbidden("role annotator"), http.StatusForbidden, "forbidden"},
		{"invalid", apperr.Invalid("bad label"), http.StatusBadRequest, "invalid"},
		{"transient", apperr.Transient(errors.New("busy")), http.StatusServiceUnavailable, "transient"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeEngine{err: tt.err}, defaultUsers(), &fakeArchive{}, nil)

			w, resp := do(t, s, http.MethodPost, "/api/tasks/5/claim", "3", nil)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.Kind)
			if tt.wantKind == "unknown" {
				assert.Equal(t, "internal error", resp.Error)
			}
		})
	}
}

func TestSubmitAnnotation(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/tasks/9/annotation", "3", map[string]interface{}{
		"label":           "catA",
		"confidence":      0.9,
		"elapsed_seconds": 12,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	assert.Equal(t, int64(9), engine.gotSubmit.TaskID)
	assert.Equal(t, entity.Label("catA"), engine.gotSubmit.Label)
	require.NotNil(t, engine.gotSubmit.Confidence)
	assert.InDelta(t, 0.9, *engine.gotSubmit.Confidence, 1e-9)
	require.NotNil(t, engine.gotSubmit.ElapsedSeconds)
	assert.Equal(t, int64(12), *engine.gotSubmit.ElapsedSeconds)
}

func TestSubmitAnnotation_OptionalFieldsStayNil(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, _ := do(t, s, http.MethodPost, "/api/tasks/9/annotation", "3", map[string]interface{}{"label": "catB"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, engine.gotSubmit.Confidence)
	assert.Nil(t, engine.gotSubmit.ElapsedSeconds)
}

func TestSubmitAnnotation_MalformedBody(t *testing.T) {
	s := newTestServer(&fakeEngine{}, defaultUsers(), &fakeArchive{}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/tasks/9/annotation", "3", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", resp.Kind)
}

func TestDecideReview(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, _ := do(t, s, http.MethodPost, "/api/annotations/7/review", "2", map[string]string{
		"decision": "approved",
		"comment":  "looks right",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, workflow.ReviewInput{AnnotationID: 7, Decision: entity.DecisionApproved, Comment: "looks right"}, engine.gotReview)
	assert.Equal(t, entity.RoleReviewer, engine.gotActor.Role)
}

func TestBatchDecideReview(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/reviews/batch", "2", map[string]interface{}{
		"reviews": []map[string]interface{}{
			{"annotation_id": 1, "decision": "approved"},
			{"annotation_id": 2, "decision": "rejected", "comment": "blurry"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, engine.gotBatch, 2)
	assert.Equal(t, "blurry", engine.gotBatch[1].Comment)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, data["applied"])
}

func TestListTasks_PassesFilter(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, _ := do(t, s, http.MethodGet, "/api/tasks?status=rejected&limit=5&offset=10", "3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, engine.gotFilter.Status)
	assert.Equal(t, domainwf.StateRejected, *engine.gotFilter.Status)
	assert.Equal(t, 5, engine.gotFilter.Limit)
	assert.Equal(t, 10, engine.gotFilter.Offset)
}

func TestDeleteTask(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(engine, defaultUsers(), &fakeArchive{}, nil)

	w, _ := do(t, s, http.MethodDelete, "/api/tasks/4", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), engine.gotTaskID)
}

func TestExportCompleted(t *testing.T) {
	s := newTestServer(&fakeEngine{}, defaultUsers(), &fakeArchive{}, nil)

	w, _ := do(t, s, http.MethodGet, "/api/completed/export", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "xlsx-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
}

func TestExportCompleted_Forbidden(t *testing.T) {
	s := newTestServer(&fakeEngine{}, defaultUsers(), &fakeArchive{exportErr: apperr.Forbidden("export")}, nil)

	w, resp := do(t, s, http.MethodGet, "/api/completed/export", "3", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", resp.Kind)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(&fakeEngine{}, defaultUsers(), &fakeArchive{}, func(ctx context.Context) (bool, interface{}) {
			return true, map[string]string{"database": "ok"}
		})
		w, resp := do(t, s, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)
	})

	t.Run("unhealthy", func(t *testing.T) {
		s := newTestServer(&fakeEngine{}, defaultUsers(), &fakeArchive{}, func(ctx context.Context) (bool, interface{}) {
			return false, nil
		})
		w, resp := do(t, s, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.False(t, resp.Success)
	})
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	infos, errors int
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  { m.infos++ }
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) { m.errors++ }

type mockUserRepo struct {
	createFunc        func(ctx context.Context, user *entity.User) error
	getByIDFunc       func(ctx context.Context, id int64) (*entity.User, error)
	getByUsernameFunc func(ctx context.Context, username string) (*entity.User, error)
	listFunc          func(ctx context.Context, page entity.Page) ([]*entity.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = 1
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	if m.getByUsernameFunc != nil {
		return m.getByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context, page entity.Page) ([]*entity.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, page)
	}
	return nil, nil
}

type mockAnnotationRepo struct {
	listForReviewFunc func(ctx context.Context, status entity.ReviewQueueStatus, page entity.Page) ([]*entity.ReviewQueueItem, int, error)
}

func (m *mockAnnotationRepo) Upsert(ctx context.Context, annotation *entity.Annotation) error {
	return nil
}

func (m *mockAnnotationRepo) GetByID(ctx context.Context, id int64) (*entity.Annotation, error) {
	return nil, nil
}

func (m *mockAnnotationRepo) GetByTaskID(ctx context.Context, taskID int64) (*entity.Annotation, error) {
	return nil, nil
}

func (m *mockAnnotationRepo) CountByTaskID(ctx context.Context, taskID int64) (int, error) {
	return 0, nil
}

func (m *mockAnnotationRepo) ListForReview(ctx context.Context, status entity.ReviewQueueStatus, page entity.Page) ([]*entity.ReviewQueueItem, int, error) {
	if m.listForReviewFunc != nil {
		return m.listForReviewFunc(ctx, status, page)
	}
	return nil, 0, nil
}

type mockCompletedRepo struct {
	listFunc func(ctx context.Context, page entity.Page) ([]*entity.CompletedRecord, int, error)
}

func (m *mockCompletedRepo) Append(ctx context.Context, record *entity.CompletedRecord) error {
	return nil
}

func (m *mockCompletedRepo) GetByTaskID(ctx context.Context, taskID int64) (*entity.CompletedRecord, error) {
	return nil, nil
}

func (m *mockCompletedRepo) List(ctx context.Context, page entity.Page) ([]*entity.CompletedRecord, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, page)
	}
	return nil, 0, nil
}

func (m *mockCompletedRepo) CountByTaskID(ctx context.Context, taskID int64) (int, error) {
	return 0, nil
}

type mockExporter struct {
	exportFunc func(ctx context.Context, records []*entity.CompletedRecord, w io.Writer) error
}

func (m *mockExporter) ContentType() string { return "text/csv" }

func (m *mockExporter) Export(ctx context.Context, records []*entity.CompletedRecord, w io.Writer) error {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, records, w)
	}
	_, err := fmt.Fprintf(w, "%d records", len(records))
	return err
}

var (
	admin     = workflow.Actor{UserID: 1, Role: entity.RoleAdmin}
	reviewer  = workflow.Actor{UserID: 2, Role: entity.RoleReviewer}
	annotator = workflow.Actor{UserID: 3, Role: entity.RoleAnnotator}
)

func TestUserService_CreateUser(t *testing.T) {
	tests := []struct {
		name    string
		actor   workflow.Actor
		input   CreateUserInput
		repoErr error
		want    apperr.Kind
	}{
		{"non-admin refused", reviewer, CreateUserInput{Username: "x", Role: entity.RoleAnnotator}, nil, apperr.KindForbidden},
		{"blank username", admin, CreateUserInput{Username: "  ", Role: entity.RoleAnnotator}, nil, apperr.KindInvalid},
		{"username with spaces", admin, CreateUserInput{Username: "ann o", Role: entity.RoleAnnotator}, nil, apperr.KindInvalid},
		{"bad email", admin, CreateUserInput{Username: "ann", Email: "nope", Role: entity.RoleAnnotator}, nil, apperr.KindInvalid},
		{"bad role", admin, CreateUserInput{Username: "x", Role: "owner"}, nil, apperr.KindInvalid},
		{"taken username", admin, CreateUserInput{Username: "x", Role: entity.RoleAnnotator}, apperr.Conflict("taken"), apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{createFunc: func(ctx context.Context, user *entity.User) error { return tt.repoErr }}
			_, err := NewUserService(repo, &mockLogger{}).CreateUser(context.Background(), tt.actor, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}

	t.Run("creates trimmed user", func(t *testing.T) {
		var created *entity.User
		repo := &mockUserRepo{createFunc: func(ctx context.Context, user *entity.User) error {
			user.ID = 42
			created = user
			return nil
		}}
		logger := &mockLogger{}

		user, err := NewUserService(repo, logger).CreateUser(context.Background(), admin,
			CreateUserInput{Username: " ann ", Email: "a@example.com", Role: entity.RoleAnnotator})
		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.Equal(t, "ann", created.Username)
		assert.Equal(t, 1, logger.infos)
	})
}

func TestUserService_GetUser(t *testing.T) {
	repo := &mockUserRepo{getByIDFunc: func(ctx context.Context, id int64) (*entity.User, error) {
		switch id {
		case 1:
			return &entity.User{ID: 1, Role: entity.RoleAdmin}, nil
		case 2:
			return nil, errors.New("db down")
		default:
			return nil, nil
		}
	}}
	svc := NewUserService(repo, &mockLogger{})

	user, err := svc.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, user.Role)

	_, err = svc.GetUser(context.Background(), 2)
	assert.ErrorIs(t, err, apperr.ErrTransient)

	_, err = svc.GetUser(context.Background(), 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserService_ListUsers(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, &mockLogger{})

	_, err := svc.ListUsers(context.Background(), annotator, entity.Page{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	users, err := svc.ListUsers(context.Background(), admin, entity.Page{})
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	t.Run("creates when missing", func(t *testing.T) {
		created := 0
		repo := &mockUserRepo{createFunc: func(ctx context.Context, user *entity.User) error {
			created++
			assert.Equal(t, entity.RoleAdmin, user.Role)
			user.ID = 7
			return nil
		}}
		user, err := NewUserService(repo, &mockLogger{}).EnsureAdmin(context.Background(), "root")
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, 1, created)
	})

	t.Run("keeps existing", func(t *testing.T) {
		logger := &mockLogger{}
		repo := &mockUserRepo{
			getByUsernameFunc: func(ctx context.Context, username string) (*entity.User, error) {
				return &entity.User{ID: 3, Username: username, Role: entity.RoleReviewer}, nil
			},
			createFunc: func(ctx context.Context, user *entity.User) error {
				t.Fatal("unexpected create")
				return nil
			},
		}
		user, err := NewUserService(repo, logger).EnsureAdmin(context.Background(), "root")
		require.NoError(t, err)
		assert.Equal(t, int64(3), user.ID)
		assert.Equal(t, 1, logger.errors)
	})

	t.Run("rejects empty username", func(t *testing.T) {
		_, err := NewUserService(&mockUserRepo{}, &mockLogger{}).EnsureAdmin(context.Background(), "")
		assert.ErrorIs(t, err, apperr.ErrInvalid)
	})
}

func TestArchiveService_ReviewQueue(t *testing.T) {
	var gotStatus entity.ReviewQueueStatus
	var gotPage entity.Page
	repo := &mockAnnotationRepo{listForReviewFunc: func(ctx context.Context, status entity.ReviewQueueStatus, page entity.Page) ([]*entity.ReviewQueueItem, int, error) {
		gotStatus, gotPage = status, page
		return []*entity.ReviewQueueItem{{TaskID: 1}}, 5, nil
	}}
	svc := NewArchiveService(repo, &mockCompletedRepo{}, &mockExporter{}, PageLimits{Default: 10, Max: 50}, &mockLogger{})

	page, err := svc.ReviewQueue(context.Background(), reviewer, "", entity.Page{Limit: 500, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, entity.QueuePending, gotStatus)
	assert.Equal(t, entity.Page{Limit: 50, Offset: 0}, gotPage)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 1)

	_, err = svc.ReviewQueue(context.Background(), annotator, entity.QueueAll, entity.Page{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.ReviewQueue(context.Background(), reviewer, "later", entity.Page{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	repo.listForReviewFunc = func(ctx context.Context, status entity.ReviewQueueStatus, page entity.Page) ([]*entity.ReviewQueueItem, int, error) {
		return nil, 0, errors.New("db down")
	}
	_, err = svc.ReviewQueue(context.Background(), reviewer, entity.QueueAll, entity.Page{})
	assert.ErrorIs(t, err, apperr.ErrTransient)
}

func TestArchiveService_ListCompleted(t *testing.T) {
	repo := &mockCompletedRepo{listFunc: func(ctx context.Context, page entity.Page) ([]*entity.CompletedRecord, int, error) {
		assert.Equal(t, 10, page.Limit)
		return nil, 0, nil
	}}
	svc := NewArchiveService(&mockAnnotationRepo{}, repo, &mockExporter{}, PageLimits{Default: 10, Max: 50}, &mockLogger{})

	page, err := svc.ListCompleted(context.Background(), reviewer, entity.Page{})
	require.NoError(t, err)
	assert.NotNil(t, page.Records)

	_, err = svc.ListCompleted(context.Background(), annotator, entity.Page{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestArchiveService_ExportCompleted(t *testing.T) {
	repo := &mockCompletedRepo{listFunc: func(ctx context.Context, page entity.Page) ([]*entity.CompletedRecord, int, error) {
		assert.Zero(t, page.Limit, "export reads the whole archive")
		return []*entity.CompletedRecord{{ID: 1}, {ID: 2}}, 2, nil
	}}
	logger := &mockLogger{}
	svc := NewArchiveService(&mockAnnotationRepo{}, repo, &mockExporter{}, PageLimits{}, logger)

	var buf bytes.Buffer
	contentType, err := svc.ExportCompleted(context.Background(), admin, &buf)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "2 records", buf.String())

	_, err = svc.ExportCompleted(context.Background(), reviewer, &buf)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	failing := NewArchiveService(&mockAnnotationRepo{}, repo, &mockExporter{
		exportFunc: func(ctx context.Context, records []*entity.CompletedRecord, w io.Writer) error {
			return errors.New("disk full")
		},
	}, PageLimits{}, logger)
	_, err = failing.ExportCompleted(context.Background(), admin, &buf)
	assert.Error(t, err)
	assert.Equal(t, 1, logger.errors)
}

package tracker

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/logger"
	"github.com/tgienger/taskdesk/internal/models"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

type env struct {
	svc      *Service
	customer models.User
	executor models.User
	clock    *time.Time
}

func setup(t *testing.T, repo db.Repository) env {
	t.Helper()
	ctx := testCtx(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := New(repo)
	e := env{svc: svc, clock: &now}
	svc.now = func() time.Time { return *e.clock }

	var err error
	e.customer, err = svc.CreateUser(ctx, "Alice", "alice@example.com", "customer")
	require.NoError(t, err)
	e.executor, err = svc.CreateUser(ctx, "Bob", "bob@example.com", "executor")
	require.NoError(t, err)
	return e
}

func (e env) createInput(tags ...string) CreateTaskInput {
	return CreateTaskInput{
		Title:      "Invoice",
		Priority:   "high",
		CustomerID: e.customer.ID,
		ExecutorID: e.executor.ID,
		Tags:       tags,
	}
}

func (e env) updateInput(status string, tags ...string) UpdateTaskInput {
	return UpdateTaskInput{
		Title:      "Invoice",
		Status:     status,
		Priority:   "high",
		CustomerID: e.customer.ID,
		ExecutorID: e.executor.ID,
		Tags:       tags,
	}
}

func TestService(t *testing.T) {
	t.Run("Should_create_task_with_new_and_existing_tags", func(t *testing.T) {
		repo := newMemRepo()
		e := setup(t, repo)
		ctx := testCtx(t)
		existing, err := e.svc.CreateTag(ctx, "urgent")
		require.NoError(t, err)

		task, err := e.svc.CreateTask(ctx, e.createInput("urgent", "billing"))
		require.NoError(t, err)
		assert.Equal(t, models.StatusNew, task.Status)
		assert.Equal(t, models.PriorityHigh, task.Priority)
		assert.Contains(t, task.Tags, existing)

		tags, err := e.svc.Tags(ctx)
		require.NoError(t, err)
		assert.Len(t, tags, 2)
	})

	t.Run("Should_reject_invalid_tokens_and_empty_title", func(t *testing.T) {
		e := setup(t, newMemRepo())
		ctx := testCtx(t)

		in := e.createInput()
		in.Priority = "urgent"
		_, err := e.svc.CreateTask(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)

		in = e.createInput()
		in.Title = "  "
		_, err = e.svc.CreateTask(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = e.svc.CreateUser(ctx, "x", "x@example.com", "admin")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Should_return_not_found_for_unknown_user", func(t *testing.T) {
		e := setup(t, newMemRepo())
		in := e.createInput()
		in.ExecutorID = uuid.NewString()
		_, err := e.svc.CreateTask(testCtx(t), in)
		assert.ErrorIs(t, err, db.ErrNotFound)
		assert.Equal(t, http.StatusNotFound, StatusCode(err))
	})

	t.Run("Should_reject_malformed_ids_before_lookup", func(t *testing.T) {
		e := setup(t, newMemRepo())
		ctx := testCtx(t)
		task, err := e.svc.CreateTask(ctx, e.createInput("kept"))
		require.NoError(t, err)

		const bad = "missing"
		in := e.createInput()
		in.ExecutorID = bad
		_, err = e.svc.CreateTask(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, http.StatusBadRequest, StatusCode(err))

		upd := e.updateInput("new")
		upd.CustomerID = "not-a-uuid"
		_, err = e.svc.UpdateTask(ctx, task.ID, upd)
		assert.ErrorIs(t, err, ErrInvalidInput)

		calls := map[string]func() error{
			"task": func() error { _, err := e.svc.Task(ctx, bad); return err },
			"update task": func() error {
				_, err := e.svc.UpdateTask(ctx, bad, e.updateInput("new"))
				return err
			},
			"set status":   func() error { _, err := e.svc.SetStatus(ctx, bad, models.StatusCompleted); return err },
			"set priority": func() error { _, err := e.svc.SetPriority(ctx, bad, models.PriorityLow); return err },
			"delete task":  func() error { return e.svc.DeleteTask(ctx, bad) },
			"update user":  func() error { _, err := e.svc.UpdateUser(ctx, bad, "x", "", ""); return err },
			"delete user":  func() error { return e.svc.DeleteUser(ctx, bad) },
			"filter": func() error {
				_, err := e.svc.Tasks(ctx, db.TaskFilter{ExecutorID: bad})
				return err
			},
		}
		for name, call := range calls {
			err := call()
			assert.ErrorIs(t, err, ErrInvalidInput, name)
			assert.Equal(t, http.StatusBadRequest, StatusCode(err), name)
		}

		stored, err := e.svc.Task(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"kept"}, stored.TagNames())
		assert.Equal(t, e.customer.ID, stored.CustomerID)
	})

	t.Run("Should_stamp_completion_once", func(t *testing.T) {
		e := setup(t, newMemRepo())
		ctx := testCtx(t)
		task, err := e.svc.CreateTask(ctx, e.createInput())
		require.NoError(t, err)

		first, err := e.svc.UpdateTask(ctx, task.ID, e.updateInput("completed"))
		require.NoError(t, err)
		require.NotNil(t, first.CompletedAt)
		stamped := *first.CompletedAt

		*e.clock = e.clock.Add(2 * time.Hour)
		second, err := e.svc.UpdateTask(ctx, task.ID, e.updateInput("completed"))
		require.NoError(t, err)
		assert.Equal(t, stamped, *second.CompletedAt)

		_, err = e.svc.UpdateTask(ctx, task.ID, e.updateInput("finished"))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Should_replace_tags_on_update", func(t *testing.T) {
		e := setup(t, newMemRepo())
		ctx := testCtx(t)
		task, err := e.svc.CreateTask(ctx, e.createInput("a", "b"))
		require.NoError(t, err)

		updated, err := e.svc.UpdateTask(ctx, task.ID, e.updateInput("in_progress", "c"))
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, updated.TagNames())

		stored, err := e.svc.Task(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, stored.TagNames())
	})

	t.Run("Should_list_overdue_open_tasks", func(t *testing.T) {
		e := setup(t, newMemRepo())
		ctx := testCtx(t)
		past := e.clock.Add(-48 * time.Hour)
		in := e.createInput()
		in.DueDate = &past
		late, err := e.svc.CreateTask(ctx, in)
		require.NoError(t, err)
		_, err = e.svc.CreateTask(ctx, e.createInput())
		require.NoError(t, err)

		overdue, err := e.svc.Overdue(ctx)
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, late.ID, overdue[0].ID)

		_, err = e.svc.SetStatus(ctx, late.ID, models.StatusCancelled)
		require.NoError(t, err)
		overdue, err = e.svc.Overdue(ctx)
		require.NoError(t, err)
		assert.Empty(t, overdue)
	})

	t.Run("Should_split_users_by_role", func(t *testing.T) {
		e := setup(t, newMemRepo())
		customers, executors, err := e.svc.UsersByRole(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, []models.User{e.customer}, customers)
		assert.Equal(t, []models.User{e.executor}, executors)
	})
}

func TestServiceOnSQLite(t *testing.T) {
	ctx := testCtx(t)
	store, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "taskdesk.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	e := setup(t, store)

	task, err := e.svc.CreateTask(ctx, e.createInput("urgent", "billing"))
	require.NoError(t, err)
	second, err := e.svc.CreateTask(ctx, e.createInput("urgent"))
	require.NoError(t, err)
	assert.Contains(t, second.Tags, task.Tags[0])

	tags, err := e.svc.Tags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	_, err = e.svc.SetPriority(ctx, task.ID, models.PriorityCritical)
	require.NoError(t, err)
	got, err := e.svc.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, got.Priority)
	assert.ElementsMatch(t, []string{"urgent", "billing"}, got.TagNames())

	require.NoError(t, e.svc.DeleteTask(ctx, task.ID))
	assert.ErrorIs(t, e.svc.DeleteTask(ctx, task.ID), db.ErrNotFound)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, StatusCode(invalid("bad")))
	assert.Equal(t, http.StatusNotFound, StatusCode(notFound()))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(db.ErrStorage))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}

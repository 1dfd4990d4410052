package views

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/logger"
	"github.com/tgienger/taskdesk/internal/models"
	"github.com/tgienger/taskdesk/internal/tracker"
)

func setupService(t *testing.T) (context.Context, *tracker.Service) {
	t.Helper()
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	store, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "taskdesk.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return ctx, tracker.New(store)
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTaskListView(t *testing.T) {
	ctx, svc := setupService(t)
	customer, err := svc.CreateUser(ctx, "Alice", "alice@example.com", "customer")
	require.NoError(t, err)
	executor, err := svc.CreateUser(ctx, "Bob", "bob@example.com", "executor")
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, tracker.CreateTaskInput{
		Title: "Invoice", Priority: "low", CustomerID: customer.ID, ExecutorID: executor.ID, Tags: []string{"billing"},
	})
	require.NoError(t, err)

	v := NewTaskListView(ctx, svc)
	v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	v.Update(v.loadTasks()())

	t.Run("Should_render_tasks_with_tags", func(t *testing.T) {
		out := v.View()
		assert.Contains(t, out, "Invoice")
		assert.Contains(t, out, "#billing")
	})

	t.Run("Should_search_with_query_typed_before_enter", func(t *testing.T) {
		v.Update(keyPress("/"))
		require.True(t, v.Editing())
		v.Update(keyPress("Invoice"))
		_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)

		// edits after enter must not leak into the pending load
		v.searchInput.SetValue("zzz")
		msg := cmd()
		loaded, ok := msg.(tasksLoadedMsg)
		require.True(t, ok, "got %T", msg)
		assert.Len(t, loaded.tasks, 1)

		v.searchInput.SetValue("Invoice")
		_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEsc})
		require.NotNil(t, cmd)
		v.Update(cmd())
		assert.Empty(t, v.searchInput.Value())
		assert.Len(t, v.tasks, 1)
	})

	t.Run("Should_cycle_status_and_priority", func(t *testing.T) {
		_, cmd := v.Update(keyPress("s"))
		require.NotNil(t, cmd)
		v.Update(cmd())
		require.Len(t, v.tasks, 1)
		assert.Equal(t, models.StatusInProgress, v.tasks[0].Status)

		_, cmd = v.Update(keyPress("p"))
		require.NotNil(t, cmd)
		v.Update(cmd())
		assert.Equal(t, models.PriorityMedium, v.tasks[0].Priority)
	})

	t.Run("Should_delete_after_confirmation", func(t *testing.T) {
		v.Update(keyPress("d"))
		assert.True(t, v.Editing())
		_, cmd := v.Update(keyPress("y"))
		require.NotNil(t, cmd)
		v.Update(cmd())
		assert.Empty(t, v.tasks)
		assert.Contains(t, v.View(), "No tasks")
	})
}

func TestUserListView(t *testing.T) {
	ctx, svc := setupService(t)
	v := NewUserListView(ctx, svc)
	v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	v.Update(v.loadUsers())

	t.Run("Should_reject_incomplete_form", func(t *testing.T) {
		v.Update(keyPress("n"))
		require.True(t, v.Editing())
		assert.Nil(t, v.save())
		assert.ErrorIs(t, v.err, tracker.ErrInvalidInput)
	})

	t.Run("Should_create_user", func(t *testing.T) {
		v.newName.SetValue("Carol")
		v.newEmail.SetValue("carol@example.com")
		v.newRole = models.RoleExecutor
		require.NotNil(t, v.save())
		assert.False(t, v.Editing())

		v.Update(v.loadUsers())
		require.Len(t, v.list.Items(), 1)
		got := v.list.Items()[0].(userItem).user
		assert.Equal(t, "Carol", got.Name)
		assert.Equal(t, models.RoleExecutor, got.Role)
	})
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/tracker"
)

type cli struct {
	t      *testing.T
	dbPath string
	env    string
}

func newCLI(t *testing.T) cli {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	dir := t.TempDir()
	return cli{t: t, dbPath: filepath.Join(dir, "taskdesk.db"), env: filepath.Join(dir, "missing.env")}
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--db", c.dbPath, "--env-file", c.env}, args...))
	err := root.ExecuteContext(c.t.Context())
	return out.String(), err
}

func (c cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "taskdesk %s", strings.Join(args, " "))
	return strings.TrimSpace(out)
}

func TestRootCmd(t *testing.T) {
	t.Run("Should_print_version", func(t *testing.T) {
		out := newCLI(t).mustRun("--version")
		assert.Contains(t, out, "taskdesk dev")
	})

	t.Run("Should_initialize_database", func(t *testing.T) {
		c := newCLI(t)
		out := c.mustRun("init")
		assert.Contains(t, out, c.dbPath)
		assert.FileExists(t, c.dbPath)
	})
}

func TestTaskLifecycle(t *testing.T) {
	c := newCLI(t)
	customer := c.mustRun("user", "add", "Ann", "ann@example.com", "--role", "customer")
	executor := c.mustRun("user", "add", "Bob", "bob@example.com", "--role", "executor")

	id := c.mustRun("task", "add",
		"--title", "Fix invoice",
		"--customer", customer,
		"--executor", executor,
		"-p", "high",
		"-t", "billing", "-t", "urgent",
		"--due", "2030-01-02",
	)
	require.NotEmpty(t, id)

	t.Run("Should_list_tasks_by_tag", func(t *testing.T) {
		out := c.mustRun("task", "list", "--tag", "billing")
		assert.Contains(t, out, "Fix invoice")
		out = c.mustRun("task", "list", "--tag", "missing")
		assert.NotContains(t, out, "Fix invoice")
	})

	t.Run("Should_complete_task_and_keep_other_fields", func(t *testing.T) {
		c.mustRun("task", "update", id, "-s", "completed")

		var got taskView
		require.NoError(t, json.Unmarshal([]byte(c.mustRun("task", "show", id, "--format", "json")), &got))
		assert.Equal(t, "completed", got.Status)
		assert.Equal(t, "high", got.Priority)
		assert.NotNil(t, got.CompletedAt)
		assert.NotNil(t, got.DueDate)
		assert.ElementsMatch(t, []string{"billing", "urgent"}, got.Tags)
	})

	t.Run("Should_replace_tags_and_clear_due_date", func(t *testing.T) {
		c.mustRun("task", "update", id, "-t", "ops", "--clear-due")

		var got taskView
		require.NoError(t, json.Unmarshal([]byte(c.mustRun("task", "show", id, "--format", "json")), &got))
		assert.Equal(t, []string{"ops"}, got.Tags)
		assert.Nil(t, got.DueDate)
		assert.Contains(t, c.mustRun("tag", "list"), "billing")
	})

	t.Run("Should_reject_invalid_input", func(t *testing.T) {
		_, err := c.run("task", "update", id, "-s", "done")
		assert.ErrorIs(t, err, tracker.ErrInvalidInput)
		_, err = c.run("task", "add", "--title", "x", "--customer", customer, "--executor", executor, "--due", "tomorrow")
		assert.ErrorIs(t, err, tracker.ErrInvalidInput)
		_, err = c.run("task", "show", "not-an-id")
		assert.ErrorIs(t, err, tracker.ErrInvalidInput)
	})

	t.Run("Should_refuse_to_delete_assigned_user", func(t *testing.T) {
		_, err := c.run("user", "rm", customer)
		assert.ErrorIs(t, err, db.ErrStorage)
	})

	t.Run("Should_delete_task", func(t *testing.T) {
		c.mustRun("task", "rm", id)
		_, err := c.run("task", "show", id)
		assert.ErrorIs(t, err, db.ErrNotFound)
		c.mustRun("user", "rm", customer)
	})
}

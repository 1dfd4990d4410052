package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	t.Run("Should_map_every_status_both_ways", func(t *testing.T) {
		for st, tok := range statusTokens {
			got, err := ParseStatus(tok)
			require.NoError(t, err)
			assert.Equal(t, st, got)
			assert.Equal(t, tok, st.String())
		}
		assert.Equal(t, "in_progress", StatusInProgress.String())
	})

	t.Run("Should_map_every_priority_both_ways", func(t *testing.T) {
		for p, tok := range priorityTokens {
			got, err := ParsePriority(tok)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		}
	})

	t.Run("Should_map_every_role_both_ways", func(t *testing.T) {
		for r, tok := range roleTokens {
			got, err := ParseRole(tok)
			require.NoError(t, err)
			assert.Equal(t, r, got)
		}
	})

	t.Run("Should_reject_unknown_tokens", func(t *testing.T) {
		_, err := ParseStatus("done")
		assert.True(t, errors.Is(err, ErrUnknownToken))
		_, err = ParsePriority("High")
		assert.True(t, errors.Is(err, ErrUnknownToken))
		_, err = ParseRole("")
		assert.True(t, errors.Is(err, ErrUnknownToken))
	})

	t.Run("Should_cycle_status_and_priority", func(t *testing.T) {
		assert.Equal(t, StatusNew, StatusCancelled.Next())
		assert.Equal(t, StatusInProgress, StatusNew.Next())
		assert.Equal(t, PriorityLow, PriorityCritical.Next())
	})
}

func TestTask(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("Should_start_new_without_completion", func(t *testing.T) {
		task := NewTask("t", "d", "c", "e", PriorityHigh, nil, nil)
		assert.Equal(t, StatusNew, task.Status)
		assert.Nil(t, task.CompletedAt)
		assert.True(t, ValidID(task.ID))
		assert.False(t, task.CreatedAt.IsZero())
	})

	t.Run("Should_stamp_completed_at_once", func(t *testing.T) {
		task := NewTask("t", "d", "c", "e", PriorityLow, nil, nil)
		task.SetStatus(StatusCompleted, now)
		require.NotNil(t, task.CompletedAt)
		assert.Equal(t, now, *task.CompletedAt)

		task.SetStatus(StatusCompleted, now.Add(time.Hour))
		assert.Equal(t, now, *task.CompletedAt)
	})

	t.Run("Should_report_overdue_only_for_open_tasks", func(t *testing.T) {
		due := now.Add(-50 * time.Hour)
		task := NewTask("t", "d", "c", "e", PriorityLow, &due, nil)
		assert.True(t, task.IsOverdue(now))
		days, ok := task.OverdueDays(now)
		assert.True(t, ok)
		assert.Equal(t, 2, days)

		task.SetStatus(StatusCancelled, now)
		assert.False(t, task.IsOverdue(now))
		_, ok = task.OverdueDays(now)
		assert.False(t, ok)
	})

	t.Run("Should_not_be_overdue_without_due_date", func(t *testing.T) {
		task := NewTask("t", "d", "c", "e", PriorityLow, nil, nil)
		assert.False(t, task.IsOverdue(now))
	})
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(NewUser("a", "a@example.com", RoleCustomer).ID))
	assert.False(t, ValidID("not-an-id"))
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/tgienger/taskdesk/internal/models"
)

// priorityRank orders the stored priority tokens from critical down to low.
var priorityRank = func() string {
	var b strings.Builder
	b.WriteString("CASE t.priority")
	for p := models.PriorityLow; p <= models.PriorityCritical; p++ {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p.String(), int(p))
	}
	b.WriteString(" ELSE -1 END DESC")
	return b.String()
}()

// likeEscaper makes a search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// tagBatchSize keeps attachTags well under SQLite's host parameter limit.
const tagBatchSize = 500

// GetTasks returns all tasks with their tags
func (db *DB) GetTasks(ctx context.Context) ([]models.Task, error) {
	return db.FindTasks(ctx, TaskFilter{})
}

// FindTasks returns tasks matching filter, ordered by priority (desc) then created_at (desc)
func (db *DB) FindTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	const op = "list tasks"

	qb := sq.Select(taskColumns).From("tasks t")
	if filter.Status != nil {
		status, err := encodeStatus(*filter.Status)
		if err != nil {
			return nil, storageFault(op, err)
		}
		qb = qb.Where(sq.Eq{"t.status": status})
	}
	if filter.Priority != nil {
		priority, err := encodePriority(*filter.Priority)
		if err != nil {
			return nil, storageFault(op, err)
		}
		qb = qb.Where(sq.Eq{"t.priority": priority})
	}
	if filter.CustomerID != "" {
		qb = qb.Where(sq.Eq{"t.customer_id": filter.CustomerID})
	}
	if filter.ExecutorID != "" {
		qb = qb.Where(sq.Eq{"t.executor_id": filter.ExecutorID})
	}
	if filter.Tag != "" {
		qb = qb.Where(`EXISTS (
			SELECT 1 FROM task_tags tt JOIN tags g ON g.id = tt.tag_id
			WHERE tt.task_id = t.id AND g.name = ?)`, filter.Tag)
	}
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		qb = qb.Where(`(t.title LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	qb = qb.OrderBy(priorityRank, "t.created_at DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(filter.Limit)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, internal(op, "build query", err)
	}

	conn, err := db.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageFault(op, err)
	}
	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, storageFault(op, err)
		}
		tasks = append(tasks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageFault(op, err)
	}

	if err := attachTags(ctx, conn, op, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachTags loads the tags of every task, tagBatchSize ids per query.
func attachTags(ctx context.Context, q querier, op string, tasks []models.Task) error {
	index := make(map[string]int, len(tasks))
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
		index[tasks[i].ID] = i
		tasks[i].Tags = []models.Tag{}
	}
	for len(ids) > 0 {
		n := min(len(ids), tagBatchSize)
		if err := attachTagBatch(ctx, q, op, ids[:n], index, tasks); err != nil {
			return err
		}
		ids = ids[n:]
	}
	return nil
}

func attachTagBatch(ctx context.Context, q querier, op string, ids []string, index map[string]int, tasks []models.Task) error {
	query, args, err := sq.Select("tt.task_id", "t.id", "t.name").
		From("task_tags tt").
		Join("tags t ON t.id = tt.tag_id").
		Where(sq.Eq{"tt.task_id": ids}).
		OrderBy("t.name").
		ToSql()
	if err != nil {
		return internal(op, "build query", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return storageFault(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID string
		var tag models.Tag
		if err := rows.Scan(&taskID, &tag.ID, &tag.Name); err != nil {
			return storageFault(op, err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].Tags = append(tasks[i].Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return storageFault(op, err)
	}
	return nil
}

// GetTaskByID retrieves a task by ID with its tags
func (db *DB) GetTaskByID(ctx context.Context, id string) (models.Task, error) {
	const op = "get task"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return models.Task{}, err
	}
	defer conn.Close()

	t, err := scanTask(conn.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, notFound(op, "task %s not found", id)
	}
	if err != nil {
		return models.Task{}, storageFault(op, err)
	}

	tags, err := tagsForTask(ctx, conn, op, id)
	if err != nil {
		return models.Task{}, err
	}
	t.Tags = tags
	return t, nil
}

// CreateTask inserts the task row and links every tag in task.Tags.
func (db *DB) CreateTask(ctx context.Context, task models.Task) error {
	const op = "create task"
	status, priority, err := taskTokens(task)
	if err != nil {
		return storageFault(op, err)
	}
	return db.withTx(ctx, op, func(tx *sql.Tx) error {
		if err := checkAssignees(ctx, tx, op, task); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			task.ID,
			task.Title,
			task.Description,
			status,
			priority,
			task.CustomerID,
			task.ExecutorID,
			encodeTime(task.CreatedAt),
			encodeNullTime(task.DueDate),
			encodeNullTime(task.CompletedAt),
		); err != nil {
			return err
		}
		return linkTags(ctx, tx, op, task)
	})
}

// UpdateTask replaces the mutable fields of a task and makes its stored tag
// set equal task.Tags. CreatedAt is never rewritten.
func (db *DB) UpdateTask(ctx context.Context, task models.Task) error {
	const op = "update task"
	status, priority, err := taskTokens(task)
	if err != nil {
		return storageFault(op, err)
	}
	return db.withTx(ctx, op, func(tx *sql.Tx) error {
		if err := checkAssignees(ctx, tx, op, task); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET title = ?, description = ?, status = ?, priority = ?,
				customer_id = ?, executor_id = ?, due_date = ?, completed_at = ?
			WHERE id = ?`,
			task.Title,
			task.Description,
			status,
			priority,
			task.CustomerID,
			task.ExecutorID,
			encodeNullTime(task.DueDate),
			encodeNullTime(task.CompletedAt),
			task.ID,
		)
		if err != nil {
			return err
		}
		if err := rowsAffected(op, res, "task %s not found", task.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM task_tags WHERE task_id = ?", task.ID); err != nil {
			return err
		}
		return linkTags(ctx, tx, op, task)
	})
}

// DeleteTask deletes a task after removing its tag links
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	const op = "delete task"
	return db.withTx(ctx, op, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM task_tags WHERE task_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
		if err != nil {
			return err
		}
		return rowsAffected(op, res, "task %s not found", id)
	})
}

func checkAssignees(ctx context.Context, q querier, op string, task models.Task) error {
	if err := userExists(ctx, q, op, task.CustomerID); err != nil {
		return err
	}
	return userExists(ctx, q, op, task.ExecutorID)
}

func linkTags(ctx context.Context, q querier, op string, task models.Task) error {
	for _, tag := range task.Tags {
		if err := addTagToTask(ctx, q, op, task.ID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

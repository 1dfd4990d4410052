package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/tgienger/taskdesk/internal/models"
)

// GetTags returns all tags
func (db *DB) GetTags(ctx context.Context) ([]models.Tag, error) {
	const op = "list tags"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return queryTags(ctx, conn, op, "SELECT "+tagColumns+" FROM tags ORDER BY name")
}

// GetTagByID retrieves a tag by ID
func (db *DB) GetTagByID(ctx context.Context, id string) (models.Tag, error) {
	const op = "get tag"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return models.Tag{}, err
	}
	defer conn.Close()

	t, err := scanTag(conn.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tag{}, notFound(op, "tag %s not found", id)
	}
	if err != nil {
		return models.Tag{}, storageFault(op, err)
	}
	return t, nil
}

// GetTagByName retrieves a tag by its exact name
func (db *DB) GetTagByName(ctx context.Context, name string) (models.Tag, error) {
	const op = "get tag by name"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return models.Tag{}, err
	}
	defer conn.Close()

	t, err := scanTag(conn.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Tag{}, notFound(op, "tag %q not found", name)
	}
	if err != nil {
		return models.Tag{}, storageFault(op, err)
	}
	return t, nil
}

// CreateTag inserts a tag. A duplicate name is a constraint violation.
func (db *DB) CreateTag(ctx context.Context, tag models.Tag) error {
	const op = "create tag"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "INSERT INTO tags ("+tagColumns+") VALUES (?, ?)", tag.ID, tag.Name); err != nil {
		return storageFault(op, err)
	}
	return nil
}

// EnsureTags resolves names to tags, reusing existing rows and creating the
// rest. Blank and repeated names are skipped; the result follows input order.
func (db *DB) EnsureTags(ctx context.Context, names []string) ([]models.Tag, error) {
	const op = "ensure tags"
	wanted := dedupeNames(names)
	tags := make([]models.Tag, 0, len(wanted))
	if len(wanted) == 0 {
		return tags, nil
	}

	err := db.withTx(ctx, op, func(tx *sql.Tx) error {
		for _, name := range wanted {
			fresh := models.NewTag(name)
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tags ("+tagColumns+") VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
				fresh.ID, fresh.Name,
			); err != nil {
				return err
			}
			t, err := scanTag(tx.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE name = ?", name))
			if err != nil {
				return err
			}
			tags = append(tags, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// GetTagsForTask returns all tags for a task. A task without tags, or one
// that does not exist, yields an empty slice.
func (db *DB) GetTagsForTask(ctx context.Context, taskID string) ([]models.Tag, error) {
	const op = "get task tags"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return tagsForTask(ctx, conn, op, taskID)
}

func tagsForTask(ctx context.Context, q querier, op, taskID string) ([]models.Tag, error) {
	return queryTags(ctx, q, op, `
		SELECT t.id, t.name
		FROM tags t
		JOIN task_tags tt ON t.id = tt.tag_id
		WHERE tt.task_id = ?
		ORDER BY t.name
	`, taskID)
}

func queryTags(ctx context.Context, q querier, op, query string, args ...any) ([]models.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageFault(op, err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, storageFault(op, err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault(op, err)
	}
	return tags, nil
}

// AddTagToTask links a tag to a task. Linking the same pair twice is a no-op.
func (db *DB) AddTagToTask(ctx context.Context, taskID, tagID string) error {
	const op = "add tag to task"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()
	return addTagToTask(ctx, conn, op, taskID, tagID)
}

func addTagToTask(ctx context.Context, q querier, op, taskID, tagID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", taskID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, "task %s not found", taskID)
	}
	if err != nil {
		return storageFault(op, err)
	}

	err = q.QueryRowContext(ctx, "SELECT 1 FROM tags WHERE id = ?", tagID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, "tag %s not found", tagID)
	}
	if err != nil {
		return storageFault(op, err)
	}

	if _, err := q.ExecContext(ctx,
		"INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?, ?)",
		taskID, tagID,
	); err != nil {
		return storageFault(op, err)
	}
	return nil
}

// RemoveTagFromTask removes a tag from a task
func (db *DB) RemoveTagFromTask(ctx context.Context, taskID, tagID string) error {
	const op = "remove tag from task"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, "DELETE FROM task_tags WHERE task_id = ? AND tag_id = ?", taskID, tagID)
	if err != nil {
		return storageFault(op, err)
	}
	return rowsAffected(op, res, "task %s has no tag %s", taskID, tagID)
}

package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tgienger/taskdesk/internal/models"
)

// timeLayout is sortable and keeps the zone offset; values are always written in UTC.
const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(column, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, malformed(column, s, err)
	}
	return t.UTC(), nil
}

func decodeNullTime(column string, ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeTime(column, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeRole(s string) (models.Role, error) {
	r, err := models.ParseRole(s)
	if err != nil {
		return 0, malformed("role", s, err)
	}
	return r, nil
}

func decodeStatus(s string) (models.Status, error) {
	st, err := models.ParseStatus(s)
	if err != nil {
		return 0, malformed("status", s, err)
	}
	return st, nil
}

func decodePriority(s string) (models.Priority, error) {
	p, err := models.ParsePriority(s)
	if err != nil {
		return 0, malformed("priority", s, err)
	}
	return p, nil
}

// encodeToken rejects enum values that have no stored token, so a bad value
// never reaches a row it could not be read back from.
func encodeToken(column string, value int, token string) (string, error) {
	if token == "" {
		return "", &Error{
			Kind: KindStorage,
			Msg:  fmt.Sprintf("encode %s %d", column, value),
			Err:  fmt.Errorf("%w: %w", ErrMalformedData, models.ErrUnknownToken),
		}
	}
	return token, nil
}

func encodeRole(r models.Role) (string, error) {
	return encodeToken("role", int(r), r.String())
}

func encodeStatus(s models.Status) (string, error) {
	return encodeToken("status", int(s), s.String())
}

func encodePriority(p models.Priority) (string, error) {
	return encodeToken("priority", int(p), p.String())
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = "id, name, email, role"

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role); err != nil {
		return u, err
	}
	r, err := decodeRole(role)
	if err != nil {
		return u, err
	}
	u.Role = r
	return u, nil
}

func userArgs(u models.User) ([]any, error) {
	role, err := encodeRole(u.Role)
	if err != nil {
		return nil, err
	}
	return []any{u.ID, u.Name, u.Email, role}, nil
}

const tagColumns = "id, name"

func scanTag(row rowScanner) (models.Tag, error) {
	var t models.Tag
	err := row.Scan(&t.ID, &t.Name)
	return t, err
}

const taskColumns = "id, title, description, status, priority, customer_id, executor_id, created_at, due_date, completed_at"

// taskTokens encodes the enum columns of a task before any statement runs.
func taskTokens(t models.Task) (status, priority string, err error) {
	if status, err = encodeStatus(t.Status); err != nil {
		return "", "", err
	}
	if priority, err = encodePriority(t.Priority); err != nil {
		return "", "", err
	}
	return status, priority, nil
}

// scanTask decodes a task row. Tags are not a column and are left nil.
func scanTask(row rowScanner) (models.Task, error) {
	var (
		t                    models.Task
		status, priority     string
		createdAt            string
		dueDate, completedAt sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority,
		&t.CustomerID, &t.ExecutorID, &createdAt, &dueDate, &completedAt); err != nil {
		return t, err
	}

	var err error
	if t.Status, err = decodeStatus(status); err != nil {
		return t, err
	}
	if t.Priority, err = decodePriority(priority); err != nil {
		return t, err
	}
	if t.CreatedAt, err = decodeTime("created_at", createdAt); err != nil {
		return t, err
	}
	if t.DueDate, err = decodeNullTime("due_date", dueDate); err != nil {
		return t, err
	}
	if t.CompletedAt, err = decodeNullTime("completed_at", completedAt); err != nil {
		return t, err
	}
	return t, nil
}

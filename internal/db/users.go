package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tgienger/taskdesk/internal/models"
)

// GetUsers returns all users
func (db *DB) GetUsers(ctx context.Context) ([]models.User, error) {
	const op = "list users"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY name")
	if err != nil {
		return nil, storageFault(op, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageFault(op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFault(op, err)
	}
	return users, nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, id string) (models.User, error) {
	const op = "get user"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return models.User{}, err
	}
	defer conn.Close()
	return getUser(ctx, conn, op, id)
}

func getUser(ctx context.Context, q querier, op, id string) (models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, notFound(op, "user %s not found", id)
		}
		return models.User{}, storageFault(op, err)
	}
	return u, nil
}

// CreateUser inserts a user whose ID was assigned by models.NewUser
func (db *DB) CreateUser(ctx context.Context, user models.User) error {
	const op = "create user"
	args, err := userArgs(user)
	if err != nil {
		return storageFault(op, err)
	}
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?)",
		args...,
	); err != nil {
		return storageFault(op, err)
	}
	return nil
}

// UpdateUser replaces the name, email and role of an existing user
func (db *DB) UpdateUser(ctx context.Context, user models.User) error {
	const op = "update user"
	role, err := encodeRole(user.Role)
	if err != nil {
		return storageFault(op, err)
	}
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx,
		"UPDATE users SET name = ?, email = ?, role = ? WHERE id = ?",
		user.Name, user.Email, role, user.ID,
	)
	if err != nil {
		return storageFault(op, err)
	}
	return rowsAffected(op, res, "user %s not found", user.ID)
}

// DeleteUser deletes a user. Users still referenced by tasks cannot be deleted.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	const op = "delete user"
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return storageFault(op, err)
	}
	return rowsAffected(op, res, "user %s not found", id)
}

func userExists(ctx context.Context, q querier, op, id string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(op, "user %s not found", id)
	}
	if err != nil {
		return storageFault(op, err)
	}
	return nil
}

package db

import (
	"context"

	"github.com/tgienger/taskdesk/internal/models"
)

// Repository is the storage contract the rest of taskdesk depends on.
//
// Every failure is an *Error; use errors.Is with ErrNotFound, ErrStorage or
// ErrInternal to classify it. Update and delete operations that match no row
// return ErrNotFound.
type Repository interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) error
	UpdateUser(ctx context.Context, user models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Task reads always populate Tags.
	GetTasks(ctx context.Context) ([]models.Task, error)
	GetTaskByID(ctx context.Context, id string) (models.Task, error)
	FindTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	// CreateTask and UpdateTask persist the row and its exact tag set atomically.
	CreateTask(ctx context.Context, task models.Task) error
	UpdateTask(ctx context.Context, task models.Task) error
	DeleteTask(ctx context.Context, id string) error

	GetTags(ctx context.Context) ([]models.Tag, error)
	GetTagByID(ctx context.Context, id string) (models.Tag, error)
	GetTagByName(ctx context.Context, name string) (models.Tag, error)
	CreateTag(ctx context.Context, tag models.Tag) error
	// EnsureTags returns a tag for every distinct name, creating the missing ones.
	EnsureTags(ctx context.Context, names []string) ([]models.Tag, error)
	GetTagsForTask(ctx context.Context, taskID string) ([]models.Tag, error)
	AddTagToTask(ctx context.Context, taskID, tagID string) error
	RemoveTagFromTask(ctx context.Context, taskID, tagID string) error
}

// TaskFilter narrows FindTasks. Zero values are ignored.
type TaskFilter struct {
	Status     *models.Status
	Priority   *models.Priority
	CustomerID string
	ExecutorID string
	// Tag matches tasks carrying a tag with this exact name.
	Tag string
	// Search matches title or description as a substring.
	Search string
	Limit  uint64
}

// Package tracker holds the request level rules that sit between callers and
// the repository: validating input, resolving tag names and stamping
// completion times.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/logger"
	"github.com/tgienger/taskdesk/internal/models"
)

// ErrInvalidInput marks errors caused by the caller's data rather than storage.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// checkID rejects ids that could never name a stored row.
func checkID(entity, id string) error {
	if !models.ValidID(id) {
		return invalid("malformed %s id %q", entity, id)
	}
	return nil
}

// StatusCode maps an error returned by Service to an HTTP status
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type Service struct {
	repo db.Repository
	now  func() time.Time
}

func New(repo db.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	CustomerID  string
	ExecutorID  string
	DueDate     *time.Time
	Tags        []string
}

type UpdateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	CustomerID  string
	ExecutorID  string
	DueDate     *time.Time
	Tags        []string
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return s.repo.GetUsers(ctx)
}

// UsersByRole splits users into customers and executors
func (s *Service) UsersByRole(ctx context.Context) (customers, executors []models.User, err error) {
	users, err := s.repo.GetUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, u := range users {
		switch u.Role {
		case models.RoleCustomer:
			customers = append(customers, u)
		case models.RoleExecutor:
			executors = append(executors, u)
		}
	}
	return customers, executors, nil
}

func (s *Service) CreateUser(ctx context.Context, name, email, role string) (models.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return models.User{}, invalid("name and email are required")
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return models.User{}, invalid("%v", err)
	}
	u := models.NewUser(name, email, r)
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return models.User{}, err
	}
	logger.FromContext(ctx).Info("user created", "id", u.ID, "role", u.Role)
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, id, name, email, role string) (models.User, error) {
	if err := checkID("user", id); err != nil {
		return models.User{}, err
	}
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if v := strings.TrimSpace(name); v != "" {
		u.Name = v
	}
	if v := strings.TrimSpace(email); v != "" {
		u.Email = v
	}
	if role != "" {
		if u.Role, err = models.ParseRole(role); err != nil {
			return models.User{}, invalid("%v", err)
		}
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := checkID("user", id); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) Tags(ctx context.Context) ([]models.Tag, error) {
	return s.repo.GetTags(ctx)
}

// CreateTag returns the tag with this name, creating it if needed
func (s *Service) CreateTag(ctx context.Context, name string) (models.Tag, error) {
	if strings.TrimSpace(name) == "" {
		return models.Tag{}, invalid("tag name is required")
	}
	tags, err := s.repo.EnsureTags(ctx, []string{name})
	if err != nil {
		return models.Tag{}, err
	}
	return tags[0], nil
}

func (s *Service) Task(ctx context.Context, id string) (models.Task, error) {
	if err := checkID("task", id); err != nil {
		return models.Task{}, err
	}
	return s.repo.GetTaskByID(ctx, id)
}

func (s *Service) Tasks(ctx context.Context, filter db.TaskFilter) ([]models.Task, error) {
	if filter.CustomerID != "" {
		if err := checkID("customer", filter.CustomerID); err != nil {
			return nil, err
		}
	}
	if filter.ExecutorID != "" {
		if err := checkID("executor", filter.ExecutorID); err != nil {
			return nil, err
		}
	}
	return s.repo.FindTasks(ctx, filter)
}

// Overdue returns open tasks whose due date has passed
func (s *Service) Overdue(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.repo.GetTasks(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []models.Task
	for _, t := range tasks {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, invalid("title is required")
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return models.Task{}, invalid("%v", err)
	}
	if err := s.checkUsers(ctx, in.CustomerID, in.ExecutorID); err != nil {
		return models.Task{}, err
	}
	tags, err := s.repo.EnsureTags(ctx, in.Tags)
	if err != nil {
		return models.Task{}, err
	}

	task := models.NewTask(title, in.Description, in.CustomerID, in.ExecutorID, priority, in.DueDate, tags)
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return models.Task{}, err
	}
	logger.FromContext(ctx).Info("task created", "id", task.ID, "priority", task.Priority, "tags", len(tags))
	return task, nil
}

// UpdateTask replaces every mutable field of the task, including its tag set.
func (s *Service) UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (models.Task, error) {
	if err := checkID("task", id); err != nil {
		return models.Task{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, invalid("title is required")
	}
	status, err := models.ParseStatus(in.Status)
	if err != nil {
		return models.Task{}, invalid("%v", err)
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return models.Task{}, invalid("%v", err)
	}

	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := s.checkUsers(ctx, in.CustomerID, in.ExecutorID); err != nil {
		return models.Task{}, err
	}
	tags, err := s.repo.EnsureTags(ctx, in.Tags)
	if err != nil {
		return models.Task{}, err
	}

	task.Title = title
	task.Description = in.Description
	task.SetStatus(status, s.now())
	task.Priority = priority
	task.CustomerID = in.CustomerID
	task.ExecutorID = in.ExecutorID
	task.DueDate = in.DueDate
	task.Tags = tags

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return models.Task{}, err
	}
	logger.FromContext(ctx).Info("task updated", "id", task.ID, "status", task.Status)
	return task, nil
}

// SetStatus moves a task to status, keeping every other field
func (s *Service) SetStatus(ctx context.Context, id string, status models.Status) (models.Task, error) {
	if err := checkID("task", id); err != nil {
		return models.Task{}, err
	}
	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	task.SetStatus(status, s.now())
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// SetPriority changes the priority of a task, keeping every other field
func (s *Service) SetPriority(ctx context.Context, id string, priority models.Priority) (models.Task, error) {
	if err := checkID("task", id); err != nil {
		return models.Task{}, err
	}
	task, err := s.repo.GetTaskByID(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	task.Priority = priority
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := checkID("task", id); err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("task deleted", "id", id)
	return nil
}

func (s *Service) checkUsers(ctx context.Context, customerID, executorID string) error {
	if err := checkID("customer", customerID); err != nil {
		return err
	}
	if err := checkID("executor", executorID); err != nil {
		return err
	}
	if _, err := s.repo.GetUserByID(ctx, customerID); err != nil {
		return err
	}
	_, err := s.repo.GetUserByID(ctx, executorID)
	return err
}

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownToken is returned when a stored or user supplied enum token has no mapping.
var ErrUnknownToken = errors.New("unknown token")

// Role is the part a user plays on tasks
type Role int

const (
	RoleExecutor Role = iota
	RoleCustomer
)

var roleTokens = map[Role]string{
	RoleExecutor: "executor",
	RoleCustomer: "customer",
}

var roleLabels = map[Role]string{
	RoleExecutor: "Executor",
	RoleCustomer: "Customer",
}

func (r Role) String() string { return roleTokens[r] }

// Label returns a human readable name for display
func (r Role) Label() string { return roleLabels[r] }

// ParseRole maps a stored token back to a Role
func ParseRole(s string) (Role, error) {
	for r, tok := range roleTokens {
		if tok == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("role %q: %w", s, ErrUnknownToken)
}

// Status is the lifecycle state of a task
type Status int

const (
	StatusNew Status = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

var statusTokens = map[Status]string{
	StatusNew:        "new",
	StatusInProgress: "in_progress",
	StatusCompleted:  "completed",
	StatusCancelled:  "cancelled",
}

var statusLabels = map[Status]string{
	StatusNew:        "New",
	StatusInProgress: "In progress",
	StatusCompleted:  "Completed",
	StatusCancelled:  "Cancelled",
}

func (s Status) String() string { return statusTokens[s] }

// Label returns a human readable name for display
func (s Status) Label() string { return statusLabels[s] }

// Next cycles through statuses in lifecycle order
func (s Status) Next() Status { return (s + 1) % Status(len(statusTokens)) }

// ParseStatus maps a stored token back to a Status
func ParseStatus(s string) (Status, error) {
	for st, tok := range statusTokens {
		if tok == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("status %q: %w", s, ErrUnknownToken)
}

// Priority orders tasks by urgency
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityTokens = map[Priority]string{
	PriorityLow:      "low",
	PriorityMedium:   "medium",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

var priorityLabels = map[Priority]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

func (p Priority) String() string { return priorityTokens[p] }

// Label returns a human readable name for display
func (p Priority) Label() string { return priorityLabels[p] }

// Next cycles through priorities from low to critical
func (p Priority) Next() Priority { return (p + 1) % Priority(len(priorityTokens)) }

// ParsePriority maps a stored token back to a Priority
func ParsePriority(s string) (Priority, error) {
	for p, tok := range priorityTokens {
		if tok == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("priority %q: %w", s, ErrUnknownToken)
}

// User is either a customer who orders work or an executor who does it
type User struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// NewUser creates a user with a fresh identifier
func NewUser(name, email string, role Role) User {
	return User{
		ID:    newID(),
		Name:  name,
		Email: email,
		Role:  role,
	}
}

// Tag represents a label that can be applied to tasks
type Tag struct {
	ID   string
	Name string
}

// NewTag creates a tag with a fresh identifier
func NewTag(name string) Tag {
	return Tag{ID: newID(), Name: name}
}

// Task represents a single unit of work between a customer and an executor
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	CustomerID  string
	ExecutorID  string
	CreatedAt   time.Time
	DueDate     *time.Time
	CompletedAt *time.Time
	Tags        []Tag // populated when loading tasks
}

// NewTask creates a task in the new state
func NewTask(title, description, customerID, executorID string, priority Priority, dueDate *time.Time, tags []Tag) Task {
	return Task{
		ID:          newID(),
		Title:       title,
		Description: description,
		Status:      StatusNew,
		Priority:    priority,
		CustomerID:  customerID,
		ExecutorID:  executorID,
		CreatedAt:   time.Now().UTC(),
		DueDate:     dueDate,
		Tags:        tags,
	}
}

// SetStatus changes the status and stamps CompletedAt the first time the task
// becomes completed.
func (t *Task) SetStatus(s Status, now time.Time) {
	if s == StatusCompleted && t.Status != StatusCompleted {
		at := now.UTC()
		t.CompletedAt = &at
	}
	t.Status = s
}

// IsOverdue reports whether an open task is past its due date
func (t Task) IsOverdue(now time.Time) bool {
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	if t.DueDate == nil {
		return false
	}
	return now.After(*t.DueDate)
}

// OverdueDays returns the number of whole days the task is past due.
func (t Task) OverdueDays(now time.Time) (int, bool) {
	if !t.IsOverdue(now) {
		return 0, false
	}
	return int(now.Sub(*t.DueDate) / (24 * time.Hour)), true
}

// TagNames returns the names of the task's tags in order
func (t Task) TagNames() []string {
	names := make([]string, len(t.Tags))
	for i, tag := range t.Tags {
		names[i] = tag.Name
	}
	return names
}

func newID() string { return uuid.NewString() }

// ValidID reports whether s is a syntactically valid identifier
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

package tracker

import (
	"context"
	"sync"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/models"
)

// memRepo is an in-memory db.Repository for service tests.
type memRepo struct {
	mu    sync.Mutex
	users map[string]models.User
	tags  map[string]models.Tag
	tasks map[string]models.Task
	links map[string]map[string]struct{}
}

var _ db.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		users: map[string]models.User{},
		tags:  map[string]models.Tag{},
		tasks: map[string]models.Task{},
		links: map[string]map[string]struct{}{},
	}
}

func notFound() error { return &db.Error{Kind: db.KindNotFound, Msg: "not found"} }

func (m *memRepo) GetUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memRepo) GetUserByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return u, notFound()
	}
	return u, nil
}

func (m *memRepo) CreateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memRepo) UpdateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return notFound()
	}
	m.users[u.ID] = u
	return nil
}

func (m *memRepo) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return notFound()
	}
	delete(m.users, id)
	return nil
}

func (m *memRepo) withTags(t models.Task) models.Task {
	t.Tags = []models.Tag{}
	for id := range m.links[t.ID] {
		t.Tags = append(t.Tags, m.tags[id])
	}
	return t
}

func (m *memRepo) GetTasks(ctx context.Context) ([]models.Task, error) {
	return m.FindTasks(ctx, db.TaskFilter{})
}

func (m *memRepo) FindTasks(_ context.Context, f db.TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Task{}
	for _, t := range m.tasks {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, m.withTags(t))
	}
	return out, nil
}

func (m *memRepo) GetTaskByID(_ context.Context, id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return t, notFound()
	}
	return m.withTags(t), nil
}

func (m *memRepo) putTask(t models.Task) {
	links := map[string]struct{}{}
	for _, tag := range t.Tags {
		links[tag.ID] = struct{}{}
	}
	t.Tags = nil
	m.tasks[t.ID] = t
	m.links[t.ID] = links
}

func (m *memRepo) CreateTask(_ context.Context, t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putTask(t)
	return nil
}

func (m *memRepo) UpdateTask(_ context.Context, t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tasks[t.ID]
	if !ok {
		return notFound()
	}
	t.CreatedAt = old.CreatedAt
	m.putTask(t)
	return nil
}

func (m *memRepo) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return notFound()
	}
	delete(m.tasks, id)
	delete(m.links, id)
	return nil
}

func (m *memRepo) GetTags(context.Context) ([]models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Tag{}
	for _, t := range m.tags {
		out = append(out, t)
	}
	return out, nil
}

func (m *memRepo) GetTagByID(_ context.Context, id string) (models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[id]
	if !ok {
		return t, notFound()
	}
	return t, nil
}

func (m *memRepo) GetTagByName(_ context.Context, name string) (models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tags {
		if t.Name == name {
			return t, nil
		}
	}
	return models.Tag{}, notFound()
}

func (m *memRepo) CreateTag(_ context.Context, t models.Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[t.ID] = t
	return nil
}

func (m *memRepo) EnsureTags(ctx context.Context, names []string) ([]models.Tag, error) {
	out := []models.Tag{}
	seen := map[string]bool{}
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		t, err := m.GetTagByName(ctx, name)
		if err != nil {
			t = models.NewTag(name)
			if err := m.CreateTag(ctx, t); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memRepo) GetTagsForTask(_ context.Context, taskID string) ([]models.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withTags(models.Task{ID: taskID}).Tags, nil
}

func (m *memRepo) AddTagToTask(_ context.Context, taskID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return notFound()
	}
	if _, ok := m.tags[tagID]; !ok {
		return notFound()
	}
	m.links[taskID][tagID] = struct{}{}
	return nil
}

func (m *memRepo) RemoveTagFromTask(_ context.Context, taskID, tagID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[taskID][tagID]; !ok {
		return notFound()
	}
	delete(m.links[taskID], tagID)
	return nil
}

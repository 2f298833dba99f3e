package storage

import (
	"context"
	"sync"
	"time"

	"tasks-api/domain"
)

// Memory is the in-process task collection. Use NewMemory to create one.
type Memory struct {
	mu    sync.RWMutex
	tasks []domain.Task
	ids   *idSequence
}

// Option customizes a Memory store.
type Option func(*Memory)

// WithClock overrides the clock used to derive task identifiers.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.ids.now = now
	}
}

// WithTasks seeds the store with the given tasks in order.
func WithTasks(tasks ...domain.Task) Option {
	return func(m *Memory) {
		for _, t := range tasks {
			m.tasks = append(m.tasks, cloneTask(t))
			m.ids.observe(t.ID)
		}
	}
}

// SampleTasks returns the tasks a fresh mock backend starts with.
func SampleTasks() []domain.Task {
	return []domain.Task{
		{ID: 1, Text: "Sample task 1", Description: "This is a description for task 1"},
		{ID: 2, Text: "Sample task 2", Description: "This is a description for task 2"},
	}
}

// NewMemory creates a store, empty unless seeded with WithTasks.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{ids: newIDSequence(time.Now)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListTasks returns a copy of the collection in insertion order.
func (m *Memory) ListTasks(_ context.Context) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Task, len(m.tasks))
	for i, t := range m.tasks {
		out[i] = cloneTask(t)
	}
	return out, nil
}

// GetTask returns the task with the given identifier.
func (m *Memory) GetTask(_ context.Context, id int64) (domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	return cloneTask(m.tasks[i]), nil
}

// CreateTask validates the payload and appends a new task.
func (m *Memory) CreateTask(_ context.Context, in domain.NewTask) (domain.Task, error) {
	if err := in.Validate(); err != nil {
		return domain.Task{}, err
	}
	due, _ := domain.ParseDueDate(in.DueDate)

	m.mu.Lock()
	defer m.mu.Unlock()
	t := domain.Task{
		ID:          m.ids.next(),
		Text:        in.Text,
		Description: in.Description,
		DueDate:     due,
	}
	m.tasks = append(m.tasks, t)
	return cloneTask(t), nil
}

// ToggleTask flips the completed flag of the matching task.
func (m *Memory) ToggleTask(_ context.Context, id int64) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	m.tasks[i].Completed = !m.tasks[i].Completed
	return cloneTask(m.tasks[i]), nil
}

// UpdateTask applies the non-empty fields of changes to the matching task.
func (m *Memory) UpdateTask(_ context.Context, id int64, changes domain.TaskChanges) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	if changes.Description != "" {
		m.tasks[i].Description = changes.Description
	}
	// an unparseable due date clears the field
	if due, ok := domain.ParseDueDate(changes.DueDate); ok {
		m.tasks[i].DueDate = due
	}
	return cloneTask(m.tasks[i]), nil
}

// DeleteTask removes the matching task and reports whether one was removed.
// Unknown identifiers are not an error.
func (m *Memory) DeleteTask(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false, nil
	}
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	return true, nil
}

func (m *Memory) indexOf(id int64) int {
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneTask(t domain.Task) domain.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

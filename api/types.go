package api

import (
	"context"
	"errors"

	"tasks-api/domain"
)

// Storage abstracts the task collection for handlers.
type Storage interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	CreateTask(ctx context.Context, in domain.NewTask) (domain.Task, error)
	ToggleTask(ctx context.Context, id int64) (domain.Task, error)
	UpdateTask(ctx context.Context, id int64, changes domain.TaskChanges) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)
}

// Deduper remembers which task an idempotency key created.
type Deduper interface {
	// Lookup returns the task id recorded for key, if any.
	Lookup(ctx context.Context, key string) (int64, bool, error)
	// Remember records id for key and returns true if the key was newly added.
	Remember(ctx context.Context, key string, id int64) (bool, error)
}

// Publisher is notified after every successful mutation.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TaskEvent) error
}

// Publishers fans an event out to every publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, ev domain.TaskEvent) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type errorResponse struct {
	Message string `json:"message"`
}

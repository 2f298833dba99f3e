package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tasks-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	CreateTask(ctx context.Context, in domain.NewTask) (domain.Task, error)
	ToggleTask(ctx context.Context, id int64) (domain.Task, error)
	UpdateTask(ctx context.Context, id int64, changes domain.TaskChanges) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)
}

// Cache wraps a store with a Redis-backed copy of the task list. Every
// successful mutation evicts the cached list. Each Cache writes under its own
// key, so a list cached by an earlier process is never served.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	key   string
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// Keys are namespaced with prefix and a per-instance id.
func NewCache(base backend, client *redis.Client, ttl time.Duration, prefix string) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
		key:   tasksCacheKey(prefix, uuid.NewString()),
	}
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if tasks, ok := c.loadTasksFromCache(ctx); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	c.storeTasks(ctx, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, in domain.NewTask) (domain.Task, error) {
	t, err := c.base.CreateTask(ctx, in)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) ToggleTask(ctx context.Context, id int64) (domain.Task, error) {
	t, err := c.base.ToggleTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id int64, changes domain.TaskChanges) (domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, id, changes)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx)
	return t, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id int64) (bool, error) {
	removed, err := c.base.DeleteTask(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		c.evict(ctx)
	}
	return removed, nil
}

func (c *Cache) loadTasksFromCache(ctx context.Context) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, c.tasksKey()).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, c.tasksKey()).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, c.tasksKey()).Err()
		return nil, false
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, true
}

func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, c.tasksKey(), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, c.tasksKey()).Err()
}

func (c *Cache) tasksKey() string {
	return c.key
}

func tasksCacheKey(prefix, instance string) string {
	key := "tasks:" + instance
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

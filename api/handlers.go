package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasks-api/domain"
)

const (
	// HeaderIdempotencyKey lets clients retry task creation safely.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay marks a response served from an earlier create.
	HeaderIdempotentReplay = "Idempotent-Replay"

	defaultMaxBodySize = 64 * 1024 // 64 KiB
)

var errInvalidBody = errors.New("invalid body")

// Options configures the optional collaborators of the task routes.
type Options struct {
	Deduper      Deduper
	Publisher    Publisher
	Logger       *log.Logger
	MaxBodyBytes int64
}

// Register wires up all API routes on the provided Echo instance and returns the
// broker feeding the live stream.
func Register(e *echo.Echo, store Storage, opts Options) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	broker := NewBroker()
	publisher := Publishers{broker, opts.Publisher}

	e.JSONSerializer = SonicJSONSerializer{}

	e.GET("/tasks", listTasks(store, logger))
	e.POST("/tasks", createTask(store, opts.Deduper, publisher, maxBody, logger))
	e.GET("/tasks/stream", streamTasks(store, broker, logger))
	e.GET("/tasks/:id", getTask(store, logger))
	e.PATCH("/tasks/:id", toggleTask(store, publisher, logger))
	e.PUT("/tasks/:id", updateTask(store, publisher, maxBody, logger))
	e.DELETE("/tasks/:id", deleteTask(store, publisher, logger))
	e.GET("/healthz", healthz(store))

	return broker
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := store.ListTasks(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := store.ListTasks(c.Request().Context())
		if err != nil {
			return respondError(c, logger, err)
		}
		setTasksReturned(c, len(tasks))
		return c.JSON(http.StatusOK, tasks)
	}
}

func getTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := domain.ParseID(c.Param("id"))
		if !ok {
			return respondError(c, logger, &domain.NotFoundError{})
		}
		task, err := store.GetTask(c.Request().Context(), id)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func createTask(store Storage, deduper Deduper, publisher Publisher, maxBody int64, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var in domain.NewTask
		if err := decodeBody(c.Request().Body, maxBody, &in); err != nil {
			return respondError(c, logger, err)
		}

		key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
		if key != "" && deduper != nil {
			if task, ok := replayCreate(ctx, store, deduper, key, logger); ok {
				c.Response().Header().Set(HeaderIdempotentReplay, "true")
				return c.JSON(http.StatusCreated, task)
			}
		}

		task, err := store.CreateTask(ctx, in)
		if err != nil {
			return respondError(c, logger, err)
		}

		if key != "" && deduper != nil {
			if _, err := deduper.Remember(ctx, key, task.ID); err != nil {
				logger.WithError(err).WithField("task_id", task.ID).Warn("unable to record idempotency key")
			}
		}
		publish(ctx, publisher, logger, domain.EventTaskCreated, task)
		return c.JSON(http.StatusCreated, task)
	}
}

func replayCreate(ctx context.Context, store Storage, deduper Deduper, key string, logger *log.Logger) (domain.Task, bool) {
	id, ok, err := deduper.Lookup(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("idempotency lookup failed; creating task")
		return domain.Task{}, false
	}
	if !ok {
		return domain.Task{}, false
	}
	task, err := store.GetTask(ctx, id)
	if err != nil {
		// the original task is gone, treat the request as new
		return domain.Task{}, false
	}
	return task, true
}

func toggleTask(store Storage, publisher Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, ok := domain.ParseID(c.Param("id"))
		if !ok {
			return respondError(c, logger, &domain.NotFoundError{})
		}
		task, err := store.ToggleTask(ctx, id)
		if err != nil {
			return respondError(c, logger, err)
		}
		evType := domain.EventTaskReopened
		if task.Completed {
			evType = domain.EventTaskCompleted
		}
		publish(ctx, publisher, logger, evType, task)
		return c.JSON(http.StatusOK, task)
	}
}

func updateTask(store Storage, publisher Publisher, maxBody int64, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var changes domain.TaskChanges
		if err := decodeBody(c.Request().Body, maxBody, &changes); err != nil {
			return respondError(c, logger, err)
		}
		id, ok := domain.ParseID(c.Param("id"))
		if !ok {
			return respondError(c, logger, &domain.NotFoundError{})
		}
		task, err := store.UpdateTask(ctx, id, changes)
		if err != nil {
			return respondError(c, logger, err)
		}
		publish(ctx, publisher, logger, domain.EventTaskUpdated, task)
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, publisher Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, ok := domain.ParseID(c.Param("id"))
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}
		removed, err := store.DeleteTask(ctx, id)
		if err != nil {
			return respondError(c, logger, err)
		}
		if removed {
			publish(ctx, publisher, logger, domain.EventTaskDeleted, domain.Task{ID: id})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func decodeBody(body io.Reader, limit int64, dst any) error {
	if body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil || int64(len(data)) > limit {
		return errInvalidBody
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := sonic.ConfigStd.Unmarshal(data, dst); err != nil {
		return errInvalidBody
	}
	return nil
}

func respondError(c echo.Context, logger *log.Logger, err error) error {
	var (
		vErr  *domain.ValidationError
		nfErr *domain.NotFoundError
	)
	switch {
	case errors.Is(err, errInvalidBody):
		setErrorStage(c, "decode_body")
		return c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.As(err, &vErr):
		setErrorStage(c, "validation")
		return c.JSON(http.StatusBadRequest, errorResponse{Message: vErr.Message})
	case errors.As(err, &nfErr):
		setErrorStage(c, "not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Message: nfErr.Error()})
	}
	setErrorStage(c, "storage")
	logger.WithError(err).WithField("path", c.Path()).Error("task store failure")
	return c.JSON(http.StatusInternalServerError, errorResponse{Message: "internal error"})
}

func publish(ctx context.Context, publisher Publisher, logger *log.Logger, evType string, task domain.Task) {
	ev := domain.TaskEvent{
		Type:   evType,
		TaskID: task.ID,
		Time:   time.Now().UnixMilli(),
	}
	if evType != domain.EventTaskDeleted {
		ev.Task = &task
	}
	if err := publisher.Publish(ctx, ev); err != nil {
		logger.WithError(err).WithFields(log.Fields{"event": evType, "task_id": task.ID}).Warn("unable to publish task event")
	}
}

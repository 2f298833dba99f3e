package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasks-api/domain"
)

// Broker wakes live stream subscribers whenever the task list changes.
type Broker struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// NewBroker creates a broker without subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[chan struct{}]struct{})}
}

func (b *Broker) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) unsubscribe(ch chan struct{}) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Subscribers reports the number of open streams.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish implements Publisher. Pending wake-ups are coalesced so slow
// subscribers never block mutations.
func (b *Broker) Publish(_ context.Context, _ domain.TaskEvent) error {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
	return nil
}

func streamTasks(store Storage, broker *Broker, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			setErrorStage(c, "stream_unsupported")
			return c.JSON(http.StatusInternalServerError, errorResponse{Message: "stream unsupported"})
		}
		c.Response().WriteHeader(http.StatusOK)

		ctx := c.Request().Context()
		ch := broker.subscribe()
		defer broker.unsubscribe(ch)
		for {
			tasks, err := store.ListTasks(ctx)
			if err != nil {
				logger.WithError(err).Error("stream: list tasks")
				return nil
			}
			data, err := sonic.Marshal(tasks)
			if err != nil {
				logger.WithError(err).Error("stream: marshal tasks")
				return nil
			}
			frame := make([]byte, 0, len(data)+8)
			frame = append(frame, "data: "...)
			frame = append(frame, data...)
			frame = append(frame, '\n', '\n')
			if _, err := c.Response().Write(frame); err != nil {
				logger.WithError(err).Debug("stream: client gone")
				return nil
			}
			flusher.Flush()

			select {
			case <-ctx.Done():
				return nil
			case <-ch:
			}
		}
	}
}

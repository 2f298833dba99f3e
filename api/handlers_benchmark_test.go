package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"tasks-api/domain"
	"tasks-api/storage"
)

func BenchmarkListTasks(b *testing.B) {
	sizes := []struct {
		name  string
		tasks int
	}{
		{name: "Small", tasks: 2},
		{name: "Large", tasks: 500},
	}

	for _, size := range sizes {
		size := size
		b.Run(size.name, func(b *testing.B) {
			seed := make([]domain.Task, size.tasks)
			for i := range seed {
				seed[i] = domain.Task{ID: int64(i + 1), Text: "task", Description: "description"}
			}
			e := newTestServer(b, storage.NewMemory(storage.WithTasks(seed...)), Options{})
			runBenchmark(b, e, http.MethodGet, "/tasks", "", http.StatusOK)
		})
	}
}

func BenchmarkCreateTask(b *testing.B) {
	e := newTestServer(b, storage.NewMemory(), Options{})
	runBenchmark(b, e, http.MethodPost, "/tasks", `{"text":"Buy milk","description":"2%","dueDate":"2024-05-01"}`, http.StatusCreated)
}

func runBenchmark(b *testing.B, e *echo.Echo, method, target, body string, want int) {
	b.Helper()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var req *http.Request
			if body != "" {
				req = httptest.NewRequest(method, target, strings.NewReader(body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			} else {
				req = httptest.NewRequest(method, target, nil)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != want {
				b.Fatalf("unexpected status code: %d", rec.Code)
			}
		}
	})
}

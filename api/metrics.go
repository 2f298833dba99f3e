package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName             = "tasks-api"
	requestEventName       = "tasks.request"
	requestEventDomain     = "tasks"
	observabilityEventName = "observability.event"

	errorStageKey    = "metrics.error_stage"
	tasksReturnedKey = "metrics.tasks_returned"
)

func setErrorStage(c echo.Context, stage string) {
	if stage == "" {
		return
	}
	c.Set(errorStageKey, stage)
}

func setTasksReturned(c echo.Context, count int) {
	if count < 0 {
		count = 0
	}
	c.Set(tasksReturnedKey, count)
}

type requestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	method        string
	route         string
	taskID        string
	requestID     string
	tasksReturned int
	errorStage    string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
	return &requestMetrics{
		logger:        logger,
		span:          span,
		start:         time.Now(),
		method:        method,
		route:         route,
		tasksReturned: -1,
	}, spanCtx
}

func (m *requestMetrics) attributes(status int) map[string]any {
	attrs := map[string]any{
		"http.method":            m.method,
		"http.route":             m.route,
		"http.status_code":       status,
		"tasks.request.total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.taskID != "" {
		attrs["tasks.request.task_id"] = m.taskID
	}
	if m.requestID != "" {
		attrs["tasks.request.request_id"] = m.requestID
	}
	if m.tasksReturned >= 0 {
		attrs["tasks.request.tasks_returned"] = m.tasksReturned
	}
	if m.errorStage != "" {
		attrs["tasks.request.error_stage"] = m.errorStage
	}
	return attrs
}

// Finish ends the span and emits the request log entry.
func (m *requestMetrics) Finish(status int, err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForStatus(status, err)
	attrs := m.attributes(status)

	spanAttrs := make([]attribute.KeyValue, 0, len(attrs)+3)
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			spanAttrs = append(spanAttrs, attribute.String(k, val))
		case int:
			spanAttrs = append(spanAttrs, attribute.Int(k, val))
		case float64:
			spanAttrs = append(spanAttrs, attribute.Float64(k, val))
		}
	}
	spanAttrs = append(spanAttrs,
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	)
	if err != nil {
		spanAttrs = append(spanAttrs, attribute.String("error.message", err.Error()))
	}
	m.span.SetAttributes(attribute.Int("http.status_code", status))
	m.span.AddEvent(observabilityEventName, trace.WithAttributes(spanAttrs...))
	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
	} else if status >= http.StatusInternalServerError {
		m.span.SetStatus(codes.Error, http.StatusText(status))
	}
	sc := m.span.SpanContext()
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		fields["span_id"] = sc.SpanID().String()
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityNumber), observabilityEventName)
}

// RequestMetrics traces every request and logs one structured entry for it.
func RequestMetrics(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			metrics, spanCtx := newRequestMetrics(req.Context(), logger, req.Method, route)
			c.SetRequest(req.WithContext(spanCtx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			metrics.taskID = c.Param("id")
			metrics.requestID = c.Response().Header().Get(echo.HeaderXRequestID)
			if stage, ok := c.Get(errorStageKey).(string); ok {
				metrics.errorStage = stage
			}
			if n, ok := c.Get(tasksReturnedKey).(int); ok {
				metrics.tasksReturned = n
			}
			metrics.Finish(c.Response().Status, err)
			return nil
		}
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(number int) log.Level {
	switch {
	case number >= 17:
		return log.ErrorLevel
	case number >= 13:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"circle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	sr := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/thread/:id", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.SendStatus(fiber.StatusOK)
	})

	for _, path := range []string{"/api/thread/1", "/api/thread/2"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	}

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "GET /api/thread/:id", span.Name())

		route, ok := spanAttr(span, "http.route")
		require.True(t, ok)
		assert.Equal(t, "/api/thread/:id", route.AsString())

		userID, ok := spanAttr(span, "user.id")
		require.True(t, ok)
		assert.Equal(t, attribute.INT64, userID.Type())
		assert.Equal(t, int64(7), userID.AsInt64())
	}
}

func TestTracingMiddleware_ServerErrorsMarkSpan(t *testing.T) {
	sr := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	})
	app.Get("/missing-user", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing-user", nil))
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	_, hasUser := spanAttr(spans[1], "user.id")
	assert.False(t, hasUser)
}

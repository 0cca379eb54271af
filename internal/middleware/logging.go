package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. ConfigureLogger replaces it
// once configuration is loaded.
var Logger = NewLogger(os.Getenv("APP_ENV"), os.Stdout)

// requestFields are attached to every record logged with a request context.
type requestFields struct {
	requestID string
	traceID   string
	userID    uint
}

type requestFieldsKey struct{}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(requestFieldsKey{}).(requestFields)
	return f
}

func withFields(ctx context.Context, edit func(*requestFields)) context.Context {
	f := fieldsFrom(ctx)
	edit(&f)
	return context.WithValue(ctx, requestFieldsKey{}, f)
}

// ContextWithRequestID tags later log records with id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.requestID = id })
}

// ContextWithTraceID tags later log records with the active trace.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	return withFields(ctx, func(f *requestFields) { f.traceID = id })
}

// ContextWithUserID tags later log records with the authenticated user.
func ContextWithUserID(ctx context.Context, userID uint) context.Context {
	return withFields(ctx, func(f *requestFields) { f.userID = userID })
}

// UserIDFromContext returns the user stored by ContextWithUserID.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	f := fieldsFrom(ctx)
	return f.userID, f.userID != 0
}

// requestHandler decorates records with requestFields from the context.
type requestHandler struct {
	slog.Handler
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}

func (h requestHandler) Handle(ctx context.Context, r slog.Record) error {
	f := fieldsFrom(ctx)
	if f.requestID != "" {
		r.AddAttrs(slog.String("request_id", f.requestID))
	}
	if f.traceID != "" {
		r.AddAttrs(slog.String("trace_id", f.traceID))
	}
	if f.userID != 0 {
		r.AddAttrs(slog.Uint64("user_id", uint64(f.userID)))
	}
	return h.Handler.Handle(ctx, r)
}

// NewLogger writes JSON in production-like environments and text elsewhere.
// Tests only see warnings and errors.
func NewLogger(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging":
		handler = slog.NewJSONHandler(w, opts)
	case "test":
		opts.Level = slog.LevelWarn
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(requestHandler{handler})
}

// ConfigureLogger replaces Logger and the slog default for env.
func ConfigureLogger(env string) {
	Logger = NewLogger(env, os.Stdout)
	slog.SetDefault(Logger)
}

// ContextMiddleware copies the request ID into the request context so
// service-layer logs carry it.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(ContextWithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

// StructuredLogger logs one record per request: errors for 5xx, warnings for
// 4xx and info otherwise.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", c.Route().Path),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		level := slog.LevelInfo
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}
		Logger.LogAttrs(c.UserContext(), level, "request", attrs...)
		return err
	}
}

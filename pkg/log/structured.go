package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/meeting-intelligence/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger logs operations as a sequence of named steps.
//
//	tracer := logger.WithContext(ctx).Operation("upload").WithString("kind", kind).Build()
//	tracer.Step("object_stored").WithInt64("size", size).Log()
//	tracer.Success().Log()
//
// The global zap logger is resolved at log time so loggers can be built before
// zap.ReplaceGlobals runs.
type StructuredLogger struct {
	name  string
	level zapcore.Level
}

func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.DebugLevel}
}

func NewInfoLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.InfoLevel}
}

func (l *StructuredLogger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{logger: l, requestID: requestid.FromContext(ctx)}
}

type ContextLogger struct {
	logger    *StructuredLogger
	requestID string
}

func (c *ContextLogger) Operation(name string) *OperationBuilder {
	return &OperationBuilder{ctx: c, operation: name}
}

type OperationBuilder struct {
	ctx       *ContextLogger
	operation string
	fields    []zap.Field
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithInt64(key string, value int64) *OperationBuilder {
	b.fields = append(b.fields, zap.Int64(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value.String()))
	return b
}

func (b *OperationBuilder) Build() *OperationTracer {
	fields := append([]zap.Field{zap.String("operation", b.operation)}, b.fields...)
	if b.ctx.requestID != "" {
		fields = append(fields, zap.String("request_id", b.ctx.requestID))
	}
	return &OperationTracer{
		logger: b.ctx.logger,
		fields: fields,
		start:  time.Now(),
	}
}

type OperationTracer struct {
	logger *StructuredLogger
	fields []zap.Field
	start  time.Time
}

func (t *OperationTracer) Step(name string) *Entry {
	return t.entry(t.logger.level, "step", zap.String("step", name))
}

func (t *OperationTracer) Success() *Entry {
	return t.entry(t.logger.level, "success", zap.Duration("duration", time.Since(t.start)))
}

func (t *OperationTracer) Error(err error) *Entry {
	return t.entry(zapcore.ErrorLevel, "error", zap.Error(err), zap.Duration("duration", time.Since(t.start)))
}

func (t *OperationTracer) Warn(err error) *Entry {
	return t.entry(zapcore.WarnLevel, "warning", zap.Error(err))
}

func (t *OperationTracer) entry(level zapcore.Level, msg string, extra ...zap.Field) *Entry {
	fields := make([]zap.Field, 0, len(t.fields)+len(extra))
	fields = append(fields, t.fields...)
	fields = append(fields, extra...)
	return &Entry{name: t.logger.name, level: level, msg: msg, fields: fields}
}

type Entry struct {
	name   string
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *Entry) WithString(key, value string) *Entry {
	e.fields = append(e.fields, zap.String(key, value))
	return e
}

func (e *Entry) WithInt(key string, value int) *Entry {
	e.fields = append(e.fields, zap.Int(key, value))
	return e
}

func (e *Entry) WithInt64(key string, value int64) *Entry {
	e.fields = append(e.fields, zap.Int64(key, value))
	return e
}

func (e *Entry) WithBool(key string, value bool) *Entry {
	e.fields = append(e.fields, zap.Bool(key, value))
	return e
}

func (e *Entry) WithParam(key string, value any) *Entry {
	e.fields = append(e.fields, zap.Any(key, value))
	return e
}

func (e *Entry) WithUUID(key string, value uuid.UUID) *Entry {
	e.fields = append(e.fields, zap.String(key, value.String()))
	return e
}

func (e *Entry) Log() {
	zap.L().Named(e.name).Log(e.level, e.msg, e.fields...)
}

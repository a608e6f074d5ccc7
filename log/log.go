// Package log provides structured, context-scoped logging on top of
// logrus, in the style the rest of this module expects:
// log.Info(ctx, "message", "key", value, ...).
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKeyFields struct{}

var base = logrus.StandardLogger()

// SetLevel changes the minimum level emitted, typically from conf at startup.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// NewContext attaches key/value fields to ctx so every subsequent log call
// using that context includes them automatically (e.g. a request id).
func NewContext(ctx context.Context, kv ...any) context.Context {
	fields := fieldsFrom(ctx)
	merged := logrus.Fields{}
	for k, v := range fields {
		merged[k] = v
	}
	addKV(merged, kv)
	return context.WithValue(ctx, ctxKeyFields{}, merged)
}

func fieldsFrom(ctx context.Context) logrus.Fields {
	if ctx == nil {
		return logrus.Fields{}
	}
	if f, ok := ctx.Value(ctxKeyFields{}).(logrus.Fields); ok {
		return f
	}
	return logrus.Fields{}
}

func addKV(f logrus.Fields, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
}

func entry(ctx context.Context, kv ...any) *logrus.Entry {
	f := fieldsFrom(ctx)
	merged := logrus.Fields{}
	for k, v := range f {
		merged[k] = v
	}
	addKV(merged, kv)
	return base.WithFields(merged)
}

func Debug(ctx context.Context, msg string, kv ...any) { entry(ctx, kv...).Debug(msg) }
func Info(ctx context.Context, msg string, kv ...any)  { entry(ctx, kv...).Info(msg) }
func Warn(ctx context.Context, msg string, kv ...any)  { entry(ctx, kv...).Warn(msg) }

// Error logs msg at error level with err attached as a field. The
// (ctx, msg, err, kv...) signature matches the call sites throughout this
// module.
func Error(ctx context.Context, msg string, err error, kv ...any) {
	e := entry(ctx, kv...)
	if err != nil {
		e = e.WithField("error", err.Error())
	}
	e.Error(msg)
}

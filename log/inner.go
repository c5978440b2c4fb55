package log

import (
	"context"
	"fmt"

	"github.com/alphadose/haxmap"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

func fatalf(ctx context.Context, err error, format string, fields *haxmap.Map[string, any], args ...any) {
	reportToSentry(ctx, sentry.LevelFatal, err, format, args...)
	f := globalLogger.Fatal()
	wrap(f, fields).Err(err).Msg(genTracingInfo(ctx) + sprintf(format, args...))
}

func warnf(ctx context.Context, format string, fields *haxmap.Map[string, any], args ...any) {
	f := globalLogger.Warn()
	wrap(f, fields).Msg(genTracingInfo(ctx) + sprintf(format, args...))
}

func infof(ctx context.Context, format string, fields *haxmap.Map[string, any], args ...any) {
	f := globalLogger.Info()
	wrap(f, fields).Msg(genTracingInfo(ctx) + sprintf(format, args...))
}

func debugf(ctx context.Context, format string, fields *haxmap.Map[string, any], args ...any) {
	f := globalLogger.Debug()
	wrap(f, fields).Msg(genTracingInfo(ctx) + sprintf(format, args...))
}

func errorf(ctx context.Context, err error, format string, fields *haxmap.Map[string, any], args ...any) {
	if err == nil {
		return
	}
	reportToSentry(ctx, sentry.LevelError, err, format, args...)
	f := globalLogger.Error()
	wrap(f, fields).Stack().Err(err).Msg(genTracingInfo(ctx) + sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func wrap(f *zerolog.Event, kv *haxmap.Map[string, any]) *zerolog.Event {
	if kv == nil {
		return f
	}
	kv.ForEach(func(k string, v any) bool {
		f = f.Interface(k, v)
		return true
	})
	return f
}

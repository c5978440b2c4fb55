package log

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"
)

type ctxKey string

// RunID is the context key carrying the id of one pipeline run
const RunID ctxKey = "run-id"

// SentryDefer .
func SentryDefer() {
	if sentryDSN == "" {
		return
	}
	defer sentry.Flush(2 * time.Second)
	if r := recover(); r != nil {
		sentry.CaptureMessage(fmt.Sprintf("%+v: %s", r, debug.Stack()))
		panic(r)
	}
}

// WithRunID binds a run id to ctx, it shows up in sentry reports
func WithRunID(ctx context.Context, ID string) context.Context {
	return context.WithValue(ctx, RunID, ID)
}

func genTracingInfo(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if rid, ok := ctx.Value(RunID).(string); ok && rid != "" {
		return fmt.Sprintf("[%s] ", rid)
	}
	return ""
}

func reportToSentry(ctx context.Context, level sentry.Level, err error, format string, args ...any) { //nolint
	if sentryDSN == "" {
		return
	}
	defer sentry.Flush(2 * time.Second)
	event, extraDetails := errors.BuildSentryReport(err)
	for k, v := range extraDetails {
		event.Extra[k] = v
	}
	event.Level = level

	if msg := fmt.Sprintf(format, args...); msg != "" {
		event.Tags["message"] = msg
	}

	if tracingInfo := genTracingInfo(ctx); tracingInfo != "" {
		event.Tags["tracing"] = tracingInfo
	}

	if res := string(*sentry.CaptureEvent(event)); res != "" {
		Infof(ctx, "Report to Sentry ID: %s", res)
	}
}

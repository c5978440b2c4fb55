package log

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

var (
	globalLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC822}).With().Timestamp().Logger()
	sentryDSN    string
)

// SetupLog init logger
func SetupLog(ctx context.Context, level, dsn string) error {
	return setupLog(ctx, os.Stderr, level, dsn)
}

func setupLog(_ context.Context, out io.Writer, l, dsn string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(l))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	globalLogger = zerolog.New(
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC822,
		}).With().Timestamp().Logger()

	// Sentry
	if dsn != "" {
		sentryDSN = dsn
		Infof(nil, "[SetupLog] sentry %v", sentryDSN) //nolint
		_ = sentry.Init(sentry.ClientOptions{Dsn: sentryDSN})
	}
	return nil
}

// Fatalf forwards to sentry
func Fatalf(ctx context.Context, err error, format string, args ...any) {
	fatalf(ctx, err, format, nil, args...)
}

// Warnf is Warnf
func Warnf(ctx context.Context, format string, args ...any) {
	warnf(ctx, format, nil, args...)
}

// Warn is Warn
func Warn(ctx context.Context, args ...any) {
	Warnf(ctx, "%+v", args...)
}

// Infof is Infof
func Infof(ctx context.Context, format string, args ...any) {
	infof(ctx, format, nil, args...)
}

// Info is Info
func Info(ctx context.Context, args ...any) {
	Infof(ctx, "%+v", args...)
}

// Debugf is Debugf
func Debugf(ctx context.Context, format string, args ...any) {
	debugf(ctx, format, nil, args...)
}

// Debug is Debug
func Debug(ctx context.Context, args ...any) {
	Debugf(ctx, "%+v", args...)
}

// Errorf forwards to sentry
func Errorf(ctx context.Context, err error, format string, args ...any) {
	errorf(ctx, err, format, nil, args...)
}

// Error forwards to sentry
func Error(ctx context.Context, err error, args ...any) {
	Errorf(ctx, err, "%+v", args...)
}

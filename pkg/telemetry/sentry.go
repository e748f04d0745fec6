// Package telemetry wires Sentry error tracking for the server and worker binaries.
//
// Usage in main.go:
//
//	enabled, err := telemetry.InitSentry(cfg.Telemetry.SentryDSN, "server", cfg.Telemetry.Environment, cfg.Telemetry.Release)
//	defer telemetry.Flush()
//
// Usage elsewhere:
//
//	telemetry.CaptureError(err, map[string]string{"operation": "impression_insert"})
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes the Sentry SDK. An empty dsn leaves Sentry disabled and is not an error.
func InitSentry(dsn, serviceName, environment, release string) (bool, error) {
	if dsn == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		Tags: map[string]string{
			"service": serviceName,
		},
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return scrubRequest(event)
		},
	})
	if err != nil {
		return false, fmt.Errorf("sentry init: %w", err)
	}
	return true, nil
}

// CaptureError sends an error to Sentry with optional tags. Safe to call when Sentry is disabled.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(recovered interface{}, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CurrentHub().Recover(recovered)
	})
}

// Flush waits for buffered events to be delivered.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// scrubRequest drops credentials from request data before an event leaves the process.
func scrubRequest(event *sentry.Event) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}
	for _, h := range []string{"Authorization", "Cookie"} {
		if _, ok := event.Request.Headers[h]; ok {
			event.Request.Headers[h] = "[Filtered]"
		}
	}
	event.Request.Cookies = ""
	if event.Request.QueryString != "" {
		event.Request.QueryString = "[Filtered]"
	}
	return event
}

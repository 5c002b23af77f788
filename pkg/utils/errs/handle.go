package errs

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err and forwards it to Sentry. Sentry is a no-op unless
// sentry.Init was called with a DSN.
func Handle(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	ctxlog.From(ctx).Error(msg, "error", err)

	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)

		var goErr *goerr.Error
		if errors.As(err, &goErr) {
			values := goErr.Values()
			if len(values) > 0 {
				scope.SetContext("values", sentry.Context(values))
			}
		}

		hub.CaptureException(err)
	})
}

// Package async provides safe goroutine helpers for fire-and-forget side
// effects: panic recovery, timeout enforcement, and error logging. Audit and
// notification side effects must never block or fail the primary mutation,
// so they run through SafeGo.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/observability"
)

// SafeGo executes fn in a goroutine with context cancellation, panic
// recovery, and a hard timeout. Use this instead of bare `go func()`.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	logger := observability.FromContext(parentCtx).WithField("task", taskName)
	go func() {
		// Detach from the request's cancellation but keep its values; the
		// side effect should outlive the response.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo for functions that don't return errors
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

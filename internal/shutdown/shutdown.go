// Package shutdown ties fatal failures in background tasks to process termination.
//
// Every task receives the coordinator's context and checks it at each suspension
// point. A task that hits an unrecoverable error calls Fail, which cancels the
// context for everyone; an OS signal cancels the parent context the same way.
package shutdown

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
)

// errUnspecified stands in for a nil error passed to Fail.
var errUnspecified = errors.New("unspecified fatal error")

// failure marks a cancellation cause that came from Fail rather than the parent.
type failure struct{ err error }

func (f *failure) Error() string { return f.err.Error() }
func (f *failure) Unwrap() error { return f.err }

// Coordinator is a many-to-one shutdown signal.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	log    logr.Logger
}

// New returns a coordinator whose context is cancelled when parent is done or Fail is called.
func New(parent context.Context, log logr.Logger) *Coordinator {
	ctx, cancel := context.WithCancelCause(parent)
	return &Coordinator{ctx: ctx, cancel: cancel, log: log}
}

// Context is handed to every concurrent task.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Fail requests process-wide termination. Only the first cause is kept.
func (c *Coordinator) Fail(err error) {
	if err == nil {
		err = errUnspecified
	}
	if c.ctx.Err() == nil {
		c.log.Error(err, "fatal error, shutting down")
	}
	c.cancel(&failure{err: err})
}

// Wait blocks until shutdown was requested. It returns the failure cause when a
// task called Fail first, and nil when the parent context ended (an OS signal).
func (c *Coordinator) Wait() error {
	<-c.ctx.Done()
	var f *failure
	if errors.As(context.Cause(c.ctx), &f) {
		return f.err
	}
	c.log.Info("shutdown requested")
	return nil
}

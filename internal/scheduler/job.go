package scheduler

import "context"

// Job is a named unit of scheduled work. The result is reported back to manual triggers.
type Job interface {
	Name() string
	Run(ctx context.Context) (any, error)
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) (any, error)
}

func (j *funcJob) Name() string                         { return j.name }
func (j *funcJob) Run(ctx context.Context) (any, error) { return j.fn(ctx) }

// NewJob adapts a function to Job
func NewJob(name string, fn func(ctx context.Context) (any, error)) Job {
	return &funcJob{name: name, fn: fn}
}

type forceKey struct{}

// WithForce marks a manual trigger as forced; jobs that gate on market hours skip the gate
func WithForce(ctx context.Context, force bool) context.Context {
	return context.WithValue(ctx, forceKey{}, force)
}

// Force reports whether ctx carries a forced trigger
func Force(ctx context.Context) bool {
	force, _ := ctx.Value(forceKey{}).(bool)
	return force
}

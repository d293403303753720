package executor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner fetches a capture from a single host. For command runners the
// request is the shell command; for file runners it is the remote path.
type Runner interface {
	Run(ctx context.Context, host string, request string) *HostResult
}

// Executor fans a request out across hosts with bounded concurrency.
type Executor struct {
	runner      Runner
	concurrency int
	timeout     time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithConcurrency sets the maximum number of hosts handled at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithTimeout sets the per-host timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Executor with the given Runner and options.
func New(runner Runner, opts ...Option) *Executor {
	e := &Executor{
		runner:      runner,
		concurrency: 20,
		timeout:     2 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs request on every host. Results are returned in the same
// order as hosts; a failure on one host never cancels the others.
func (e *Executor) Execute(ctx context.Context, hosts []string, request string) []*HostResult {
	results := make([]*HostResult, len(hosts))
	if len(hosts) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, host := range hosts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = &HostResult{Host: host, Err: err}
				return nil
			}

			hostCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			start := time.Now()
			result := e.runner.Run(hostCtx, host, request)
			if result == nil {
				result = &HostResult{}
			}
			result.Duration = time.Since(start)
			result.Host = host

			// The runner may return before noticing its deadline.
			if hostCtx.Err() == context.DeadlineExceeded && result.Err == nil {
				result.Err = context.DeadlineExceeded
			}

			results[i] = result
			return nil
		})
	}

	g.Wait()
	return results
}

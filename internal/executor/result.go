package executor

import (
	"context"
	"errors"
	"net"
	"time"
)

// HostResult holds the capture fetched from a single host.
type HostResult struct {
	Host     string
	Stdout   []byte // ping output or downloaded file contents
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error // connection/timeout errors
}

// Failed reports whether the host produced no usable capture.
// ping exits non-zero on packet loss, so output with a non-zero exit
// still counts as a capture.
func (r *HostResult) Failed() bool {
	return r.Err != nil || (r.ExitCode != 0 && len(r.Stdout) == 0)
}

// TimedOut reports whether the host failed because a deadline passed.
func (r *HostResult) TimedOut() bool {
	if r.Err == nil {
		return false
	}
	if errors.Is(r.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(r.Err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// Package collect gathers one ping capture per host into a data directory
// that the convert step reads back.
package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agent462/pingcsv/internal/config"
	"github.com/agent462/pingcsv/internal/executor"
	"github.com/agent462/pingcsv/internal/pathutil"
	"github.com/agent462/pingcsv/internal/ssh"
)

// ErrAllHostsFailed is returned when no host produced a capture.
var ErrAllHostsFailed = errors.New("no capture collected from any host")

// Mode selects how a capture is obtained from a host.
type Mode int

const (
	// ModeCommand runs a ping command and saves its stdout.
	ModeCommand Mode = iota
	// ModeFile downloads an existing capture over SFTP.
	ModeFile
)

// PingCommand builds the default remote command for target.
func PingCommand(target string, count int) string {
	return fmt.Sprintf("ping -c %d %s", count, target)
}

// CaptureName returns the file name a host's capture is stored under.
func CaptureName(host string) string {
	return pathutil.SafeFileName(host) + ".txt"
}

// HostConfigs maps resolved hosts to per-host SSH settings keyed by Name.
func HostConfigs(hosts []config.Host) map[string]ssh.HostConfig {
	confs := make(map[string]ssh.HostConfig, len(hosts))
	for _, h := range hosts {
		confs[h.Name] = ssh.HostConfig{
			Hostname:     h.Hostname,
			User:         h.User,
			Port:         h.Port,
			IdentityFile: h.IdentityFile,
		}
	}
	return confs
}

// NewRunner returns the SSH runner for mode.
func NewRunner(mode Mode, base ssh.ClientConfig, hosts []config.Host) executor.Runner {
	confs := HostConfigs(hosts)
	if mode == ModeFile {
		return ssh.NewFileRunner(base, confs)
	}
	return ssh.NewCommandRunner(base, confs)
}

// Saved is a host whose capture was written to disk.
type Saved struct {
	Host   string
	Path   string
	Result *executor.HostResult
}

// Report summarizes a collection run.
type Report struct {
	Saved    []Saved
	Failed   []*executor.HostResult
	TimedOut []*executor.HostResult
}

// Total returns the number of hosts in the report.
func (r *Report) Total() int {
	return len(r.Saved) + len(r.Failed) + len(r.TimedOut)
}

// Collector fans a request out to hosts and stores each capture.
type Collector struct {
	exec     *executor.Executor
	execOpts []executor.Option
	dir      string
	log      logrus.FieldLogger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger used for per-host outcomes.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// WithConcurrency limits how many hosts are contacted at once.
func WithConcurrency(n int) Option {
	return func(c *Collector) { c.execOpts = append(c.execOpts, executor.WithConcurrency(n)) }
}

// WithTimeout bounds the time spent on a single host.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) { c.execOpts = append(c.execOpts, executor.WithTimeout(d)) }
}

// New creates a Collector that stores captures in dir.
func New(runner executor.Runner, dir string, opts ...Option) *Collector {
	c := &Collector{
		dir: dir,
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.exec = executor.New(runner, c.execOpts...)
	return c
}

// splitNameClashes keeps the first host for each capture file name and
// returns a failed result for every later host that would overwrite it.
// Names are compared case-insensitively for case-folding filesystems.
func splitNameClashes(hosts []string) (unique []string, clashes []*executor.HostResult) {
	owner := make(map[string]string, len(hosts))
	for _, h := range hosts {
		key := strings.ToLower(CaptureName(h))
		if first, ok := owner[key]; ok {
			clashes = append(clashes, &executor.HostResult{
				Host: h,
				Err:  fmt.Errorf("capture file %s already used by host %s", CaptureName(h), first),
			})
			continue
		}
		owner[key] = h
		unique = append(unique, h)
	}
	return unique, clashes
}

// Collect runs request on every host and writes each usable capture to
// <dir>/<host>.txt. Hosts that fail are reported and skipped; an error is
// returned only when nothing was saved.
func (c *Collector) Collect(ctx context.Context, hosts []string, request string) (*Report, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no hosts to collect from")
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	report := &Report{}
	hosts, clashes := splitNameClashes(hosts)
	for _, r := range clashes {
		c.log.WithField("host", r.Host).WithError(r.Err).Warn("collect skipped")
		report.Failed = append(report.Failed, r)
	}

	for _, r := range c.exec.Execute(ctx, hosts, request) {
		fields := logrus.Fields{
			"host":     r.Host,
			"exit":     r.ExitCode,
			"bytes":    len(r.Stdout),
			"duration": r.Duration.Round(time.Millisecond),
		}
		if r.Failed() {
			if r.Err == nil {
				r.Err = fmt.Errorf("exit code %d with no output", r.ExitCode)
			}
			c.log.WithFields(fields).WithError(r.Err).Warn("collect failed")
			if r.TimedOut() {
				report.TimedOut = append(report.TimedOut, r)
			} else {
				report.Failed = append(report.Failed, r)
			}
			continue
		}

		path := filepath.Join(c.dir, CaptureName(r.Host))
		if err := os.WriteFile(path, r.Stdout, 0644); err != nil {
			r.Err = fmt.Errorf("writing capture: %w", err)
			c.log.WithFields(fields).WithError(r.Err).Warn("collect failed")
			report.Failed = append(report.Failed, r)
			continue
		}
		c.log.WithFields(fields).WithField("file", path).Debug("capture saved")
		report.Saved = append(report.Saved, Saved{Host: r.Host, Path: path, Result: r})
	}

	if len(report.Saved) == 0 {
		return report, fmt.Errorf("%w (%d hosts)", ErrAllHostsFailed, report.Total())
	}
	return report, nil
}

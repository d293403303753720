package ssh

import (
	"context"
	"fmt"

	"github.com/agent462/pingcsv/internal/executor"
)

// HostConfig holds per-host SSH connection details.
type HostConfig struct {
	Hostname     string // host to dial when it differs from the map key
	User         string
	Port         int
	IdentityFile string
}

// CommandRunner implements executor.Runner by running the request as a
// shell command over a one-shot SSH connection.
type CommandRunner struct {
	baseConf  ClientConfig
	hostConfs map[string]HostConfig
}

// NewCommandRunner creates a CommandRunner with a base config and per-host
// overrides.
func NewCommandRunner(baseConf ClientConfig, hostConfs map[string]HostConfig) *CommandRunner {
	return &CommandRunner{baseConf: baseConf, hostConfs: hostConfs}
}

// Run executes command on host.
func (r *CommandRunner) Run(ctx context.Context, host string, command string) *executor.HostResult {
	result := &executor.HostResult{Host: host}

	client, err := dialHost(ctx, r.baseConf, r.hostConfs, host)
	if err != nil {
		result.Err = err
		return result
	}
	defer client.Close()

	result.Stdout, result.Stderr, result.ExitCode, result.Err = client.RunCommand(ctx, command)
	return result
}

// FileRunner implements executor.Runner by downloading the request path
// over SFTP. The file contents are returned as Stdout.
type FileRunner struct {
	baseConf  ClientConfig
	hostConfs map[string]HostConfig
}

// NewFileRunner creates a FileRunner with a base config and per-host
// overrides.
func NewFileRunner(baseConf ClientConfig, hostConfs map[string]HostConfig) *FileRunner {
	return &FileRunner{baseConf: baseConf, hostConfs: hostConfs}
}

// Run downloads remotePath from host.
func (r *FileRunner) Run(ctx context.Context, host string, remotePath string) *executor.HostResult {
	result := &executor.HostResult{Host: host}

	client, err := dialHost(ctx, r.baseConf, r.hostConfs, host)
	if err != nil {
		result.Err = err
		return result
	}
	defer client.Close()

	result.Stdout, result.Err = client.ReadFile(ctx, remotePath)
	return result
}

func dialHost(ctx context.Context, baseConf ClientConfig, hostConfs map[string]HostConfig, host string) (*Client, error) {
	conf, dialTarget := resolveHostConf(baseConf, hostConfs, host)
	client, err := Dial(ctx, dialTarget, conf)
	if err != nil {
		return nil, WrapConnectError(host, fmt.Errorf("connect: %w", err))
	}
	return client, nil
}

// resolveHostConf applies host's overrides on top of baseConf and returns
// the address to dial.
func resolveHostConf(baseConf ClientConfig, hostConfs map[string]HostConfig, host string) (ClientConfig, string) {
	conf := baseConf
	dialTarget := host

	hc, ok := hostConfs[host]
	if !ok {
		return conf, dialTarget
	}
	if hc.Hostname != "" {
		dialTarget = hc.Hostname
	}
	if hc.User != "" {
		conf.User = hc.User
	}
	if hc.Port != 0 {
		conf.Port = hc.Port
	}
	if hc.IdentityFile != "" {
		conf.IdentityFiles = append([]string{hc.IdentityFile}, conf.IdentityFiles...)
	}
	return conf, dialTarget
}

package ssh

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// ClientConfig holds options for creating an SSH client.
type ClientConfig struct {
	// User overrides the SSH username. If empty, resolved from
	// ~/.ssh/config or the current OS user.
	User string

	// Port overrides the SSH port. If zero, resolved from
	// ~/.ssh/config or defaults to 22.
	Port int

	// IdentityFiles lists explicit private key paths to try.
	// If empty, resolved from ~/.ssh/config and default key locations.
	IdentityFiles []string

	// AcceptUnknownHosts skips known_hosts verification.
	AcceptUnknownHosts bool

	// HostKeyCallback overrides the default host key verification.
	HostKeyCallback ssh.HostKeyCallback
}

// Client wraps an SSH connection to a single host.
type Client struct {
	host      string
	sshClient *ssh.Client
}

// Dial connects to host using agent, key file and known_hosts settings
// resolved from conf and ~/.ssh/config.
func Dial(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	addr, user, authMethods := resolveConnection(host, conf)

	hostKeyCallback, err := resolveHostKeyCallback(conf)
	if err != nil {
		return nil, fmt.Errorf("host key callback: %w", err)
	}

	sshConf := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := newClientConn(ctx, conn, addr, sshConf)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &Client{
		host:      host,
		sshClient: ssh.NewClient(sshConn, chans, reqs),
	}, nil
}

// RunCommand executes command and returns stdout, stderr and the exit code.
// A non-zero exit is not an error: ping exits 1 when probes are lost but
// its output is still wanted.
func (c *Client) RunCommand(ctx context.Context, command string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.sshClient.NewSession()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	var outBuf, errBuf safeBuffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, nil, -1, ctx.Err()
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitStatus(), nil
			}
			return outBuf.Bytes(), errBuf.Bytes(), -1, err
		}
		return outBuf.Bytes(), errBuf.Bytes(), 0, nil
	}
}

// ReadFile downloads a remote file over SFTP.
func (c *Client) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	sftpClient, err := sftp.NewClient(c.sshClient)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}
	defer sftpClient.Close()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		f, err := sftpClient.Open(remotePath)
		if err != nil {
			done <- result{err: fmt.Errorf("open remote file: %w", err)}
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			err = fmt.Errorf("read remote file: %w", err)
		}
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		sftpClient.Close()
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

// Close closes the underlying SSH connection.
func (c *Client) Close() error {
	return c.sshClient.Close()
}

// Host returns the hostname this client is connected to.
func (c *Client) Host() string {
	return c.host
}

// newClientConn performs the SSH handshake with context cancellation.
func newClientConn(ctx context.Context, conn net.Conn, addr string, config *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
	type result struct {
		conn  ssh.Conn
		chans <-chan ssh.NewChannel
		reqs  <-chan *ssh.Request
		err   error
	}

	done := make(chan result, 1)
	go func() {
		c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
		done <- result{c, chans, reqs, err}
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		return nil, nil, nil, ctx.Err()
	case r := <-done:
		return r.conn, r.chans, r.reqs, r.err
	}
}

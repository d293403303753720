package ssh

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ConnectError wraps an SSH connection error with a hint for the operator.
type ConnectError struct {
	Host string
	Err  error
	Hint string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %v (hint: %s)", e.Host, e.Err, e.Hint)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// WrapConnectError attaches a hint to err when it matches a known failure.
// Other errors are returned unchanged.
func WrapConnectError(host string, err error) error {
	if err == nil {
		return nil
	}
	if hint := connectHint(host, err); hint != "" {
		return &ConnectError{Host: host, Err: err, Hint: hint}
	}
	return err
}

func connectHint(host string, err error) string {
	msg := err.Error()

	var keyErr *knownhosts.KeyError
	var dnsErr *net.DNSError
	var authErr *ssh.ServerAuthError

	switch {
	case errors.As(err, &keyErr) && len(keyErr.Want) > 0:
		return fmt.Sprintf("host key changed; remove the old key with: ssh-keygen -R %s", host)
	case strings.Contains(msg, "no known_hosts") || strings.Contains(msg, "knownhosts"):
		return fmt.Sprintf("use --insecure or connect once with: ssh %s", host)
	case errors.As(err, &authErr),
		strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return fmt.Sprintf("verify your SSH key or agent. Try: ssh -v %s", host)
	case strings.Contains(msg, "connection refused"):
		return "verify the SSH daemon is running on the target host"
	case errors.As(err, &dnsErr), strings.Contains(msg, "no such host"):
		return "verify the hostname is correct"
	}
	return ""
}

package ssh

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	sshconfig "github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/agent462/pingcsv/internal/pathutil"
)

// resolveConnection builds the dial address, user and auth chain for host.
// Explicit conf values win over ~/.ssh/config, which wins over defaults.
func resolveConnection(host string, conf ClientConfig) (addr, user string, methods []ssh.AuthMethod) {
	user = conf.User
	if user == "" {
		user = sshconfig.Get(host, "User")
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		user = "root"
	}

	port := conf.Port
	if port == 0 {
		if p, err := strconv.Atoi(sshconfig.Get(host, "Port")); err == nil {
			port = p
		}
	}
	if port <= 0 {
		port = 22
	}

	addr = net.JoinHostPort(host, strconv.Itoa(port))
	return addr, user, buildAuthMethods(host, conf)
}

// buildAuthMethods orders auth as agent first, then key files.
func buildAuthMethods(host string, conf ClientConfig) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if agentAuth := agentAuthMethod(); agentAuth != nil {
		methods = append(methods, agentAuth)
	}

	keyFiles := conf.IdentityFiles
	if len(keyFiles) == 0 {
		keyFiles = resolveKeyFiles(host)
	}
	for _, keyFile := range keyFiles {
		if signer := loadKeySigner(keyFile); signer != nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}
	return methods
}

// sharedAgent is a process-wide SSH agent connection, redialled if it
// goes stale.
var sharedAgent struct {
	mu     sync.Mutex
	conn   net.Conn
	client agent.ExtendedAgent
}

// CloseAgent closes the shared SSH agent connection, if any.
func CloseAgent() {
	sharedAgent.mu.Lock()
	defer sharedAgent.mu.Unlock()
	if sharedAgent.conn != nil {
		sharedAgent.conn.Close()
		sharedAgent.client = nil
		sharedAgent.conn = nil
	}
}

// agentAuthMethod returns nil when no agent is reachable or it holds no keys.
func agentAuthMethod() ssh.AuthMethod {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}

	sharedAgent.mu.Lock()
	defer sharedAgent.mu.Unlock()

	if sharedAgent.client == nil {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil
		}
		sharedAgent.conn = conn
		sharedAgent.client = agent.NewClient(conn)
	}

	keys, err := sharedAgent.client.List()
	if err != nil {
		sharedAgent.conn.Close()
		sharedAgent.client = nil
		sharedAgent.conn = nil
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(sharedAgent.client.Signers)
}

// resolveKeyFiles returns the IdentityFile from ~/.ssh/config followed by
// whichever default keys exist.
func resolveKeyFiles(host string) []string {
	var files []string

	if identity := sshconfig.Get(host, "IdentityFile"); identity != "" {
		expanded := pathutil.ExpandHome(identity)
		if _, err := os.Stat(expanded); err == nil {
			files = append(files, expanded)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return files
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		f := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	return files
}

func loadKeySigner(path string) ssh.Signer {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return signer
}

func resolveHostKeyCallback(conf ClientConfig) (ssh.HostKeyCallback, error) {
	if conf.HostKeyCallback != nil {
		return conf.HostKeyCallback, nil
	}
	if conf.AcceptUnknownHosts {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	knownHostsPath := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no known_hosts file found at %s; use --insecure to skip host key verification", knownHostsPath)
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return callback, nil
}

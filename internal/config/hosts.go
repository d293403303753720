package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"

	"github.com/agent462/pingcsv/internal/pathutil"
)

// Host is a collection target with its SSH connection details.
type Host struct {
	Name         string // as given, e.g. "admin@pi-2"; also names the capture file
	Hostname     string // host to dial
	User         string
	Port         int
	IdentityFile string
}

// ResolveHosts combines the hosts of a config group with hosts named on the
// command line. Group hosts come first; duplicates are dropped.
func ResolveHosts(cfg *Config, groupName string, cliHosts []string) ([]Host, error) {
	if groupName == "" && len(cliHosts) == 0 {
		return nil, fmt.Errorf("no hosts specified: provide a group (-g) or host names as arguments")
	}

	var names []string
	var groupUser string

	if groupName != "" {
		group, ok := cfg.Groups[groupName]
		if !ok {
			if len(cfg.Groups) == 0 {
				return nil, fmt.Errorf("group %q not found (no groups defined)", groupName)
			}
			available := make([]string, 0, len(cfg.Groups))
			for name := range cfg.Groups {
				available = append(available, name)
			}
			sort.Strings(available)
			return nil, fmt.Errorf("group %q not found (available: %s)", groupName, strings.Join(available, ", "))
		}
		names = append(names, group.Hosts...)
		groupUser = group.User
	}

	all := append(names, cliHosts...)
	seen := make(map[string]bool, len(all))
	unique := make([]string, 0, len(all))
	for _, n := range all {
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}

	hosts := make([]Host, 0, len(unique))
	for _, name := range unique {
		host := Host{Name: name, Hostname: name, Port: 22}
		if user, hostname, ok := parseUserAtHost(name); ok {
			host.User = user
			host.Hostname = hostname
		}
		if groupUser != "" {
			host.User = groupUser
		}
		MergeSSHConfig(&host)
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// MergeSSHConfig fills User, Port and IdentityFile from ~/.ssh/config when
// they are not already set.
func MergeSSHConfig(host *Host) {
	lookup := host.Hostname
	if lookup == "" {
		lookup = host.Name
	}

	if host.User == "" {
		host.User = sshConfigGet(lookup, "User")
	}

	if host.Port == 22 {
		if portStr := sshConfigGet(lookup, "Port"); portStr != "" {
			if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
				host.Port = port
			}
		}
	}

	if host.IdentityFile == "" {
		if identity := sshConfigGet(lookup, "IdentityFile"); identity != "" {
			expanded := pathutil.ExpandHome(identity)
			if _, err := os.Stat(expanded); err == nil {
				host.IdentityFile = expanded
			}
		}
	}
}

func sshConfigGet(hostname, key string) string {
	val, err := ssh_config.GetStrict(hostname, key)
	if err != nil {
		return ""
	}
	return val
}

// parseUserAtHost splits "user@host". It fails when there is no "@" or the
// user part is empty.
func parseUserAtHost(s string) (user, host string, ok bool) {
	i := strings.Index(s, "@")
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

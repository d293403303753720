package config

import (
	"strings"
	"testing"
)

// isolateSSHConfig points HOME at an empty directory so the user's
// ~/.ssh/config cannot influence resolution.
func isolateSSHConfig(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func hostNames(hosts []Host) []string {
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name
	}
	return names
}

func TestResolveHostsFromGroup(t *testing.T) {
	isolateSSHConfig(t)
	cfg := DefaultConfig()
	cfg.Groups["lab"] = Group{Hosts: []string{"pi-1", "pi-2", "pi-3"}}

	hosts, err := ResolveHosts(cfg, "lab", nil)
	if err != nil {
		t.Fatalf("ResolveHosts error: %v", err)
	}
	if got := strings.Join(hostNames(hosts), ","); got != "pi-1,pi-2,pi-3" {
		t.Errorf("hosts = %s", got)
	}
	for _, h := range hosts {
		if h.Port != 22 {
			t.Errorf("%s: port = %d, want 22", h.Name, h.Port)
		}
	}
}

func TestResolveHostsMergesGroupAndCLI(t *testing.T) {
	isolateSSHConfig(t)
	cfg := DefaultConfig()
	cfg.Groups["web"] = Group{Hosts: []string{"web-01", "web-02"}}

	hosts, err := ResolveHosts(cfg, "web", []string{"web-02", "web-03", "web-03"})
	if err != nil {
		t.Fatalf("ResolveHosts error: %v", err)
	}
	if got := strings.Join(hostNames(hosts), ","); got != "web-01,web-02,web-03" {
		t.Errorf("hosts = %s, want web-01,web-02,web-03", got)
	}
}

func TestResolveHostsErrors(t *testing.T) {
	cfg := DefaultConfig()

	if _, err := ResolveHosts(cfg, "", nil); err == nil {
		t.Error("expected error when no hosts specified")
	}

	_, err := ResolveHosts(cfg, "missing", nil)
	if err == nil || !strings.Contains(err.Error(), "no groups defined") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Groups["b"] = Group{Hosts: []string{"x"}}
	cfg.Groups["a"] = Group{Hosts: []string{"y"}}
	_, err = ResolveHosts(cfg, "missing", nil)
	if err == nil || !strings.Contains(err.Error(), "available: a, b") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolveHostsUserAtHost(t *testing.T) {
	isolateSSHConfig(t)
	hosts, err := ResolveHosts(DefaultConfig(), "", []string{"admin@router"})
	if err != nil {
		t.Fatalf("ResolveHosts error: %v", err)
	}
	h := hosts[0]
	if h.Name != "admin@router" || h.Hostname != "router" || h.User != "admin" {
		t.Errorf("host = %+v", h)
	}
}

func TestResolveHostsGroupUserOverrides(t *testing.T) {
	isolateSSHConfig(t)
	cfg := DefaultConfig()
	cfg.Groups["lab"] = Group{Hosts: []string{"admin@pi-1", "pi-2"}, User: "pi"}

	hosts, err := ResolveHosts(cfg, "lab", nil)
	if err != nil {
		t.Fatalf("ResolveHosts error: %v", err)
	}
	for _, h := range hosts {
		if h.User != "pi" {
			t.Errorf("%s: user = %q, want pi", h.Name, h.User)
		}
	}
}

func TestParseUserAtHost(t *testing.T) {
	tests := []struct {
		in         string
		user, host string
		ok         bool
	}{
		{"admin@router", "admin", "router", true},
		{"router", "", "", false},
		{"@router", "", "", false},
	}
	for _, tt := range tests {
		user, host, ok := parseUserAtHost(tt.in)
		if user != tt.user || host != tt.host || ok != tt.ok {
			t.Errorf("parseUserAtHost(%q) = %q, %q, %v", tt.in, user, host, ok)
		}
	}
}

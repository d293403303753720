package collect

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	gossh "golang.org/x/crypto/ssh"

	"github.com/agent462/pingcsv/internal/config"
	"github.com/agent462/pingcsv/internal/executor"
	"github.com/agent462/pingcsv/internal/ssh"
	"github.com/agent462/pingcsv/internal/sshtest"
)

type stubRunner map[string]*executor.HostResult

func (s stubRunner) Run(ctx context.Context, host string, request string) *executor.HostResult {
	if r, ok := s[host]; ok {
		return r
	}
	<-ctx.Done()
	return &executor.HostResult{Err: ctx.Err()}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCollectWritesCaptures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	runner := stubRunner{
		"pi-1":       {Stdout: []byte("PING pi-1\n")},
		"admin@pi-2": {Stdout: []byte("PING pi-2\n"), ExitCode: 1},
	}

	c := New(runner, dir, WithLogger(quietLogger()))
	report, err := c.Collect(context.Background(), []string{"pi-1", "admin@pi-2"}, "ping -c 4 8.8.8.8")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(report.Saved) != 2 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}

	want := map[string]string{
		"pi-1.txt":       "PING pi-1\n",
		"admin_pi-2.txt": "PING pi-2\n",
	}
	for name, content := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", name, data, content)
		}
	}
	if report.Saved[1].Path != filepath.Join(dir, "admin_pi-2.txt") {
		t.Errorf("saved path = %q", report.Saved[1].Path)
	}
}

func TestCollectPartialFailure(t *testing.T) {
	dir := t.TempDir()
	runner := stubRunner{
		"ok":    {Stdout: []byte("PING ok\n")},
		"down":  {Err: errors.New("connection refused")},
		"empty": {ExitCode: 2},
	}

	c := New(runner, dir, WithLogger(quietLogger()), WithTimeout(50*time.Millisecond))
	report, err := c.Collect(context.Background(), []string{"ok", "down", "empty", "slow"}, "x")
	if err != nil {
		t.Fatalf("one saved host should not fail the run: %v", err)
	}
	if len(report.Saved) != 1 || report.Saved[0].Host != "ok" {
		t.Errorf("saved = %+v", report.Saved)
	}
	if len(report.Failed) != 2 {
		t.Errorf("failed = %d, want 2", len(report.Failed))
	}
	if len(report.TimedOut) != 1 || report.TimedOut[0].Host != "slow" {
		t.Errorf("timed out = %+v", report.TimedOut)
	}
	if report.Total() != 4 {
		t.Errorf("Total() = %d, want 4", report.Total())
	}
	for _, r := range report.Failed {
		if r.Host == "empty" && r.Err == nil {
			t.Error("empty capture should carry an error")
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "down.txt")); !os.IsNotExist(err) {
		t.Error("no file should be written for a failed host")
	}
}

func TestCollectAllFailed(t *testing.T) {
	runner := stubRunner{"a": {Err: errors.New("boom")}}
	report, err := New(runner, t.TempDir(), WithLogger(quietLogger())).Collect(context.Background(), []string{"a"}, "x")
	if !errors.Is(err, ErrAllHostsFailed) {
		t.Fatalf("expected ErrAllHostsFailed, got %v", err)
	}
	if report == nil || len(report.Failed) != 1 {
		t.Errorf("report should still list failures, got %+v", report)
	}
}

func TestCollectNoHosts(t *testing.T) {
	if _, err := New(stubRunner{}, t.TempDir()).Collect(context.Background(), nil, "x"); err == nil {
		t.Fatal("expected error for empty host list")
	}
}

func TestPingCommand(t *testing.T) {
	if got := PingCommand("8.8.8.8", 4); got != "ping -c 4 8.8.8.8" {
		t.Errorf("PingCommand = %q", got)
	}
}

func TestHostConfigs(t *testing.T) {
	hosts := []config.Host{
		{Name: "admin@pi-2", Hostname: "pi-2", User: "admin", Port: 2222, IdentityFile: "/k"},
	}
	confs := HostConfigs(hosts)
	got, ok := confs["admin@pi-2"]
	if !ok {
		t.Fatal("host config not keyed by name")
	}
	want := ssh.HostConfig{Hostname: "pi-2", User: "admin", Port: 2222, IdentityFile: "/k"}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCollectOverSSH(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	pubKey, keyPath := sshtest.GenerateKey(t)
	addr, cleanup := sshtest.Start(t,
		sshtest.WithPublicKey(pubKey),
		sshtest.WithSFTP(),
		sshtest.WithCmdHandler(func(cmd string) (string, string, int) {
			if !strings.HasPrefix(cmd, "ping -c 2 ") {
				return "", "unexpected command", 127
			}
			return "PING " + strings.TrimPrefix(cmd, "ping -c 2 ") + "\n", "", 0
		}),
	)
	defer cleanup()

	host, port := sshtest.ParseAddr(t, addr)
	hosts := []config.Host{{Name: "lab-1", Hostname: host, Port: port}}
	base := ssh.ClientConfig{
		User:            "tester",
		IdentityFiles:   []string{keyPath},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
	}

	dir := t.TempDir()
	runner := NewRunner(ModeCommand, base, hosts)
	if _, err := New(runner, dir, WithLogger(quietLogger())).Collect(context.Background(), []string{"lab-1"}, PingCommand("8.8.8.8", 2)); err != nil {
		t.Fatalf("command collect: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "lab-1.txt"))
	if err != nil || string(data) != "PING 8.8.8.8\n" {
		t.Fatalf("command capture = %q, %v", data, err)
	}

	remote := filepath.Join(t.TempDir(), "last-ping.txt")
	if err := os.WriteFile(remote, []byte("PING from file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fileDir := t.TempDir()
	runner = NewRunner(ModeFile, base, hosts)
	if _, err := New(runner, fileDir, WithLogger(quietLogger())).Collect(context.Background(), []string{"lab-1"}, filepath.ToSlash(remote)); err != nil {
		t.Fatalf("file collect: %v", err)
	}
	data, err = os.ReadFile(filepath.Join(fileDir, "lab-1.txt"))
	if err != nil || string(data) != "PING from file\n" {
		t.Fatalf("file capture = %q, %v", data, err)
	}
}

func TestCollectCaptureNameClash(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	var mu sync.Mutex
	runner := runnerFunc(func(ctx context.Context, host string, request string) *executor.HostResult {
		mu.Lock()
		calls = append(calls, host)
		mu.Unlock()
		return &executor.HostResult{Stdout: []byte("PING " + host + "\n")}
	})

	report, err := New(runner, dir, WithLogger(quietLogger())).Collect(context.Background(), []string{"a@b", "a_b", "A_B", "c"}, "x")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if len(report.Saved) != 2 || report.Saved[0].Host != "a@b" || report.Saved[1].Host != "c" {
		t.Errorf("saved = %+v", report.Saved)
	}
	if len(report.Failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(report.Failed))
	}
	for _, r := range report.Failed {
		if r.Err == nil || !strings.Contains(r.Err.Error(), "already used by host a@b") {
			t.Errorf("%s: err = %v", r.Host, r.Err)
		}
	}
	if len(calls) != 2 {
		t.Errorf("clashing hosts should not be contacted, runner called for %v", calls)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a_b.txt"))
	if err != nil || string(data) != "PING a@b\n" {
		t.Errorf("a_b.txt = %q, %v; want the first host's capture", data, err)
	}
}

type runnerFunc func(ctx context.Context, host string, request string) *executor.HostResult

func (f runnerFunc) Run(ctx context.Context, host string, request string) *executor.HostResult {
	return f(ctx, host, request)
}

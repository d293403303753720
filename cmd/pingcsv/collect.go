package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent462/pingcsv/internal/collect"
	"github.com/agent462/pingcsv/internal/config"
	"github.com/agent462/pingcsv/internal/discover"
	"github.com/agent462/pingcsv/internal/pathutil"
	"github.com/agent462/pingcsv/internal/ssh"
)

type collectOptions struct {
	group              string
	dir                string
	target             string
	count              int
	command            string
	remoteFile         string
	concurrency        int
	timeout            time.Duration
	user               string
	identity           string
	acceptUnknownHosts bool
	scan               string
	scanPort           int
}

func newCollectCmd(global *globalOptions) *cobra.Command {
	opts := &collectOptions{}

	cmd := &cobra.Command{
		Use:   "collect [HOST...]",
		Short: "Gather ping captures from hosts over SSH",
		Long: `collect runs ping on each host over SSH, or downloads an existing capture
with --remote-file, and saves the output to <dir>/<host>.txt ready for
conversion. Hosts come from the arguments and/or a config group (-g).

A host that fails is reported and skipped; the command fails only when no
capture was saved.`,
		Example: `  pingcsv collect -g lab --target 8.8.8.8
  pingcsv collect pi-1 admin@pi-2 --count 10 --target example.com
  pingcsv collect -g lab --remote-file /var/log/ping.txt
  pingcsv collect --scan 192.168.1.0/24 --target 8.8.8.8 -u pi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.setup()
			if err != nil {
				return err
			}
			return runCollect(cmd, global, opts, cfg, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.group, "group", "g", "", "host group from the config file")
	f.StringVar(&opts.dir, "dir", "", "directory for captures (default \"data\" beside the executable)")
	f.StringVar(&opts.target, "target", "", "ping destination")
	f.IntVarP(&opts.count, "count", "c", 4, "echo requests per host")
	f.StringVar(&opts.command, "command", "", "remote command to run instead of ping -c COUNT TARGET")
	f.StringVar(&opts.remoteFile, "remote-file", "", "download this capture over SFTP instead of running a command")
	f.IntVar(&opts.concurrency, "concurrency", 20, "hosts contacted at once")
	f.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-host timeout")
	f.StringVarP(&opts.user, "user", "u", "", "SSH user (default from ~/.ssh/config)")
	f.StringVarP(&opts.identity, "identity", "i", "", "SSH private key file")
	f.BoolVar(&opts.acceptUnknownHosts, "accept-unknown-hosts", false, "skip known_hosts verification")
	f.StringVar(&opts.scan, "scan", "", "also collect from every host in this IPv4 CIDR with an open SSH port")
	f.IntVar(&opts.scanPort, "scan-port", 22, "port probed by --scan")
	cmd.MarkFlagsMutuallyExclusive("command", "remote-file")

	return cmd
}

// applyCollectFlags overrides config values with flags the user set.
func applyCollectFlags(cmd *cobra.Command, opts *collectOptions, c *config.Collect) {
	flags := cmd.Flags()
	if flags.Changed("target") {
		c.Target = opts.target
	}
	if flags.Changed("count") {
		c.Count = opts.count
	}
	if flags.Changed("command") {
		c.Command = opts.command
		c.RemoteFile = ""
	}
	if flags.Changed("remote-file") {
		c.RemoteFile = opts.remoteFile
		c.Command = ""
	}
	if flags.Changed("concurrency") {
		c.Concurrency = opts.concurrency
	}
	if flags.Changed("timeout") {
		c.Timeout = config.Duration{Duration: opts.timeout}
	}
}

// collectRequest picks the runner mode and the request sent to every host.
func collectRequest(c config.Collect) (collect.Mode, string, error) {
	switch {
	case c.RemoteFile != "":
		return collect.ModeFile, c.RemoteFile, nil
	case c.Command != "":
		return collect.ModeCommand, c.Command, nil
	case c.Target != "":
		if c.Count <= 0 {
			return 0, "", fmt.Errorf("count must be positive, got %d", c.Count)
		}
		return collect.ModeCommand, collect.PingCommand(c.Target, c.Count), nil
	}
	return 0, "", fmt.Errorf("nothing to collect: set --target, --command or --remote-file")
}

func runCollect(cmd *cobra.Command, global *globalOptions, opts *collectOptions, cfg *config.Config, args []string) error {
	applyCollectFlags(cmd, opts, &cfg.Collect)
	if err := cfg.Validate(); err != nil {
		return err
	}

	mode, request, err := collectRequest(cfg.Collect)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	var scanned map[string]bool
	if opts.scan != "" {
		scanner := discover.NewScanner()
		scanner.Port = opts.scanPort
		found, err := scanner.Scan(ctx, opts.scan)
		if err != nil {
			return err
		}
		if len(found) == 0 && opts.group == "" && len(args) == 0 {
			return fmt.Errorf("no SSH hosts found in %s", opts.scan)
		}
		scanned = make(map[string]bool, len(found))
		for _, addr := range found {
			scanned[addr] = true
		}
		args = append(args, found...)
	}

	hosts, err := config.ResolveHosts(cfg, opts.group, args)
	if err != nil {
		return err
	}
	names := make([]string, len(hosts))
	for i, h := range hosts {
		names[i] = h.Name
		if opts.user != "" {
			hosts[i].User = opts.user
		}
		if scanned[h.Name] {
			hosts[i].Port = opts.scanPort
		}
	}

	dir := opts.dir
	if dir == "" {
		if dir, err = pathutil.DefaultDataDir(); err != nil {
			return err
		}
	}
	dir = pathutil.ExpandHome(dir)

	base := ssh.ClientConfig{AcceptUnknownHosts: opts.acceptUnknownHosts}
	if opts.identity != "" {
		base.IdentityFiles = []string{pathutil.ExpandHome(opts.identity)}
	}
	defer ssh.CloseAgent()

	c := collect.New(collect.NewRunner(mode, base, hosts), dir,
		collect.WithConcurrency(cfg.Collect.Concurrency),
		collect.WithTimeout(cfg.Collect.Timeout.Duration),
	)
	report, err := c.Collect(ctx, names, request)
	if report != nil {
		global.printer().Report(report)
	}
	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agent462/pingcsv/internal/config"
	"github.com/agent462/pingcsv/internal/convert"
	"github.com/agent462/pingcsv/internal/delimited"
	"github.com/agent462/pingcsv/internal/textenc"
	"github.com/agent462/pingcsv/internal/ui/console"
	"github.com/agent462/pingcsv/internal/ui/preview"
)

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
	noColor    bool
}

func (g *globalOptions) printer() *console.Printer {
	return console.New(os.Stdout, os.Stderr, g.noColor)
}

// setup configures logging and loads the config file.
func (g *globalOptions) setup() (*config.Config, error) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:    g.noColor || !console.IsTerminal(os.Stderr),
		DisableTimestamp: true,
	})
	logrus.SetLevel(logrus.WarnLevel)
	if g.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if g.configPath != "" {
		return config.Load(g.configPath)
	}
	return config.LoadDefault()
}

type convertOptions struct {
	output    string
	delimiter string
	encoding  string
	noHeader  bool
	quoteAll  bool
	preview   bool
}

func newRootCmd() (*cobra.Command, *globalOptions) {
	global := &globalOptions{}
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "pingcsv [DATA_DIR]",
		Short: "Combine ping captures into one delimited table",
		Long: `pingcsv reads every *.txt file in DATA_DIR, each holding the output of one
ping run (Windows or Unix format), and writes a table with one column per
file to result.csv in the parent of DATA_DIR.

DATA_DIR defaults to the "data" directory beside the executable. An existing
output file is never overwritten; a timestamped name is used instead.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.setup()
			if err != nil {
				return err
			}
			var dataDir string
			if len(args) == 1 {
				dataDir = args[0]
			}
			return runConvert(cmd, global, opts, cfg, dataDir)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&global.configPath, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	pf.BoolVarP(&global.verbose, "verbose", "v", false, "log parse and collect details")
	pf.BoolVar(&global.noColor, "no-color", false, "disable coloured output")

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file path (default <DATA_DIR>/../result.csv)")
	f.StringVar(&opts.delimiter, "delimiter", ",", "field delimiter, a single character")
	f.StringVar(&opts.encoding, "encoding", "", "input and output encoding: utf-8, utf-8-bom or shift_jis (default depends on platform)")
	f.BoolVar(&opts.noHeader, "no-header", false, "omit the header row")
	f.BoolVar(&opts.quoteAll, "quote-all", false, "quote every field")
	f.BoolVar(&opts.preview, "preview", false, "show the written table in a scrollable view")

	cmd.AddCommand(newCollectCmd(global))
	return cmd, global
}

// applyConvertFlags overrides config values with flags the user set.
func applyConvertFlags(cmd *cobra.Command, opts *convertOptions, out *config.Output) error {
	flags := cmd.Flags()
	if flags.Changed("delimiter") {
		out.Delimiter = opts.delimiter
	}
	if flags.Changed("encoding") {
		out.Encoding = opts.encoding
	}
	if flags.Changed("no-header") {
		out.Header = !opts.noHeader
	}
	if flags.Changed("quote-all") {
		out.QuoteAll = opts.quoteAll
	}
	if _, err := textenc.Parse(out.Encoding); err != nil {
		return err
	}
	if _, err := out.DelimiterRune(); err != nil {
		return err
	}
	return nil
}

func runConvert(cmd *cobra.Command, global *globalOptions, opts *convertOptions, cfg *config.Config, dataDir string) error {
	if err := applyConvertFlags(cmd, opts, &cfg.Output); err != nil {
		return err
	}

	enc, err := textenc.Parse(cfg.Output.Encoding)
	if err != nil {
		return err
	}
	delim, err := cfg.Output.DelimiterRune()
	if err != nil {
		return err
	}

	res, err := convert.Run(convert.Options{
		DataDir:    dataDir,
		Output:     opts.output,
		OutputName: cfg.Output.File,
		Encoding:   enc,
		Writer: []delimited.Option{
			delimited.WithDelimiter(delim),
			delimited.WithHeader(cfg.Output.Header),
			delimited.WithQuoteAll(cfg.Output.QuoteAll),
		},
	})
	if err != nil {
		return err
	}

	if opts.preview {
		if !console.IsTerminal(os.Stdout) {
			logrus.Warn("--preview needs a terminal, skipping")
		} else if err := preview.Run(filepath.Base(res.Path), res.Lines); err != nil {
			return err
		}
	}

	global.printer().Success(res.Path)
	return nil
}


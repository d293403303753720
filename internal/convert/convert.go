// Package convert turns a directory of ping captures into one delimited
// table.
package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/agent462/pingcsv/internal/delimited"
	"github.com/agent462/pingcsv/internal/pathutil"
	"github.com/agent462/pingcsv/internal/pinglog"
	"github.com/agent462/pingcsv/internal/table"
	"github.com/agent462/pingcsv/internal/textenc"
)

var (
	// ErrDataDirNotFound is returned when the capture directory is missing.
	ErrDataDirNotFound = errors.New("data directory not found")
	// ErrNoInputFiles is returned when the capture directory holds no .txt files.
	ErrNoInputFiles = errors.New("no .txt files found")
)

// DefaultOutputName is the file written beside the data directory.
const DefaultOutputName = "result.csv"

// Options controls a conversion run.
type Options struct {
	DataDir    string // empty selects "data" beside the executable
	Output     string // explicit output path; overrides OutputName placement
	OutputName string // file name placed in the parent of DataDir
	Encoding   textenc.Encoding
	Writer     []delimited.Option
	Logger     logrus.FieldLogger
}

// Result describes a completed run.
type Result struct {
	Path  string // file written, "" when there was nothing to write
	Files []string
	Table *table.Table
	Lines []string // rendered output lines, without terminators
}

// Run parses every capture in the data directory in name order, aggregates
// them and writes the table. Nothing is written if any step fails.
func Run(opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	enc := opts.Encoding
	if enc == "" {
		enc = textenc.Default()
	}

	w, err := delimited.New(append([]delimited.Option{delimited.WithEncoding(enc)}, opts.Writer...)...)
	if err != nil {
		return nil, err
	}

	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}

	files, err := InputFiles(dataDir)
	if err != nil {
		return nil, err
	}

	entries := make([]table.Entry, 0, len(files))
	for _, path := range files {
		// Statistics cells break lines the same way the file does.
		res, dialect, err := pinglog.ParseFile(path, enc, pinglog.WithLineBreak(w.Newline()))
		if err != nil {
			return nil, err
		}
		fields := logrus.Fields{
			"file":    filepath.Base(path),
			"dialect": dialect,
			"probes":  len(res.RoundTripTimes),
		}
		if dialect == pinglog.DialectUnknown {
			log.WithFields(fields).Warn("no ping output recognized")
		} else {
			log.WithFields(fields).Debug("parsed capture")
		}
		entries = append(entries, table.Entry{Label: table.LabelFromFile(path), Result: res})
	}

	tbl, err := table.Build(entries)
	if err != nil {
		return nil, err
	}
	log.Debugf("assembled table:\n%s", tbl)

	out := OutputPath(dataDir, opts.Output, opts.OutputName)
	written, err := w.Write(out, tbl.Header, tbl.Rows)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": written, "columns": len(tbl.Header), "rows": len(tbl.Rows)}).Debug("wrote table")

	return &Result{
		Path:  written,
		Files: files,
		Table: tbl,
		Lines: w.Lines(tbl.Header, tbl.Rows),
	}, nil
}

// resolveDataDir treats an empty or blank dir as the default.
func resolveDataDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		def, err := pathutil.DefaultDataDir()
		if err != nil {
			return "", err
		}
		dir = def
	}
	dir = pathutil.ExpandHome(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrDataDirNotFound, dir)
	}
	if err != nil {
		return "", fmt.Errorf("reading data directory: %w", err)
	}
	return dir, nil
}

// InputFiles lists the *.txt files directly inside dir, sorted by name.
func InputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if ok, _ := filepath.Match("*.txt", e.Name()); !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !isFile(e, path) {
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputFiles, dir)
	}
	return files, nil
}

// isFile reports whether e is a regular file, following symlinks.
func isFile(e fs.DirEntry, path string) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// OutputPath returns explicit when set, otherwise name (default
// result.csv) in the parent of dataDir.
func OutputPath(dataDir, explicit, name string) string {
	if explicit != "" {
		return pathutil.ExpandHome(explicit)
	}
	if name == "" {
		name = DefaultOutputName
	}
	return filepath.Join(filepath.Dir(filepath.Clean(dataDir)), name)
}

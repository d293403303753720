// Package delimited writes tables as delimiter-separated text (CSV by
// default).
package delimited

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agent462/pingcsv/internal/textenc"
)

// ErrInvalidDelimiter is returned when the delimiter would make the output
// ambiguous.
var ErrInvalidDelimiter = errors.New("invalid delimiter")

const quote = '"'

// Writer serialises a header and rows of cells.
type Writer struct {
	delimiter rune
	encoding  textenc.Encoding
	header    bool
	quoteAll  bool
	newline   string
	now       func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithDelimiter sets the field separator. Default ','.
func WithDelimiter(r rune) Option {
	return func(w *Writer) { w.delimiter = r }
}

// WithEncoding sets the output encoding. Default textenc.Default().
func WithEncoding(e textenc.Encoding) Option {
	return func(w *Writer) { w.encoding = e }
}

// WithHeader controls whether the header row is written. Default true.
func WithHeader(on bool) Option {
	return func(w *Writer) { w.header = on }
}

// WithQuoteAll encloses every field in double quotes. Default false.
func WithQuoteAll(on bool) Option {
	return func(w *Writer) { w.quoteAll = on }
}

// WithNewline sets the line terminator. Default "\r\n" on Windows, "\n"
// elsewhere.
func WithNewline(s string) Option {
	return func(w *Writer) { w.newline = s }
}

// WithClock overrides the clock used for timestamped output names.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New creates a Writer, rejecting a delimiter that is a double quote, NUL,
// CR or LF.
func New(opts ...Option) (*Writer, error) {
	w := &Writer{
		delimiter: ',',
		encoding:  textenc.Default(),
		header:    true,
		newline:   defaultNewline(runtime.GOOS),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := ValidateDelimiter(w.delimiter); err != nil {
		return nil, err
	}
	return w, nil
}

// ValidateDelimiter reports whether r can separate fields.
func ValidateDelimiter(r rune) error {
	switch r {
	case quote:
		return fmt.Errorf("%w: double quote cannot be used", ErrInvalidDelimiter)
	case 0:
		return fmt.Errorf("%w: NUL cannot be used", ErrInvalidDelimiter)
	case '\r', '\n':
		return fmt.Errorf("%w: line breaks cannot be used", ErrInvalidDelimiter)
	}
	return nil
}

func defaultNewline(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Delimiter returns the configured field separator.
func (w *Writer) Delimiter() rune {
	return w.delimiter
}

// Newline returns the configured line terminator.
func (w *Writer) Newline() string {
	return w.newline
}

// Lines renders the header (if enabled) and each row, without terminators.
func (w *Writer) Lines(header []string, rows [][]string) []string {
	lines := make([]string, 0, len(rows)+1)
	if w.header {
		lines = append(lines, w.FormatRow(header))
	}
	for _, row := range rows {
		lines = append(lines, w.FormatRow(row))
	}
	return lines
}

// FormatRow joins fields with the delimiter, quoting where needed.
func (w *Writer) FormatRow(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteRune(w.delimiter)
		}
		if w.needsQuotes(f, i == 0) {
			b.WriteString(enclose(f))
		} else {
			b.WriteString(f)
		}
	}
	return b.String()
}

// needsQuotes reports whether a field must be enclosed. A leading '#' in the
// first field is quoted so spreadsheet tools don't read the row as a comment.
func (w *Writer) needsQuotes(field string, first bool) bool {
	if w.quoteAll {
		return true
	}
	if first && strings.HasPrefix(field, "#") {
		return true
	}
	return strings.ContainsRune(field, quote) ||
		strings.ContainsRune(field, w.delimiter) ||
		strings.ContainsAny(field, "\r\n")
}

func enclose(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Write renders header and rows to path and returns the path actually
// written. With no rows it does nothing and returns "". An existing file is
// never overwritten: a timestamped sibling name is used instead. Output is
// staged in a temporary file and renamed into place once complete.
func (w *Writer) Write(path string, header []string, rows [][]string) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	dest, err := AvailablePath(path, w.now())
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*")
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := w.encode(tmp, header, rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("rename to %s: %w", dest, err)
	}
	return dest, nil
}

func (w *Writer) encode(out io.Writer, header []string, rows [][]string) error {
	enc := w.encoding.NewWriter(out)
	for _, line := range w.Lines(header, rows) {
		if _, err := io.WriteString(enc, line+w.newline); err != nil {
			return err
		}
	}
	return enc.Close()
}

// AvailablePath returns path unchanged if nothing exists there, otherwise
// path with "_YYYYMMDD-HHMMSS" inserted before the extension.
func AvailablePath(path string, now time.Time) (string, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return path, nil
	}
	if err != nil {
		return "", fmt.Errorf("check output path: %w", err)
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	name := fmt.Sprintf("%s_%s%s", base, now.Format("20060102-150405"), ext)
	return filepath.Join(filepath.Dir(path), name), nil
}

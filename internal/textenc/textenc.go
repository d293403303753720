// Package textenc selects the character encoding used for ping captures and
// the generated table.
package textenc

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names a supported text encoding.
type Encoding string

const (
	UTF8     Encoding = "utf-8"
	UTF8BOM  Encoding = "utf-8-bom"
	ShiftJIS Encoding = "shift_jis"
)

// ErrUnknownEncoding is returned by Parse for unsupported names.
var ErrUnknownEncoding = errors.New("unknown encoding")

var aliases = map[string]Encoding{
	"utf-8":     UTF8,
	"utf8":      UTF8,
	"utf-8-bom": UTF8BOM,
	"utf8bom":   UTF8BOM,
	"shift_jis": ShiftJIS,
	"shift-jis": ShiftJIS,
	"sjis":      ShiftJIS,
	"cp932":     ShiftJIS,
}

// Default returns the platform encoding: Shift_JIS on Windows, where ping.exe
// writes in the legacy code page, and UTF-8 elsewhere.
func Default() Encoding {
	return defaultFor(runtime.GOOS)
}

func defaultFor(goos string) Encoding {
	if goos == "windows" {
		return ShiftJIS
	}
	return UTF8
}

// Parse resolves an encoding name. An empty name selects Default.
func Parse(name string) (Encoding, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default(), nil
	}
	enc, ok := aliases[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: utf-8, utf-8-bom, shift_jis)", ErrUnknownEncoding, name)
	}
	return enc, nil
}

func (e Encoding) String() string {
	return string(e)
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case ShiftJIS:
		return japanese.ShiftJIS
	case UTF8BOM:
		return unicode.UTF8BOM
	default:
		return unicode.UTF8
	}
}

// NewReader decodes r into UTF-8. UTF-8 input has a leading byte order mark
// removed when present.
func (e Encoding) NewReader(r io.Reader) io.Reader {
	if e == ShiftJIS {
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}
	return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
}

// NewWriter encodes UTF-8 text written to it. Characters the target encoding
// cannot represent are replaced. Close flushes buffered output but does not
// close w.
func (e Encoding) NewWriter(w io.Writer) io.WriteCloser {
	return transform.NewWriter(w, encoding.ReplaceUnsupported(e.codec().NewEncoder()))
}

// Package pinglog parses captured ping output from Windows (Japanese locale)
// and Unix-like hosts into round-trip times and a statistics summary.
package pinglog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/agent462/pingcsv/internal/textenc"
)

// Dialect identifies which ping implementation produced a capture.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectWindowsNT
	DialectUnix
)

func (d Dialect) String() string {
	switch d {
	case DialectWindowsNT:
		return "windows"
	case DialectUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// PingResult holds what was extracted from one capture.
type PingResult struct {
	HostName       string
	IPAddress      string
	RoundTripTimes []string // one token per probe line, ErrorToken for unparseable ones
	StatisticsText string
}

// Parser consumes the lines of a single capture in order. The dialect is
// fixed by the first recognised header line and never changes afterwards.
type Parser struct {
	dialect      Dialect
	inStatistics bool

	hostName  string
	ipAddress string
	times     []string
	stats     statistics
}

// Option configures a Parser.
type Option func(*Parser)

// WithLineBreak sets the separator between statistics lines. Default
// "\r\n" on Windows, "\n" elsewhere.
func WithLineBreak(s string) Option {
	return func(p *Parser) { p.stats.lineBreak = s }
}

// NewParser returns a Parser in the unknown-dialect state.
func NewParser(opts ...Option) *Parser {
	p := &Parser{stats: statistics{lineBreak: defaultLineBreak(runtime.GOOS)}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultLineBreak(goos string) string {
	if goos == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Dialect reports the dialect detected so far.
func (p *Parser) Dialect() Dialect {
	return p.dialect
}

// Feed processes one line. The line must not include its terminator.
func (p *Parser) Feed(line string) {
	switch p.dialect {
	case DialectUnknown:
		p.detect(line)
	case DialectWindowsNT:
		if p.inStatistics {
			p.windowsStatistics(line)
		} else {
			p.windowsProbe(line)
		}
	case DialectUnix:
		if p.inStatistics {
			p.unixStatistics(line)
		} else {
			p.unixProbe(line)
		}
	}
}

// Result returns the extracted data. A capture with no recognised header
// yields the zero PingResult.
func (p *Parser) Result() PingResult {
	if p.dialect == DialectUnknown {
		return PingResult{}
	}
	times := make([]string, len(p.times))
	copy(times, p.times)
	return PingResult{
		HostName:       p.hostName,
		IPAddress:      p.ipAddress,
		RoundTripTimes: times,
		StatisticsText: p.stats.String(),
	}
}

func (p *Parser) detect(line string) {
	switch {
	case strings.Contains(line, unixHeaderMarker):
		// "PING host (addr) 56(84) bytes of data."
		fields := strings.Split(line, " ")
		p.hostName = field(fields, 1)
		p.ipAddress = strings.Trim(field(fields, 2), "()")
		p.dialect = DialectUnix
	case strings.Contains(line, windowsHeaderMarker):
		m := windowsHeaderRE.FindStringSubmatch(line)
		if m == nil {
			return
		}
		p.ipAddress = m[1]
		if m[2] == "" {
			p.hostName = m[1]
		} else {
			p.hostName = strings.Trim(m[2], "[]")
		}
		p.dialect = DialectWindowsNT
	}
}

func (p *Parser) windowsProbe(line string) {
	if m := windowsReplyRE.FindStringSubmatch(line); m != nil {
		p.times = append(p.times, m[2])
		return
	}
	if strings.Contains(line, windowsStatisticsMarker) {
		p.inStatistics = true
		return
	}
	if line != "" {
		p.times = append(p.times, ErrorToken)
	}
}

func (p *Parser) windowsStatistics(line string) {
	text := strings.TrimSpace(line)
	switch {
	case strings.Contains(line, windowsPacketsMarker):
		p.stats.endLine(strings.TrimRight(text, windowsListSeparator))
	case strings.Contains(line, windowsMinimumMarker):
		p.stats.join(" " + text)
	default:
		p.stats.join(text)
	}
}

func (p *Parser) unixProbe(line string) {
	if m := unixReplyRE.FindStringSubmatch(line); m != nil {
		p.times = append(p.times, m[1])
		return
	}
	if strings.Contains(line, unixStatisticsMarker) {
		p.inStatistics = true
		return
	}
	if line != "" {
		p.times = append(p.times, ErrorToken)
	}
}

func (p *Parser) unixStatistics(line string) {
	if strings.Contains(line, unixTransmittedMarker) {
		p.stats.endLine(line)
		return
	}
	p.stats.join(line)
}

// Parse runs a fresh Parser over lines.
func Parse(lines []string, opts ...Option) PingResult {
	p := NewParser(opts...)
	for _, line := range lines {
		p.Feed(line)
	}
	return p.Result()
}

// ParseReader parses a capture from r, splitting on LF or CRLF.
func ParseReader(r io.Reader, opts ...Option) (PingResult, Dialect, error) {
	p := NewParser(opts...)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.Feed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return PingResult{}, DialectUnknown, fmt.Errorf("read capture: %w", err)
	}
	return p.Result(), p.Dialect(), nil
}

// ParseFile opens path, decodes it with enc and parses it.
func ParseFile(path string, enc textenc.Encoding, opts ...Option) (PingResult, Dialect, error) {
	f, err := os.Open(path)
	if err != nil {
		return PingResult{}, DialectUnknown, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	res, dialect, err := ParseReader(enc.NewReader(f), opts...)
	if err != nil {
		return PingResult{}, DialectUnknown, fmt.Errorf("%s: %w", path, err)
	}
	return res, dialect, nil
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

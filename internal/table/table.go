// Package table lines up parsed ping captures side by side, one column per
// capture file.
package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agent462/pingcsv/internal/pinglog"
)

// ErrNoEntries is returned by Build when there is nothing to aggregate.
var ErrNoEntries = errors.New("no ping results to aggregate")

// Entry pairs a column label with the result parsed from that capture.
type Entry struct {
	Label  string
	Result pinglog.PingResult
}

// Table is a rectangular grid: every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// LabelFromFile derives a column label from a capture file name.
func LabelFromFile(name string) string {
	return strings.ReplaceAll(filepath.Base(name), ".txt", "")
}

// Build aggregates entries in order. The first row holds "address(hostname)"
// per column, then one row per probe up to the longest capture (shorter
// columns padded with empty cells), then the statistics text.
func Build(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	probes := 0
	header := make([]string, len(entries))
	for i, e := range entries {
		header[i] = e.Label
		if n := len(e.Result.RoundTripTimes); n > probes {
			probes = n
		}
	}

	rows := make([][]string, 0, probes+2)

	target := make([]string, len(entries))
	for i, e := range entries {
		target[i] = fmt.Sprintf("%s(%s)", e.Result.IPAddress, e.Result.HostName)
	}
	rows = append(rows, target)

	// offsets[i] is the next unread probe of column i.
	offsets := make([]int, len(entries))
	for r := 0; r < probes; r++ {
		row := make([]string, len(entries))
		for i, e := range entries {
			if times := e.Result.RoundTripTimes; offsets[i] < len(times) {
				row[i] = times[offsets[i]]
				offsets[i]++
			}
		}
		rows = append(rows, row)
	}

	stats := make([]string, len(entries))
	for i, e := range entries {
		stats[i] = e.Result.StatisticsText
	}
	rows = append(rows, stats)

	return &Table{Header: header, Rows: rows}, nil
}

// String renders every row as "[header] => [cell] | ..." lines, headed by
// the list of column labels.
func (t *Table) String() string {
	var b strings.Builder
	b.WriteString("header: [" + strings.Join(t.Header, "], [") + "]\n")
	for i := range t.Rows {
		b.WriteString(t.RowString(i))
		b.WriteString("\n")
	}
	return b.String()
}

// RowString renders a single row, or "" if i is out of range.
func (t *Table) RowString(i int) string {
	if i < 0 || i >= len(t.Rows) {
		return ""
	}
	parts := make([]string, len(t.Header))
	for j, h := range t.Header {
		parts[j] = fmt.Sprintf("[%s] => [%s]", h, t.Rows[i][j])
	}
	return strings.Join(parts, " | ")
}

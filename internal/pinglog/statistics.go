package pinglog

import "strings"

// statistics assembles the trailing summary block. Some summary lines end a
// row of output, others are glued onto the row still being built.
type statistics struct {
	rows      []string
	pending   strings.Builder
	lineBreak string
}

// endLine appends text to the pending row and closes it.
func (s *statistics) endLine(text string) {
	s.pending.WriteString(text)
	s.rows = append(s.rows, s.pending.String())
	s.pending.Reset()
}

// join appends text to the pending row.
func (s *statistics) join(text string) {
	s.pending.WriteString(text)
}

// String renders closed rows followed by lineBreak each, then the pending
// row as is.
func (s *statistics) String() string {
	var b strings.Builder
	for _, row := range s.rows {
		b.WriteString(row)
		b.WriteString(s.lineBreak)
	}
	b.WriteString(s.pending.String())
	return b.String()
}

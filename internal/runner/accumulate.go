package runner

import "strings"

// Accumulator concatenates consecutive executable segments into one pending
// unit, padding with blank lines so the unit's internal line numbers match
// the document's. Failure positions then map straight back to the source
// file with no remapping table.
type Accumulator struct {
	source strings.Builder
	lines  int
}

// Append adds a segment body. absLine is the number of newlines in the
// document before the body; the gap between it and the unit's current line
// count is filled with blank lines before the body lands.
func (a *Accumulator) Append(body string, absLine int) {
	if delta := absLine - a.lines; delta > 0 {
		a.source.WriteString(strings.Repeat("\n", delta))
		a.lines += delta
	}
	a.source.WriteString(body)
	a.lines += strings.Count(body, "\n")
}

// Consume returns the accumulated unit and clears the pending state.
func (a *Accumulator) Consume() string {
	s := a.source.String()
	a.source.Reset()
	a.lines = 0
	return s
}

// Empty reports whether anything is pending.
func (a *Accumulator) Empty() bool {
	return a.source.Len() == 0
}

// Package scanner tokenizes a Markdown document into alternating plain-text
// spans and fenced code blocks. It makes a single forward pass over the raw
// text and never interprets tag semantics; classification is the runner's job.
package scanner

import (
	"strings"

	"mdrun/internal/logging"
)

const delimiter = "```"

// Fence is one fenced block located in the document.
//
// Body includes the newline that follows the tag line, and everything up to
// (but not including) the closing delimiter. Offsets are byte positions in
// the original text so the runner can recover document line numbers.
type Fence struct {
	Tag       string // lowercased text between the opening delimiter and end of line
	Body      string
	BodyStart int // byte offset of Body in the document
	Open      int // byte offset of the opening delimiter
	End       int // byte offset just past the closing delimiter
}

// Segment is one step of the scan: the plain text preceding a fence, plus
// the fence itself. The final segment of a document carries the trailing
// text and a nil Fence.
type Segment struct {
	Text  string
	Fence *Fence
}

// Scanner walks a document in the manner of bufio.Scanner: call Scan until
// it returns false, reading the current step from Segment. The sequence is
// finite, forward-only, and not restartable.
type Scanner struct {
	text string
	pos  int
	seg  Segment
	done bool

	unclosed bool
	fences   int
}

// New returns a Scanner over the full document text.
func New(text string) *Scanner {
	return &Scanner{text: text}
}

// Scan advances to the next segment. It returns false once the trailing
// segment has been consumed.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	open := strings.Index(s.text[s.pos:], delimiter)
	if open < 0 {
		return s.finish(s.text[s.pos:])
	}
	open += s.pos

	// The tag runs from the delimiter to the next line break. With no line
	// break before end of text there is nothing to scan: the dangling
	// delimiter passes through with the trailing text.
	tagEnd := strings.IndexByte(s.text[open+len(delimiter):], '\n')
	if tagEnd < 0 {
		return s.finish(s.text[s.pos:])
	}
	tag := strings.ToLower(s.text[open+len(delimiter) : open+len(delimiter)+tagEnd])
	bodyStart := open + len(delimiter) + tagEnd

	closing := strings.Index(s.text[bodyStart:], delimiter)
	if closing < 0 {
		// An opened fence that never closes. Scanning ends here; the runner
		// decides whether that is fatal.
		s.unclosed = true
		return s.finish(s.text[s.pos:])
	}
	closing += bodyStart

	s.fences++
	logging.ScanDebug("fence %d: tag=%q open=%d close=%d", s.fences, tag, open, closing)

	s.seg = Segment{
		Text: s.text[s.pos:open],
		Fence: &Fence{
			Tag:       tag,
			Body:      s.text[bodyStart:closing],
			BodyStart: bodyStart,
			Open:      open,
			End:       closing + len(delimiter),
		},
	}
	s.pos = closing + len(delimiter)
	return true
}

func (s *Scanner) finish(trailing string) bool {
	s.seg = Segment{Text: trailing}
	s.pos = len(s.text)
	s.done = true
	return true
}

// Segment returns the segment produced by the last successful Scan.
func (s *Scanner) Segment() Segment {
	return s.seg
}

// Unclosed reports whether the document ended inside an open fence, i.e. an
// opening delimiter with a tag line was never matched by a closing one.
func (s *Scanner) Unclosed() bool {
	return s.unclosed
}

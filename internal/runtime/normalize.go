package runtime

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/traefik/yaegi/interp"
)

// RedactedPath replaces anything path-looking in rendered failures so output
// is deterministic across machines and checkouts.
const RedactedPath = "my_code.go"

var (
	pathLike     = regexp.MustCompile(`\.{0,2}/[-a-zA-Z0-9_./]*[-a-zA-Z0-9_]\.(go|md)`)
	kindPrefixed = regexp.MustCompile(`^[A-Z][A-Za-z]*Error: `)
	evalPos      = regexp.MustCompile(`_\.go:(\d+)`)
)

// RedactPaths rewrites absolute and relative file paths to RedactedPath.
func RedactPaths(s string) string {
	return pathLike.ReplaceAllString(s, RedactedPath)
}

// relocate re-points interpreter diagnostics at the document. Eval sources
// carry the interpreter's placeholder file name, and a statement source is
// wrapped in a synthetic function whose closing brace sits one line past the
// source, so an unclosed construct errors there. Positions beyond the source
// are pulled back to its last line holding content.
func relocate(msg, path, src string) string {
	total := strings.Count(src, "\n") + 1
	return evalPos.ReplaceAllStringFunc(msg, func(m string) string {
		n, err := strconv.Atoi(m[len("_.go:"):])
		if err != nil {
			return m
		}
		if n > total {
			n = lastContentLine(src)
		}
		return path + ":" + strconv.Itoa(n)
	})
}

func lastContentLine(src string) int {
	lines := strings.Split(src, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i + 1
		}
	}
	return 1
}

// asPanic extracts an interpreter panic from an execution error.
func asPanic(err error) (interp.Panic, bool) {
	var p interp.Panic
	if errors.As(err, &p) {
		return p, true
	}
	var pp *interp.Panic
	if errors.As(err, &pp) && pp != nil {
		return *pp, true
	}
	return interp.Panic{}, false
}

// Normalize renders a structured execution failure as the single display
// string substituted into the document: "<Kind>: <message>", path-redacted,
// prefixed by any output captured before the fault.
func Normalize(e *ExecError) string {
	line := RedactPaths(describe(e))
	if e.Output != "" {
		return e.Output + "Traceback ...\n" + line
	}
	return line
}

func describe(e *ExecError) string {
	if p, ok := asPanic(e.Err); ok {
		switch v := p.Value.(type) {
		case error:
			// A named error type carries its own kind. Anonymous errors
			// either embed one in the message ("ValueError: boom") or get
			// the generic prefix.
			if name := exportedTypeName(v); name != "" {
				return name + ": " + v.Error()
			}
			if kindPrefixed.MatchString(v.Error()) {
				return v.Error()
			}
			return "error: " + v.Error()
		case string:
			return "panic: " + v
		default:
			return fmt.Sprintf("panic: %v", v)
		}
	}
	if e.Kind == KindParse {
		return "ParseError: " + e.Err.Error()
	}
	return "RuntimeError: " + e.Err.Error()
}

func exportedTypeName(v interface{}) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return ""
	}
	return name
}

// FormatTrace renders a failure for the default (non-structured) mode: the
// message plus a stack filtered down to frames at or below the document, so
// interpreter plumbing never reaches the author.
func FormatTrace(path string, err error) string {
	if p, ok := asPanic(err); ok {
		return fmt.Sprintf("panic: %v\n\n%s", RedactPaths(fmt.Sprint(p.Value)), filterStack(p.Stack, path))
	}
	return RedactPaths(err.Error()) + "\n"
}

func filterStack(stack []byte, path string) string {
	lines := strings.Split(string(stack), "\n")

	// Everything before the first frame naming the document is harness
	// machinery (parsing, compiling, dispatching) and gets dropped.
	for i, line := range lines {
		if strings.Contains(line, path) {
			return strings.Join(lines[i:], "\n")
		}
	}

	// No frame names the document (interpreted frames carry no file). Drop
	// the interpreter's own frames instead.
	var out []string
	skipLoc := false
	for _, line := range lines {
		if strings.HasPrefix(line, "\t") {
			if skipLoc {
				skipLoc = false
				continue
			}
		} else if harnessFrame(line) {
			skipLoc = true
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func harnessFrame(line string) bool {
	return strings.Contains(line, "github.com/traefik/yaegi/") ||
		strings.Contains(line, "mdrun/internal/")
}

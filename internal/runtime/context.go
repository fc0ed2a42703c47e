// Package runtime executes Go source fragments against a single persistent
// interpreter namespace, capturing their output per call. It wraps the Yaegi
// interpreter rather than compiling with the go toolchain: literate snippets
// are evaluated REPL-style so definitions from one block are visible to the
// next, and a block is never a complete program.
package runtime

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"mdrun/internal/logging"
)

// Context is one document's execution namespace plus the capability bindings
// installed into it. Create one per document path; definitions and side
// effects persist across every segment run against it.
type Context struct {
	interp  *interp.Interpreter
	sink    *switchWriter // stdout-side: print, pprint, help, builtins
	errSink *switchWriter
	rng     *rand.Rand
	disarm  func() // cancels the watchdog when the debugger starts
}

// Options configures a new Context.
type Options struct {
	// Seed seeds the rng capability so snippet randomness is reproducible.
	Seed int64

	// DisarmWatchdog is invoked when a snippet enters the interactive
	// debugger, so user think-time is not killed mid-session. May be nil.
	DisarmWatchdog func()
}

// NewContext builds a fresh interpreter namespace with the stdlib loaded and
// the capability bindings (print, pprint, debug, help, debugger, rng)
// dot-imported so snippets call them unqualified.
func NewContext(opts Options) (*Context, error) {
	c := &Context{
		sink:    newSwitchWriter(os.Stdout),
		errSink: newSwitchWriter(os.Stderr),
		rng:     rand.New(rand.NewSource(opts.Seed)),
		disarm:  opts.DisarmWatchdog,
	}

	c.interp = interp.New(interp.Options{
		Stdin:  os.Stdin,
		Stdout: c.sink,
		Stderr: c.errSink,
	})
	if err := c.interp.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}

	exports := interp.Exports{
		"mdrun/caps/caps": {
			"print":    reflect.ValueOf(c.capPrint),
			"pprint":   reflect.ValueOf(c.capPprint),
			"debug":    reflect.ValueOf(c.capDebug),
			"help":     reflect.ValueOf(c.capHelp),
			"debugger": reflect.ValueOf(c.capDebugger),
			"rng":      reflect.ValueOf(c.rng),
		},
	}
	if err := c.interp.Use(exports); err != nil {
		return nil, fmt.Errorf("failed to bind capabilities: %w", err)
	}
	if _, err := c.interp.Eval(`import . "mdrun/caps"`); err != nil {
		return nil, fmt.Errorf("failed to import capabilities: %w", err)
	}

	return c, nil
}

// RunSegment evaluates source against the persistent namespace and returns
// the captured output. The capture buffer is bound for exactly the duration
// of the call; the sink is restored on every exit path.
//
// The interpreter evaluates a declaration list or a statement list per call,
// never both, so the source is cut into chunks at the top level and each
// chunk is re-padded to its line before evaluation. Failure positions then
// still map straight back to the document.
//
// In structured mode a failure comes back as an *ExecError carrying any
// partial output, for caller-side rendering. In the default mode a filtered,
// path-redacted trace is printed to stderr as well, since the failure is
// about to kill the document pass and the author needs the context.
func (c *Context) RunSegment(path, source string, structured bool) (string, error) {
	timer := logging.StartTimer(logging.CategoryExec, "segment")
	defer timer.Stop()

	buf := new(bytes.Buffer)
	prev := c.sink.Swap(buf)
	defer c.sink.Swap(prev)

	var err error
	for _, ch := range splitUnit(source) {
		padded := strings.Repeat("\n", ch.line-1) + ch.src
		if _, err = c.interp.Eval(padded); err != nil {
			if _, ok := asPanic(err); !ok {
				err = errors.New(relocate(err.Error(), path, padded))
			}
			break
		}
	}
	if err == nil {
		return buf.String(), nil
	}

	partial := buf.String()
	execErr := &ExecError{Kind: classify(err), Output: partial, Err: err}
	logging.ExecError("%s: %v", path, execErr)

	// Output captured before the fault surfaces on stderr on any failure,
	// expected or not.
	if partial != "" {
		fmt.Fprint(c.errSink, partial)
	}
	if structured {
		return "", execErr
	}
	fmt.Fprint(c.errSink, FormatTrace(path, err))
	return "", execErr
}

func classify(err error) Kind {
	if _, ok := asPanic(err); ok {
		return KindRuntime
	}
	return KindParse
}

// capPrint replaces fmt-style printing for snippets; it writes to the
// capture buffer instead of standard output.
func (c *Context) capPrint(args ...interface{}) {
	fmt.Fprintln(c.sink, args...)
}

// capPprint pretty-prints values to the capture buffer at a fixed maximum
// line width, matching the fixed-width rendering of the target document.
func (c *Context) capPprint(args ...interface{}) {
	for _, v := range args {
		fmt.Fprintln(c.sink, prettyFormat(v))
	}
}

// capDebug writes to the real error stream so debug traces never pollute
// captured output.
func (c *Context) capDebug(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
}

// capHelp resolves documentation for an identifier (e.g. "fmt.Println") and
// writes it to the capture buffer.
func (c *Context) capHelp(topic string) {
	out, err := exec.Command("go", "doc", topic).CombinedOutput()
	if err != nil && len(out) == 0 {
		fmt.Fprintf(c.sink, "help: %v\n", err)
		return
	}
	c.sink.Write(out)
}

// capDebugger drops into an interpreter REPL sharing the document namespace.
// The watchdog is disarmed first and the session is bound to the real
// terminal streams.
func (c *Context) capDebugger() {
	if c.disarm != nil {
		c.disarm()
	}
	prev := c.sink.Swap(os.Stderr)
	defer c.sink.Swap(prev)
	c.interp.REPL()
}

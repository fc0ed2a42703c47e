package runtime

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/traefik/yaegi/interp"
)

// LookupError is a named error type whose name doubles as the failure kind.
type LookupError struct{ msg string }

func (e LookupError) Error() string { return e.msg }

func TestRedactPaths(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"open /home/user/project/thing.go failed", "open my_code.go failed"},
		{"see ./docs/chapter.md for details", "see my_code.go for details"},
		{"also ../lib/util.go there", "also my_code.go there"},
		{"no paths here", "no paths here"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RedactPaths(tc.in))
	}
}

func TestNormalizeKindEmbeddedInMessage(t *testing.T) {
	e := &ExecError{
		Kind: KindRuntime,
		Err:  interp.Panic{Value: errors.New("ValueError: boom")},
	}
	assert.Equal(t, "ValueError: boom", Normalize(e))
}

func TestNormalizeNamedErrorType(t *testing.T) {
	e := &ExecError{
		Kind: KindRuntime,
		Err:  interp.Panic{Value: LookupError{msg: "no such key"}},
	}
	assert.Equal(t, "LookupError: no such key", Normalize(e))
}

func TestNormalizeAnonymousError(t *testing.T) {
	e := &ExecError{
		Kind: KindRuntime,
		Err:  interp.Panic{Value: errors.New("plain failure")},
	}
	assert.Equal(t, "error: plain failure", Normalize(e))
}

func TestNormalizeStringPanic(t *testing.T) {
	e := &ExecError{
		Kind: KindRuntime,
		Err:  interp.Panic{Value: "boom"},
	}
	assert.Equal(t, "panic: boom", Normalize(e))
}

func TestNormalizeParseFailure(t *testing.T) {
	e := &ExecError{
		Kind: KindParse,
		Err:  errors.New("4:2: expected operand"),
	}
	assert.Equal(t, "ParseError: 4:2: expected operand", Normalize(e))
}

func TestNormalizePrefixesPartialOutput(t *testing.T) {
	e := &ExecError{
		Kind:   KindRuntime,
		Output: "got this far\n",
		Err:    interp.Panic{Value: errors.New("ValueError: boom")},
	}
	assert.Equal(t, "got this far\nTraceback ...\nValueError: boom", Normalize(e))
}

func TestNormalizeRedactsPathsInMessage(t *testing.T) {
	e := &ExecError{
		Kind: KindRuntime,
		Err:  interp.Panic{Value: fmt.Errorf("ValueError: cannot open /tmp/data/input.md")},
	}
	assert.Equal(t, "ValueError: cannot open my_code.go", Normalize(e))
}

func TestNormalizeHostError(t *testing.T) {
	_, osErr := os.Open("/definitely/not/there/file.go")
	e := &ExecError{
		Kind: KindRuntime,
		Err:  interp.Panic{Value: osErr},
	}
	got := Normalize(e)
	assert.Contains(t, got, "PathError: ")
	assert.Contains(t, got, RedactedPath)
}

func TestRelocateRenamesEvalSource(t *testing.T) {
	got := relocate("_.go:2:5: undefined: g", "doc.md", "\nprint(g())\n")
	assert.Equal(t, "doc.md:2:5: undefined: g", got)
}

func TestRelocatePullsSyntheticBraceBack(t *testing.T) {
	// The wrapped statement source closes with a brace one line past the
	// source; a failure there belongs on the last content line.
	got := relocate("_.go:5:1: expected operand, found '}'", "doc.md", "\n\n\nbogus(")
	assert.Equal(t, "doc.md:4:1: expected operand, found '}'", got)
}

func TestRelocateLeavesOtherTextAlone(t *testing.T) {
	got := relocate("no positions here", "doc.md", "x\n")
	assert.Equal(t, "no positions here", got)
}

func TestFilterStackKeepsFramesFromDocument(t *testing.T) {
	stack := []byte("goroutine 1 [running]:\n" +
		"mdrun/internal/runtime.run(...)\n" +
		"\t/src/mdrun/internal/runtime/context.go:10 +0x10\n" +
		"main.snippet(...)\n" +
		"\t/home/user/book/chapter.md:42 +0x20\n")
	got := filterStack(stack, "chapter.md")
	assert.NotContains(t, got, "internal/runtime")
	assert.Contains(t, got, "chapter.md:42")
}

func TestFilterStackDropsHarnessFramesWithoutDocumentMatch(t *testing.T) {
	stack := []byte("goroutine 1 [running]:\n" +
		"github.com/traefik/yaegi/interp.runCfg(...)\n" +
		"\t/go/pkg/mod/github.com/traefik/yaegi/interp/run.go:100 +0x10\n" +
		"runtime.main(...)\n" +
		"\t/usr/local/go/src/runtime/proc.go:250 +0x20\n")
	got := filterStack(stack, "chapter.md")
	assert.NotContains(t, got, "yaegi")
	assert.Contains(t, got, "runtime.main")
}

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mdrun/internal/logging"
)

// Subprocess invokes an out-of-process runtime, feeding it source on stdin.
// It runs synchronously; the only preemption is the document watchdog.
type Subprocess struct {
	Argv []string
}

// Run executes source under the subprocess runtime and returns its standard
// output. A launch failure or non-zero exit is a subprocess failure, fatal
// to the document pass.
func (s Subprocess) Run(ctx context.Context, source string) (string, error) {
	if len(s.Argv) == 0 {
		return "", &ExecError{Kind: KindSubprocess, Err: errors.New("no runtime command configured")}
	}

	logging.SubprocDebug("run %v (%d bytes of source)", s.Argv, len(source))
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%s: %w: %s", s.Argv[0], err, detail)
		} else {
			err = fmt.Errorf("%s: %w", s.Argv[0], err)
		}
		return "", &ExecError{Kind: KindSubprocess, Err: err}
	}
	return stdout.String(), nil
}

// Diagnose feeds source to a runtime that parses without executing and
// returns the last non-empty line of its diagnostic stream; the preceding
// lines are traceback context the document does not want. A non-zero exit is
// expected here (the source is supposed to be broken); only a failure to
// launch is an error.
func (s Subprocess) Diagnose(ctx context.Context, source string) (string, error) {
	if len(s.Argv) == 0 {
		return "", &ExecError{Kind: KindSubprocess, Err: errors.New("no probe command configured")}
	}

	logging.SubprocDebug("diagnose %v (%d bytes of source)", s.Argv, len(source))
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Stdin = strings.NewReader(source)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", &ExecError{Kind: KindSubprocess, Err: fmt.Errorf("%s: %w", s.Argv[0], err)}
	}

	out := strings.Trim(stderr.String(), "\n")
	if out == "" {
		return "", nil
	}
	parts := strings.Split(out, "\n")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.TrimSpace(parts[i]) != "" {
			return parts[i], nil
		}
	}
	return "", nil
}

// Package runner drives one document pass: it routes each fenced block to
// its handling policy, accumulates executable source between output blocks,
// and produces the rewritten document as a forward-only fragment stream.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mdrun/internal/logging"
	"mdrun/internal/runtime"
	"mdrun/internal/scanner"
)

// Block tags. Anything else (including the empty tag) is an output
// placeholder.
const (
	tagGo          = "go"
	tagException   = "go-exception"
	tagLegacy      = "go-legacy"
	tagSyntaxError = "go-syntax-error"
	includePrefix  = "go-include:"
)

// legacyMarker is prefixed to go-legacy bodies that lack it, so rendered
// documents always label the dialect.
const legacyMarker = "\n// legacy runtime"

// ErrMalformedDocument reports a document that ends inside an open fence.
// Guessing a repair would silently drop or execute the wrong text, so the
// pass fails instead.
var ErrMalformedDocument = errors.New("document ends inside an unclosed fence")

// Options configures a document pass.
type Options struct {
	// RootDir resolves go-include: targets.
	RootDir string

	// Legacy is the out-of-process runtime for go-legacy blocks.
	Legacy runtime.Subprocess

	// Syntax is the parse-only probe for go-syntax-error blocks.
	Syntax runtime.Subprocess
}

// Runner holds the state of a single pass over one document. It is good for
// exactly one Rewrite call.
type Runner struct {
	path string
	text string
	exec *runtime.Context
	opts Options

	pending       Accumulator
	pendingOutput string
	runID         string
	done          bool
}

// New prepares a pass over the document text. The execution context carries
// the persistent namespace; it must be fresh for this path.
func New(path, text string, exec *runtime.Context, opts Options) *Runner {
	return &Runner{
		path:  path,
		text:  text,
		exec:  exec,
		opts:  opts,
		runID: uuid.NewString(),
	}
}

// Rewrite walks the document and hands the rewritten fragments to emit in
// order. Fragments concatenate to the final document text. On the first
// unrecovered failure the walk stops and the error propagates; emitted
// fragments up to that point are the caller's problem (the buffered
// overwrite mode discards them).
func (r *Runner) Rewrite(ctx context.Context, emit func(string) error) error {
	if r.done {
		return errors.New("runner already consumed")
	}
	r.done = true

	logging.Rewrite("run %s: pass over %s (%d bytes)", r.runID, r.path, len(r.text))
	timer := logging.StartTimer(logging.CategoryRewrite, "document pass")
	defer timer.Stop()

	e := &emitter{emit: emit}
	s := scanner.New(r.text)
	for s.Scan() {
		seg := s.Segment()
		if seg.Fence == nil {
			if s.Unclosed() {
				return fmt.Errorf("%s: %w", r.path, ErrMalformedDocument)
			}
			e.write(seg.Text)
			break
		}
		e.write(seg.Text)
		if err := r.routeFence(ctx, e, seg.Fence); err != nil {
			return err
		}
		if e.err != nil {
			return e.err
		}
	}
	if e.err != nil {
		return e.err
	}

	// Trailing code with no output block after it still gets validated;
	// its output is discarded.
	if !r.pending.Empty() {
		logging.RewriteDebug("run %s: validating trailing source", r.runID)
		if _, err := r.exec.RunSegment(r.path, r.pending.Consume(), false); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) routeFence(ctx context.Context, e *emitter, f *scanner.Fence) error {
	switch {
	case f.Tag == tagGo, f.Tag == tagException:
		return r.routeSource(ctx, e, f)
	case f.Tag == tagLegacy:
		return r.routeLegacy(ctx, e, f)
	case f.Tag == tagSyntaxError:
		return r.routeSyntaxError(ctx, e, f)
	case strings.HasPrefix(f.Tag, includePrefix):
		return r.routeInclude(e, f)
	default:
		return r.routeOutput(e, f)
	}
}

// routeSource accumulates executable source. The fence is re-emitted
// verbatim; nothing runs until an output block or end of document, except
// for expected-failure blocks which run immediately.
func (r *Runner) routeSource(ctx context.Context, e *emitter, f *scanner.Fence) error {
	// Run any unrelated pending source first so an unexpected failure there
	// propagates instead of being swallowed into this block's result.
	if f.Tag == tagException && !r.pending.Empty() {
		out, err := r.exec.RunSegment(r.path, r.pending.Consume(), false)
		if err != nil {
			return err
		}
		r.pendingOutput += out
	}

	lineOffset := strings.Count(r.text[:f.BodyStart], "\n")
	r.pending.Append(f.Body, lineOffset)
	logging.RewriteDebug("run %s: accumulated %q block at line %d", r.runID, f.Tag, lineOffset+1)

	e.write("```" + f.Tag)
	e.write(f.Body)
	e.write("```")

	if f.Tag == tagException {
		result, err := r.runExpectedFailure()
		if err != nil {
			return err
		}
		r.pendingOutput += result
	}
	return nil
}

// runExpectedFailure executes the whole pending unit in structured-failure
// mode. A classified failure is the expected outcome and becomes the
// normalized result text; clean output is used as-is.
func (r *Runner) runExpectedFailure() (string, error) {
	out, err := r.exec.RunSegment(r.path, r.pending.Consume(), true)
	if err == nil {
		return out, nil
	}
	var execErr *runtime.ExecError
	if errors.As(err, &execErr) {
		return runtime.Normalize(execErr), nil
	}
	return "", err
}

func (r *Runner) routeLegacy(ctx context.Context, e *emitter, f *scanner.Fence) error {
	e.write("```" + tagLegacy)
	if !strings.HasPrefix(f.Body, legacyMarker) {
		e.write(legacyMarker)
	}
	e.write(f.Body)
	e.write("```")

	out, err := r.opts.Legacy.Run(ctx, f.Body)
	if err != nil {
		return fmt.Errorf("%s: legacy block: %w", r.path, err)
	}
	r.pendingOutput += out
	return nil
}

func (r *Runner) routeSyntaxError(ctx context.Context, e *emitter, f *scanner.Fence) error {
	e.write("```" + tagSyntaxError)
	e.write(f.Body)
	e.write("```")

	diag, err := r.opts.Syntax.Diagnose(ctx, f.Body)
	if err != nil {
		return fmt.Errorf("%s: syntax-error block: %w", r.path, err)
	}
	r.pendingOutput += diag
	return nil
}

// routeInclude substitutes a file's contents into the fence. No execution,
// no accumulator, no namespace access.
func (r *Runner) routeInclude(e *emitter, f *scanner.Fence) error {
	rel := strings.TrimPrefix(f.Tag, includePrefix)
	full := filepath.Join(r.opts.RootDir, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		return &runtime.ExecError{Kind: runtime.KindInclude, Err: fmt.Errorf("%s: %w", r.path, err)}
	}
	logging.RewriteDebug("run %s: included %s (%d bytes)", r.runID, full, len(data))

	e.write("```" + f.Tag + "\n")
	e.write("// " + filepath.Base(rel) + "\n")
	e.write(strings.TrimSpace(string(data)))
	e.write("\n```")
	return nil
}

// routeOutput rewrites an output placeholder. Pending source runs now and
// its output becomes the content; with nothing pending and no pending
// result, the block's prior content survives untouched (draft tolerance).
func (r *Runner) routeOutput(e *emitter, f *scanner.Fence) error {
	if !r.pending.Empty() {
		out, err := r.exec.RunSegment(r.path, r.pending.Consume(), false)
		if err != nil {
			return err
		}
		r.pendingOutput += out
	} else if r.pendingOutput == "" {
		r.pendingOutput = f.Body
	}

	e.write("```" + f.Tag + "\n")
	e.write(strings.Trim(r.pendingOutput, "\n"))
	e.write("\n```")

	r.pendingOutput = ""
	return nil
}

package runner

import (
	"bytes"
	"context"
	"io"
	"os"

	"mdrun/internal/logging"
)

// emitter wraps the fragment callback with a sticky error so routing code
// reads straight through.
type emitter struct {
	emit func(string) error
	err  error
}

func (e *emitter) write(frag string) {
	if e.err != nil {
		return
	}
	e.err = e.emit(frag)
}

// Stream runs the pass and writes fragments to w as they are produced.
func Stream(ctx context.Context, r *Runner, w io.Writer) error {
	return r.Rewrite(ctx, func(frag string) error {
		_, err := io.WriteString(w, frag)
		return err
	})
}

// Render runs the pass and returns the rewritten document text.
func Render(ctx context.Context, r *Runner) (string, error) {
	var buf bytes.Buffer
	if err := Stream(ctx, r, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Overwrite runs the pass fully buffered and only then replaces the source
// file, so a failure anywhere in the pass leaves it byte-for-byte untouched.
func Overwrite(ctx context.Context, r *Runner) error {
	path := r.path
	text, err := Render(ctx, r)
	if err != nil {
		return err
	}
	logging.Rewrite("overwriting %s (%d bytes)", path, len(text))
	return os.WriteFile(path, []byte(text), 0644)
}

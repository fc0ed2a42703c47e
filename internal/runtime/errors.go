package runtime

import "fmt"

// Kind classifies an execution failure.
type Kind int

const (
	// KindParse means the source fragment did not compile.
	KindParse Kind = iota
	// KindRuntime means the fragment compiled but failed while running.
	KindRuntime
	// KindInclude means a go-include: target was missing or unreadable.
	KindInclude
	// KindSubprocess means an out-of-process runtime failed to launch or
	// exited abnormally.
	KindSubprocess
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindRuntime:
		return "runtime"
	case KindInclude:
		return "include"
	case KindSubprocess:
		return "subprocess"
	default:
		return "unknown"
	}
}

// ExecError is a classified execution failure. Output holds whatever the
// segment captured before the fault, so callers can surface it for context.
type ExecError struct {
	Kind   Kind
	Output string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

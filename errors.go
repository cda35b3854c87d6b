package pake

import (
	"errors"
	"strings"
)

// Failure kinds surfaced by the engine. Match with errors.Is.
var (
	ErrNoRule            = errors.New("no rule matches target")
	ErrMissingSource     = errors.New("file does not exist and there is no rule to create it")
	ErrOutOfRoot         = errors.New("target cannot be outside the engine root")
	ErrCycle             = errors.New("dependency cycle detected")
	ErrRecipeFailed      = errors.New("recipe failed")
	ErrTargetNotProduced = errors.New("recipe ran successfully but did not create the file")
	ErrInvalidResult     = errors.New("virtual recipe returned a value that is not JSON-encodable")
	ErrRegistryFrozen    = errors.New("rules cannot be registered after the first build")
	ErrDuplicateRule     = errors.New("a rule for this target is already registered")
	ErrInterrupted       = errors.New("interrupted")
)

// Error is a build failure tied to a target. It wraps one of the sentinel
// kinds above plus, for recipe failures, the underlying cause.
type Error struct {
	Kind   error
	Target string
	Chain  []string // populated for ErrCycle
	Cause  error
}

// Error renders the single-line form "<canonical_target>: <message>".
func (e *Error) Error() string {
	var b strings.Builder
	if e.Target != "" {
		b.WriteString(e.Target)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if len(e.Chain) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Chain, " -> "))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Exit codes for the command-line surface.
const (
	ExitOK          = 0
	ExitBuildFailed = 1
	ExitUsage       = 2
	ExitInterrupted = 3
)

// ExitCode maps an error from Build to its exit code category: 0 success,
// 1 build failure, 2 usage or registry error, 3 interrupted.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, ErrNoRule),
		errors.Is(err, ErrOutOfRoot),
		errors.Is(err, ErrCycle),
		errors.Is(err, ErrRegistryFrozen),
		errors.Is(err, ErrDuplicateRule):
		return ExitUsage
	default:
		return ExitBuildFailed
	}
}

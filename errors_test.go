package pake

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorRendering(t *testing.T) {
	t.Parallel()

	e := &Error{Kind: ErrMissingSource, Target: "./x.in"}
	if got := e.Error(); got != "./x.in: file does not exist and there is no rule to create it" {
		t.Fatalf("message = %q", got)
	}

	cause := fmt.Errorf("exit status 2")
	e = &Error{Kind: ErrRecipeFailed, Target: "./a.o", Cause: cause}
	if got := e.Error(); got != "./a.o: recipe failed: exit status 2" {
		t.Fatalf("message = %q", got)
	}

	e = &Error{Kind: ErrCycle, Target: "a", Chain: []string{"a", "b", "a"}}
	if got := e.Error(); got != "a: dependency cycle detected: a -> b -> a" {
		t.Fatalf("message = %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("boom")
	err := error(&Error{Kind: ErrRecipeFailed, Target: "t", Cause: cause})
	if !errors.Is(err, ErrRecipeFailed) {
		t.Fatal("does not match its kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("does not match its cause")
	}
}

func TestExitCodes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{&Error{Kind: ErrMissingSource, Target: "x"}, ExitBuildFailed},
		{&Error{Kind: ErrRecipeFailed, Target: "x"}, ExitBuildFailed},
		{&Error{Kind: ErrTargetNotProduced, Target: "x"}, ExitBuildFailed},
		{&Error{Kind: ErrInvalidResult, Target: "x"}, ExitBuildFailed},
		{&Error{Kind: ErrNoRule, Target: "x"}, ExitUsage},
		{&Error{Kind: ErrOutOfRoot, Target: "x"}, ExitUsage},
		{&Error{Kind: ErrCycle, Target: "x"}, ExitUsage},
		{&Error{Kind: ErrRegistryFrozen, Target: "x"}, ExitUsage},
		{&Error{Kind: ErrDuplicateRule, Target: "x"}, ExitUsage},
		{&Error{Kind: ErrInterrupted, Target: "x"}, ExitInterrupted},
		{fmt.Errorf("anything else"), ExitBuildFailed},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

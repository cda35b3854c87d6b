// Package shell provides helpers for recipes that spawn commands or write
// files. The engine core never shells out; recipes do, and these helpers keep
// that ergonomic and safe.
//
// Dynamic values should be passed to Shell as environment variables rather
// than interpolated into the command string; the shell then handles quoting.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
)

// maxStderrBytes caps the amount of stderr retained for error messages.
const maxStderrBytes = 64 * 1024

// Run executes a program and waits for it. Stdout and stderr flow through to
// the caller's; on failure the error carries a capped stderr tail.
func Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	tail := &capped{limit: maxStderrBytes}
	cmd.Stderr = io.MultiWriter(os.Stderr, tail)

	if err := cmd.Run(); err != nil {
		return cmdError(name, err, tail)
	}
	return nil
}

// Output executes a program and returns its stdout.
func Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	tail := &capped{limit: maxStderrBytes}
	cmd.Stderr = tail

	out, err := cmd.Output()
	if err != nil {
		return nil, cmdError(name, err, tail)
	}
	return out, nil
}

// Shell runs a command string under $SHELL -c (fallback /bin/sh) in dir,
// with extra environment variables appended to the current environment. An
// empty dir means the current directory.
func Shell(ctx context.Context, dir, command string, env map[string]string) error {
	cmd := exec.CommandContext(ctx, shellPath(), "-c", command)
	cmd.Dir = dir
	cmd.Env = mergedEnv(env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	tail := &capped{limit: maxStderrBytes}
	cmd.Stderr = io.MultiWriter(os.Stderr, tail)

	if err := cmd.Run(); err != nil {
		return cmdError(command, err, tail)
	}
	return nil
}

// ShellOutput runs a command string under the shell in dir and returns its
// stdout.
func ShellOutput(ctx context.Context, dir, command string, env map[string]string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, shellPath(), "-c", command)
	cmd.Dir = dir
	cmd.Env = mergedEnv(env)
	tail := &capped{limit: maxStderrBytes}
	cmd.Stderr = tail

	out, err := cmd.Output()
	if err != nil {
		return nil, cmdError(command, err, tail)
	}
	return out, nil
}

func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

func mergedEnv(env map[string]string) []string {
	out := os.Environ()
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// capped is a writer that keeps at most limit bytes, discarding the rest.
type capped struct {
	buf   bytes.Buffer
	limit int
}

func (c *capped) Write(p []byte) (int, error) {
	n := len(p)
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		c.buf.Write(p)
	}
	return n, nil
}

func cmdError(name string, err error, tail *capped) error {
	if tail.buf.Len() > 0 {
		return fmt.Errorf("%s: %w\n%s", name, err, bytes.TrimSpace(tail.buf.Bytes()))
	}
	return fmt.Errorf("%s: %w", name, err)
}

// Write writes data to path, creating parent directories as needed.
func Write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteString writes s to path with a trailing newline.
func WriteString(path, s string) error {
	return Write(path, append([]byte(s), '\n'))
}

// Find returns all paths under root whose slash form matches the regex in
// full. Paths are reported relative to root with a leading "./", in lexical
// walk order.
func Find(root, pattern string) ([]string, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}

	var out []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := "./" + filepath.ToSlash(rel)
		if re.MatchString(name) || re.MatchString(filepath.ToSlash(rel)) {
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

package pake

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"hello.txt", "./hello.txt"},
		{"./hello.txt", "./hello.txt"},
		{"dir/../hello.txt", "./hello.txt"},
		{"./a/./b", "./a/b"},
		{"a//b", "./a/b"},
		{".", "./."},
	}
	for _, c := range cases {
		got, err := normalizePath("/tmp/root", c.in)
		if err != nil {
			t.Errorf("normalizePath(%q) error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("normalizePath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePathRejectsEscapes(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"..", "../x", "a/../../x"} {
		_, err := normalizePath("/tmp/root", in)
		if !errors.Is(err, ErrOutOfRoot) {
			t.Errorf("normalizePath(%q) err = %v, want ErrOutOfRoot", in, err)
		}
	}
}

func TestNormalizePathAbsoluteInsideRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	got, err := normalizePath(root, filepath.Join(root, "sub", "file.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "./sub/file.txt" {
		t.Fatalf("got %q, want ./sub/file.txt", got)
	}

	if _, err := normalizePath(root, filepath.Join(root, "..", "outside.txt")); !errors.Is(err, ErrOutOfRoot) {
		t.Fatalf("absolute path outside root: err = %v, want ErrOutOfRoot", err)
	}
}

func TestTargetPath(t *testing.T) {
	t.Parallel()
	got := targetPath("/work", "./a/b.txt")
	if got != filepath.Join("/work", "a", "b.txt") {
		t.Fatalf("targetPath = %q", got)
	}
}

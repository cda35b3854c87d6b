package hash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileDigestStable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("Hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d1, err := File(p)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	d2, err := File(p)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digest not stable: %s vs %s", d1, d2)
	}

	// SHA-256 of "Hello".
	want := "185f8db32271fe25f561a6fc938b2e264306ec304eda518007d1764826381969"
	if d1 != want {
		t.Fatalf("unexpected digest: got %s want %s", d1, want)
	}
}

func TestFileDigestSurvivesRename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d1, err := File(p)
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	p2 := filepath.Join(dir, "b.txt")
	if err := os.Rename(p, p2); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	d2, err := File(p2)
	if err != nil {
		t.Fatalf("File after rename: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("rename changed content digest: %s vs %s", d1, d2)
	}
}

func TestDirDigestTracksEntryNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "one"), []byte("1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d1, err := File(dir)
	if err != nil {
		t.Fatalf("File(dir): %v", err)
	}

	// Changing a file's contents does not change the directory digest.
	if err := os.WriteFile(filepath.Join(dir, "one"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d2, err := File(dir)
	if err != nil {
		t.Fatalf("File(dir): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("content change altered directory digest")
	}

	// Adding an entry does.
	if err := os.WriteFile(filepath.Join(dir, "two"), []byte("2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d3, err := File(dir)
	if err != nil {
		t.Fatalf("File(dir): %v", err)
	}
	if d1 == d3 {
		t.Fatalf("new entry did not alter directory digest")
	}
}

func TestFileMissing(t *testing.T) {
	t.Parallel()

	_, err := File(filepath.Join(t.TempDir(), "nope"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestBrokenSymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(filepath.Join(dir, "gone"), link); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if _, err := File(link); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist for broken symlink, got %v", err)
	}
}

func TestCanonicalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    any
		b    any
		same bool
	}{
		{name: "key order", a: map[string]any{"a": 1, "b": 2}, b: map[string]any{"b": 2, "a": 1}, same: true},
		{name: "different values", a: map[string]any{"a": 1}, b: map[string]any{"a": 2}, same: false},
		{name: "null", a: nil, b: nil, same: true},
		{name: "arrays ordered", a: []any{1, 2}, b: []any{2, 1}, same: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ca, err := CanonicalJSON(tt.a)
			if err != nil {
				t.Fatalf("CanonicalJSON(a): %v", err)
			}
			cb, err := CanonicalJSON(tt.b)
			if err != nil {
				t.Fatalf("CanonicalJSON(b): %v", err)
			}
			if (ca == cb) != tt.same {
				t.Fatalf("equality mismatch: %q vs %q", ca, cb)
			}
		})
	}
}

func TestNormalizeJSONWhitespace(t *testing.T) {
	t.Parallel()

	c1, err := NormalizeJSON([]byte(`{ "b" : 1,   "a": [1, 2] }`))
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}
	c2, err := NormalizeJSON([]byte(`{"a":[1,2],"b":1}`))
	if err != nil {
		t.Fatalf("NormalizeJSON: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("whitespace changed canonical form: %q vs %q", c1, c2)
	}
}

func TestInputSigOrderSensitive(t *testing.T) {
	t.Parallel()

	s1 := InputSig("exact", "./a", [][2]string{{"x", "1"}, {"y", "2"}})
	s2 := InputSig("exact", "./a", [][2]string{{"y", "2"}, {"x", "1"}})
	if s1 == s2 {
		t.Fatalf("dependency order should affect the signature")
	}

	s3 := InputSig("exact", "./a", [][2]string{{"x", "1"}, {"y", "2"}})
	if s1 != s3 {
		t.Fatalf("signature not deterministic")
	}

	// Field boundaries matter: ("ab","c") != ("a","bc").
	s4 := InputSig("exact", "./a", [][2]string{{"ab", "c"}})
	s5 := InputSig("exact", "./a", [][2]string{{"a", "bc"}})
	if s4 == s5 {
		t.Fatalf("length prefixing failed to disambiguate fields")
	}
}

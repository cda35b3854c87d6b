package pake

import (
	"path"
	"path/filepath"
	"strings"
)

// normalizePath maps a raw file target to its canonical form: the lexically
// normalized root-relative path with a leading "./". The "./" prefix
// disambiguates file targets from virtual names. "."/".." segments resolve
// lexically, never through the filesystem; a path that escapes the engine
// root is rejected.
func normalizePath(root, name string) (string, error) {
	s := filepath.ToSlash(name)

	if path.IsAbs(s) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(absRoot, filepath.FromSlash(s))
		if err != nil {
			return "", &Error{Kind: ErrOutOfRoot, Target: name}
		}
		s = filepath.ToSlash(rel)
	}

	cleaned := path.Clean(s)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", &Error{Kind: ErrOutOfRoot, Target: name}
	}
	return "./" + cleaned, nil
}

// targetPath maps a canonical target back to a filesystem path under root.
func targetPath(root, canonical string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(canonical, "./")))
}

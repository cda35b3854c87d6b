// Package hash computes the content digests that drive invalidation.
//
// File contents hash with SHA-256 so digests are stable across runs and
// platforms. Directories hash shallowly: the sorted immediate entry names,
// one per line, without recursion or metadata. Input signatures (the digest
// of a rule's identity plus its dependency results) use BLAKE3 with
// length-prefixed fields to avoid ambiguity.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// File computes the content digest of the file or directory at path,
// rendered as a lowercase hex string. Symlinks are followed; a broken link
// reports the underlying not-exist error.
func File(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return dirDigest(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// dirDigest hashes the sorted immediate entry names of a directory, one per
// line. Subdirectory contents are not hashed: a directory digest tracks the
// set of names, not their contents.
func dirDigest(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, e := range entries {
		io.WriteString(h, e.Name())
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalJSON encodes v as canonical JSON: object keys sorted, no
// insignificant whitespace, number literals preserved. Semantically equal
// values encode to equal strings.
func CanonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return NormalizeJSON(raw)
}

// NormalizeJSON re-encodes raw JSON text into canonical form.
func NormalizeJSON(raw []byte) (string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return "", fmt.Errorf("trailing data after json value")
	}

	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// InputSig digests a rule invocation: the rule kind, its identity (canonical
// target, pattern source, or virtual name), and the ordered dependency
// (name, result) pairs. Returned as a lowercase hex string.
func InputSig(kind, identity string, deps [][2]string) string {
	h := blake3.New()
	writeField(h, kind)
	writeField(h, identity)
	for _, d := range deps {
		writeField(h, d[0])
		writeField(h, d[1])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	w.Write(n[:])
	io.WriteString(w, s)
}

package pake

import (
	"encoding/json"

	"github.com/pakebuild/pake/internal/hash"
)

// ResultKind tags the three result variants a target can record.
type ResultKind int

const (
	// KindAbsent marks a rule that ran but declined to produce a comparable
	// result. Absent compares unequal to everything, including itself.
	KindAbsent ResultKind = iota
	// KindFile is a content digest of a file or directory listing.
	KindFile
	// KindJSON is any JSON-representable value, held in canonical encoding.
	KindJSON
)

// NoResult can be returned from a virtual recipe to record an Absent result,
// which keeps all dependents permanently dirty.
var NoResult = noResult{}

type noResult struct{}

// Result is the comparable artifact recorded for a target. Equality between
// results is what drives invalidation of dependents.
type Result struct {
	kind   ResultKind
	digest string // KindFile: lowercase hex content digest
	json   string // KindJSON: canonical JSON encoding
}

// FileResult wraps a content digest.
func FileResult(digest string) Result {
	return Result{kind: KindFile, digest: digest}
}

// JSONResult canonicalizes any JSON-encodable value (nil permitted) into a
// result. Returning NoResult yields an Absent result.
func JSONResult(v any) (Result, error) {
	if _, ok := v.(noResult); ok {
		return AbsentResult(), nil
	}
	c, err := hash.CanonicalJSON(v)
	if err != nil {
		return Result{}, err
	}
	return Result{kind: KindJSON, json: c}, nil
}

// AbsentResult returns the never-equal result.
func AbsentResult() Result {
	return Result{kind: KindAbsent}
}

func jsonResultCanonical(c string) Result {
	return Result{kind: KindJSON, json: c}
}

// Kind reports the variant of the result.
func (r Result) Kind() ResultKind { return r.kind }

// FileDigest returns the content digest for file results, "" otherwise.
func (r Result) FileDigest() string { return r.digest }

// JSON returns the canonical encoding for JSON results, "" otherwise.
func (r Result) JSON() string { return r.json }

// Value decodes the result payload: the digest string for file results, the
// decoded JSON value for JSON results, nil for Absent.
func (r Result) Value() any {
	switch r.kind {
	case KindFile:
		return r.digest
	case KindJSON:
		var v any
		_ = json.Unmarshal([]byte(r.json), &v)
		return v
	default:
		return nil
	}
}

// Equal reports whether two results carry the same tag and payload. Absent
// is never equal to anything.
func (r Result) Equal(o Result) bool {
	if r.kind == KindAbsent || o.kind == KindAbsent {
		return false
	}
	if r.kind != o.kind {
		return false
	}
	if r.kind == KindFile {
		return r.digest == o.digest
	}
	return r.json == o.json
}

// String renders the result for logs.
func (r Result) String() string {
	switch r.kind {
	case KindFile:
		return "file:" + r.digest
	case KindJSON:
		return "json:" + r.json
	default:
		return "absent"
	}
}
